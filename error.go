package main

import "errors"

var (
	ErrMissingArguments = errors.New("missing arguments")
	ErrInvalidTrackID   = errors.New("track id must be a number")
)
