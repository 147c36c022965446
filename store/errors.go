package store

import "errors"

var (
	ErrStoreUnavailable = errors.New("record store is not available")
	ErrProjectNotFound  = errors.New("project not found")
	ErrItemNotFound     = errors.New("project item not found")
	ErrTrackNotFound    = errors.New("track not found")
)
