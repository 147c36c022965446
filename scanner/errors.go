package scanner

import "errors"

var (
	ErrRootNotFound = errors.New("project root does not exist or is not a directory")
	ErrAccessDenied = errors.New("access to the project root was denied")
)
