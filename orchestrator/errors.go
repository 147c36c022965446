package orchestrator

import "errors"

var (
	ErrNoDocuments       = errors.New("no set documents found")
	ErrNoExtractor       = errors.New("no track extractor configured")
	ErrNotMainDocument   = errors.New("item is not a main document")
	ErrNotASubproject    = errors.New("file is not named as a subproject")
	ErrTrackIndexInvalid = errors.New("track position out of range")
)
