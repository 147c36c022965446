// Package parser turns a document on disk into its track hierarchy. The
// orchestrator only depends on the Parser and Extractor interfaces.
package parser

import (
	"context"
	"errors"
	"set-tools/models"
)

var ErrNotADocument = errors.New("file is not a readable set document")

type TrackAttrs struct {
	ID            int
	Name          string
	Type          models.TrackType
	ParentGroupID *int
	Payload       string
}

type Document struct {
	Tracks          []TrackAttrs
	DocumentVersion string
}

type Parser interface {
	Parse(ctx context.Context, path string) (*Document, error)
}

// Extractor writes a standalone document holding one track of the source and
// its descendants.
type Extractor interface {
	Extract(ctx context.Context, sourcePath string, trackID int, destinationPath string) error
}

// ParserFunc adapts a function to the Parser interface.
type ParserFunc func(ctx context.Context, path string) (*Document, error)

func (f ParserFunc) Parse(ctx context.Context, path string) (*Document, error) {
	return f(ctx, path)
}

// TrackByID finds a track in a parsed document.
func (d *Document) TrackByID(id int) (TrackAttrs, bool) {
	for _, track := range d.Tracks {
		if track.ID == id {
			return track, true
		}
	}

	return TrackAttrs{}, false
}
