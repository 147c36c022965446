package scanner

import (
	"bytes"
	"errors"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
	"os"
	"path"
	"time"
)

// Sidecar describes where a subproject output was extracted from.
type Sidecar struct {
	SourceDocumentName string    `yaml:"source_document_name"`
	SourceDocumentPath string    `yaml:"source_document_path,omitempty"`
	SourceTrackID      int       `yaml:"source_track_id"`
	SourceTrackName    string    `yaml:"source_track_name"`
	ExtractedAt        time.Time `yaml:"extracted_at"`
}

// ReadSidecar returns nil without error when no sidecar exists.
func ReadSidecar(documentPath string) (*Sidecar, error) {
	data, err := os.ReadFile(path.Clean(SidecarPath(documentPath)))

	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	sidecar := &Sidecar{}
	err = yaml.Unmarshal(data, sidecar)

	if err != nil {
		return nil, err
	}

	return sidecar, nil
}

func WriteSidecar(documentPath string, sidecar *Sidecar) error {
	data, err := yaml.Marshal(sidecar)

	if err != nil {
		return err
	}

	return atomic.WriteFile(SidecarPath(documentPath), bytes.NewReader(data))
}
