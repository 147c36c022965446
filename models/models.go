package models

import (
	"errors"
	"time"
)

type Category string

const (
	CategoryMain              Category = "main"
	CategoryVersion           Category = "version"
	CategorySubprojectVersion Category = "subprojectVersion"
	CategoryBackup            Category = "backup"
)

type TrackType string

const (
	TrackTypeAudio  TrackType = "audio"
	TrackTypeMidi   TrackType = "midi"
	TrackTypeGroup  TrackType = "group"
	TrackTypeReturn TrackType = "return"
)

var (
	ErrMissingParent    = errors.New("version items require a parent path")
	ErrUnexpectedParent = errors.New("main items cannot have a parent path")
	ErrUnknownCategory  = errors.New("unknown item category")
)

type Project struct {
	Path         string `gorm:"primarykey"`
	LastSyncedAt *time.Time
}

// ProjectItem is one document file on disk. FileModifiedAt is the fingerprint
// last observed by the scanner, or the commit instant for versions.
type ProjectItem struct {
	Path               string   `gorm:"primarykey"`
	ProjectPath        string   `gorm:"index;not null"`
	Category           Category `gorm:"index;not null"`
	IsParsed           bool
	FileModifiedAt     *time.Time
	Comment            string
	AutoVersion        bool
	DocumentVersion    string
	ContentHash        *string
	ParentPath         *string `gorm:"index"`
	SourceDocumentName *string `gorm:"index"`
	SourceTrackID      *int
	SourceTrackName    *string
	ExtractedAt        *time.Time
	Tracks             []Track `gorm:"foreignKey:ItemPath;references:Path"`
}

type Track struct {
	ID             uint   `gorm:"primarykey"`
	ItemPath       string `gorm:"uniqueIndex:idx_item_track;not null"`
	TrackID        int    `gorm:"uniqueIndex:idx_item_track"`
	Name           string
	OriginalName   string
	IsModified     bool
	Type           TrackType
	ParentGroupID  *int
	OrderKey       string `gorm:"index"`
	SubprojectPath *string
	Payload        string
}

func (c Category) IsVersion() bool {
	return c == CategoryVersion || c == CategorySubprojectVersion
}

// Validate checks the one-category and parent reference invariants.
func (item *ProjectItem) Validate() error {
	switch item.Category {
	case CategoryMain:
		if item.ParentPath != nil {
			return ErrUnexpectedParent
		}
	case CategoryVersion, CategorySubprojectVersion:
		if item.ParentPath == nil || *item.ParentPath == "" {
			return ErrMissingParent
		}
	case CategoryBackup:
	default:
		return ErrUnknownCategory
	}

	return nil
}

// ClearDanglingGroups moves every track whose parent group is missing or is not
// a group track to the root level and returns the ids of the moved tracks.
func ClearDanglingGroups(tracks []Track) []int {
	groups := make(map[int]bool, len(tracks))

	for _, track := range tracks {
		if track.Type == TrackTypeGroup {
			groups[track.TrackID] = true
		}
	}

	var cleared []int

	for i := range tracks {
		parentID := tracks[i].ParentGroupID

		if parentID == nil {
			continue
		}

		if !groups[*parentID] || *parentID == tracks[i].TrackID {
			tracks[i].ParentGroupID = nil
			cleared = append(cleared, tracks[i].TrackID)
		}
	}

	return cleared
}
