// Package scanner compares the documents on disk with the stored records of a
// project and partitions them into unchanged, changed, new and deleted.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"set-tools/config"
	"set-tools/models"
	"sort"
	"strings"
	"time"
)

type Result struct {
	Unchanged []models.ProjectItem
	// Changed items carry their new fingerprint
	Changed []models.ProjectItem
	New     []models.ProjectItem
	Deleted []models.ProjectItem
}

type candidate struct {
	path       string
	category   models.Category
	modifiedAt time.Time
}

type Scanner struct {
	Config *config.Config
}

func New(c *config.Config) *Scanner {
	return &Scanner{Config: c}
}

// IsChanged reports whether current is later than stored by more than the
// tolerance. A missing value on either side never counts as a change.
func IsChanged(stored, current *time.Time, tolerance time.Duration) bool {
	if stored == nil || current == nil {
		return false
	}

	return current.Sub(*stored) > tolerance
}

// FullScan classifies every document with no prior records, so everything is new.
func (s *Scanner) FullScan(root string) (*Result, error) {
	return s.Detect(root, nil)
}

// Detect diffs the documents under root against the existing records of the
// project. Records inside the internal storage area are never reported as
// deleted, version control reconciles those itself.
func (s *Scanner) Detect(root string, existing []models.ProjectItem) (*Result, error) {
	root = filepath.Clean(root)
	candidates, err := s.enumerate(root)

	if err != nil {
		return nil, err
	}

	existingByPath := make(map[string]models.ProjectItem, len(existing))
	mainPaths := make(map[string]string)

	for _, item := range existing {
		existingByPath[item.Path] = item

		if item.Category == models.CategoryMain {
			mainPaths[Stem(item.Path)] = item.Path
		}
	}

	for _, c := range candidates {
		if c.category == models.CategoryMain {
			mainPaths[Stem(c.path)] = c.path
		}
	}

	result := &Result{}
	seen := make(map[string]bool, len(candidates))

	for _, c := range candidates {
		seen[c.path] = true
		modifiedAt := c.modifiedAt

		item, found := existingByPath[c.path]

		if !found {
			result.New = append(result.New, s.newItem(root, c, mainPaths))
			continue
		}

		if IsChanged(item.FileModifiedAt, &modifiedAt, s.Config.ChangeTolerance) {
			item.FileModifiedAt = &modifiedAt
			result.Changed = append(result.Changed, item)
			continue
		}

		result.Unchanged = append(result.Unchanged, item)
	}

	for _, item := range existing {
		if seen[item.Path] {
			continue
		}

		if item.Category.IsVersion() && IsInternalPath(s.Config, root, item.Path) {
			continue
		}

		result.Deleted = append(result.Deleted, item)
	}

	return result, nil
}

// enumerate lists the documents in the root and the backup directory. Every
// other subdirectory is skipped.
func (s *Scanner) enumerate(root string) ([]candidate, error) {
	info, err := os.Stat(root)

	if err != nil {
		return nil, rootError(root, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}

	backupPath := filepath.Join(root, s.Config.BackupDirName)
	var candidates []candidate

	err = filepath.WalkDir(root, func(thisPath string, d fs.DirEntry, err error) error {
		if err != nil {
			if thisPath == root {
				return rootError(root, err)
			}

			// Best effort below the root
			log.Printf("Skipping \"%s\": %v", thisPath, err)

			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			if thisPath == root || thisPath == backupPath {
				return nil
			}

			return filepath.SkipDir
		}

		category, ok := Classify(s.Config, root, thisPath)

		if !ok {
			return nil
		}

		fileInfo, err := d.Info()

		// The file may have gone since the directory was read
		if err != nil {
			log.Printf("Ignoring not-found file \"%s\"", thisPath)
			return nil
		}

		candidates = append(candidates, candidate{
			path:       thisPath,
			category:   category,
			modifiedAt: fileInfo.ModTime(),
		})

		return nil
	})

	if err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].path < candidates[j].path
	})

	return candidates, nil
}

func rootError(root string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %s", ErrAccessDenied, root)
	}

	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrRootNotFound, root)
	}

	return err
}

func (s *Scanner) newItem(root string, c candidate, mainPaths map[string]string) models.ProjectItem {
	modifiedAt := c.modifiedAt

	item := models.ProjectItem{
		Path:           c.path,
		ProjectPath:    root,
		Category:       c.category,
		FileModifiedAt: &modifiedAt,
	}

	switch c.category {
	case models.CategoryMain:
		item.AutoVersion = s.Config.AutoVersion
	case models.CategoryVersion:
		parentPath := s.resolveVersionParent(root, c.path, mainPaths)
		item.ParentPath = &parentPath
	case models.CategorySubprojectVersion:
		s.attachProvenance(root, &item, mainPaths)
	case models.CategoryBackup:
		if sourceName, _, ok := BackupSourceName(filepath.Base(c.path)); ok {
			item.SourceDocumentName = &sourceName
		}
	}

	return item
}

// resolveVersionParent finds the main document of a version, either from the
// root file name or from the internal files/<stem>/versions directory.
func (s *Scanner) resolveVersionParent(root, versionPath string, mainPaths map[string]string) string {
	sourceStem, ok := VersionSourceStem(filepath.Base(versionPath))

	if !ok {
		sourceStem = filepath.Base(filepath.Dir(filepath.Dir(versionPath)))
	}

	if mainPath, found := mainPaths[sourceStem]; found {
		return mainPath
	}

	return filepath.Join(root, sourceStem+s.Config.DocumentExtension)
}

// attachProvenance fills the source fields of a subproject output from its
// sidecar, or failing that from its file name.
func (s *Scanner) attachProvenance(root string, item *models.ProjectItem, mainPaths map[string]string) {
	sidecar, err := ReadSidecar(item.Path)

	if err != nil {
		log.Printf("Could not read sidecar of \"%s\": %v", item.Path, err)
	}

	if sidecar != nil {
		parentPath := sidecar.SourceDocumentPath

		if parentPath == "" {
			parentPath = filepath.Join(root, sidecar.SourceDocumentName)
		}

		trackID := sidecar.SourceTrackID
		extractedAt := sidecar.ExtractedAt

		item.ParentPath = &parentPath
		item.SourceDocumentName = &sidecar.SourceDocumentName
		item.SourceTrackID = &trackID
		item.SourceTrackName = &sidecar.SourceTrackName
		item.ExtractedAt = &extractedAt

		return
	}

	if IsInternalPath(s.Config, root, item.Path) {
		s.attachInternalProvenance(root, item, mainPaths)
		return
	}

	rest, extractedAt, hasTimestamp := SplitTimestampSuffix(strings.TrimPrefix(Stem(item.Path), SubprojectPrefix))

	if hasTimestamp {
		item.ExtractedAt = &extractedAt
	}

	sourceStem, trackName := splitSourceAndTrack(rest, mainPaths)
	sourceName := sourceStem + s.Config.DocumentExtension

	parentPath, found := mainPaths[sourceStem]

	if !found {
		parentPath = filepath.Join(root, sourceName)
	}

	item.ParentPath = &parentPath
	item.SourceDocumentName = &sourceName

	if trackName != "" {
		item.SourceTrackName = &trackName
	}
}

// attachInternalProvenance handles files/<stem>/liveSetTracks/<trackId>/<timestamp><ext>.
func (s *Scanner) attachInternalProvenance(root string, item *models.ProjectItem, mainPaths map[string]string) {
	trackDir := filepath.Dir(item.Path)
	sourceStem := filepath.Base(filepath.Dir(filepath.Dir(trackDir)))
	sourceName := sourceStem + s.Config.DocumentExtension

	parentPath, found := mainPaths[sourceStem]

	if !found {
		parentPath = filepath.Join(root, sourceName)
	}

	item.ParentPath = &parentPath
	item.SourceDocumentName = &sourceName

	var trackID int
	if _, err := fmt.Sscanf(filepath.Base(trackDir), "%d", &trackID); err == nil {
		item.SourceTrackID = &trackID
	}

	if extractedAt, err := ParseTimestamp(Stem(item.Path)); err == nil {
		item.ExtractedAt = &extractedAt
	}
}

// splitSourceAndTrack prefers the longest known document name so that
// hyphenated document names survive.
func splitSourceAndTrack(rest string, mainPaths map[string]string) (string, string) {
	best := ""

	for stem := range mainPaths {
		if len(stem) > len(best) && strings.HasPrefix(rest, stem+"-") {
			best = stem
		}
	}

	if best != "" {
		return best, rest[len(best)+1:]
	}

	source, track, _ := strings.Cut(rest, "-")

	return source, track
}
