package versioning

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"set-tools/crypto"
	"set-tools/models"
	"set-tools/scanner"
	"strconv"
	"strings"
)

// SyncOrphans records every version file in the internal files area that the
// store does not know about, and forgets records whose file is gone. It
// returns the number of records inserted.
func (vc *VersionControl) SyncOrphans(ctx context.Context, root string) (int, error) {
	vc.mutex.Lock()
	defer vc.mutex.Unlock()

	root = filepath.Clean(root)
	filesPath := vc.Config.FilesPath(root)

	existing, err := vc.Store.ItemsForProject(ctx, root)

	if err != nil {
		return 0, err
	}

	known := make(map[string]bool, len(existing))
	mainPaths := make(map[string]string)
	var vanished []string

	for _, item := range existing {
		known[item.Path] = true

		if item.Category == models.CategoryMain {
			mainPaths[scanner.Stem(item.Path)] = item.Path
		}

		if item.Category.IsVersion() && scanner.IsInternalPath(vc.Config, root, item.Path) {
			if _, err := os.Stat(item.Path); errors.Is(err, fs.ErrNotExist) {
				vanished = append(vanished, item.Path)
			}
		}
	}

	documentDirs, err := os.ReadDir(filesPath)

	if errors.Is(err, fs.ErrNotExist) {
		return 0, vc.Store.DeleteItems(ctx, vanished)
	}

	if err != nil {
		return 0, err
	}

	var orphans []models.ProjectItem

	for _, documentDir := range documentDirs {
		if !documentDir.IsDir() {
			continue
		}

		docBase := documentDir.Name()
		sourceName := docBase + vc.Config.DocumentExtension
		parentPath, found := mainPaths[docBase]

		if !found {
			parentPath = filepath.Join(root, sourceName)
		}

		for _, versionPath := range vc.documentFiles(filepath.Join(filesPath, docBase, versionsDirName)) {
			if known[versionPath] {
				continue
			}

			orphans = append(orphans, vc.orphanItem(root, versionPath, parentPath, models.CategoryVersion))
		}

		trackDirs, err := os.ReadDir(filepath.Join(filesPath, docBase, tracksDirName))

		if err != nil {
			continue
		}

		for _, trackDir := range trackDirs {
			trackID, err := strconv.Atoi(trackDir.Name())

			if !trackDir.IsDir() || err != nil {
				continue
			}

			for _, versionPath := range vc.documentFiles(filepath.Join(filesPath, docBase, tracksDirName, trackDir.Name())) {
				if known[versionPath] {
					continue
				}

				item := vc.orphanItem(root, versionPath, parentPath, models.CategorySubprojectVersion)
				name := sourceName
				id := trackID
				item.SourceDocumentName = &name
				item.SourceTrackID = &id
				item.ExtractedAt = item.FileModifiedAt
				orphans = append(orphans, item)
			}
		}
	}

	err = vc.Store.DeleteItems(ctx, vanished)

	if err != nil {
		return 0, err
	}

	if len(vanished) > 0 {
		log.Printf("Forgot %d version records whose files are gone", len(vanished))
	}

	err = vc.Store.InsertItems(ctx, orphans)

	if err != nil {
		return 0, err
	}

	return len(orphans), nil
}

func (vc *VersionControl) documentFiles(directory string) []string {
	entries, err := os.ReadDir(directory)

	if err != nil {
		return nil
	}

	var files []string

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), vc.Config.DocumentExtension) {
			continue
		}

		files = append(files, filepath.Join(directory, entry.Name()))
	}

	return files
}

// orphanItem takes the fingerprint from the timestamp file name, falling back
// to the file time for names that do not parse.
func (vc *VersionControl) orphanItem(root, versionPath, parentPath string, category models.Category) models.ProjectItem {
	parent := parentPath
	item := models.ProjectItem{
		Path:        versionPath,
		ProjectPath: root,
		Category:    category,
		ParentPath:  &parent,
		Comment:     readComment(versionPath),
	}

	if committedAt, err := scanner.ParseTimestamp(scanner.Stem(versionPath)); err == nil {
		item.FileModifiedAt = &committedAt
	} else if info, err := os.Stat(versionPath); err == nil {
		modifiedAt := info.ModTime()
		item.FileModifiedAt = &modifiedAt
	}

	if hash, err := crypto.HashFile(versionPath); err == nil {
		item.ContentHash = &hash
	}

	return item
}
