package versioning

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// PruneEmptyDirs removes empty directories left below the files area after
// versions were deleted by hand. The files area itself is kept.
func (vc *VersionControl) PruneEmptyDirs(root string) error {
	filesPath := filepath.Clean(vc.Config.FilesPath(root))

	if _, err := os.Stat(filesPath); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	for {
		foldersDeleted := 0

		err := filepath.WalkDir(filesPath, func(currentPath string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if !d.IsDir() || currentPath == filesPath {
				return nil
			}

			removed, err := removeDirectoryIfEmpty(currentPath)

			if err != nil {
				return err
			}

			if removed {
				foldersDeleted++
				return filepath.SkipDir
			}

			return nil
		})

		if err != nil {
			return err
		}

		if foldersDeleted == 0 {
			return nil
		}
	}
}

func removeDirectoryIfEmpty(currentPath string) (bool, error) {
	entries, err := os.ReadDir(currentPath)

	if err != nil {
		return false, err
	}

	if len(entries) == 0 {
		return true, os.Remove(currentPath)
	}

	return false, nil
}
