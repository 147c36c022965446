package scanner

import (
	"path/filepath"
	"set-tools/config"
	"set-tools/models"
	"strings"
)

// Classify maps a path to its category purely by naming convention. The
// second return value is false for files that are not tracked documents.
// Internal version copies are recognised by their location under the
// metadata files area.
func Classify(c *config.Config, root, filePath string) (models.Category, bool) {
	if !strings.EqualFold(filepath.Ext(filePath), c.DocumentExtension) {
		return "", false
	}

	dir := filepath.Dir(filePath)
	name := filepath.Base(filePath)

	if dir == filepath.Join(root, c.BackupDirName) {
		return models.CategoryBackup, true
	}

	if IsInternalPath(c, root, filePath) {
		parent := filepath.Base(dir)
		grandparent := filepath.Base(filepath.Dir(dir))

		switch {
		case parent == "versions":
			return models.CategoryVersion, true
		case grandparent == "liveSetTracks":
			return models.CategorySubprojectVersion, true
		}

		return "", false
	}

	if dir != root {
		return "", false
	}

	switch {
	case strings.HasPrefix(name, SubprojectPrefix):
		return models.CategorySubprojectVersion, true
	case strings.HasPrefix(name, VersionPrefix):
		return models.CategoryVersion, true
	case strings.HasPrefix(name, "."):
		return "", false
	}

	return models.CategoryMain, true
}

// IsInternalPath reports whether filePath lives in the internal version storage.
func IsInternalPath(c *config.Config, root, filePath string) bool {
	filesPath := filepath.Clean(c.FilesPath(root))
	return strings.HasPrefix(filepath.Clean(filePath), filesPath+string(filepath.Separator))
}

// ProjectRoot maps a document path to its project root. Internal copies live
// below <root>/<tool dir>, backups below <root>/<backup dir>.
func ProjectRoot(c *config.Config, filePath string) string {
	dir := filepath.Dir(filepath.Clean(filePath))

	for current := dir; current != filepath.Dir(current); current = filepath.Dir(current) {
		if filepath.Base(current) == c.ToolDirName {
			return filepath.Dir(current)
		}
	}

	if filepath.Base(dir) == c.BackupDirName {
		return filepath.Dir(dir)
	}

	return dir
}
