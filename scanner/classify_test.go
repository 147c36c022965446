package scanner

import (
	"github.com/stretchr/testify/assert"
	"path/filepath"
	"set-tools/config"
	"set-tools/models"
	"testing"
)

func TestClassify(t *testing.T) {
	c := config.Default()
	root := "/music/Song Project"

	cases := []struct {
		path     string
		category models.Category
		ok       bool
	}{
		{"Song.als", models.CategoryMain, true},
		{"Song.ALS", models.CategoryMain, true},
		{".version-Song-2024-01-01T00-00-00.als", models.CategoryVersion, true},
		{".subproject-Song-Drums.als", models.CategorySubprojectVersion, true},
		{"Backup/Song [2024-01-02 030405].als", models.CategoryBackup, true},
		{".set-tools/files/Song/versions/2024-01-01T00-00-00.als", models.CategoryVersion, true},
		{".set-tools/files/Song/liveSetTracks/42/2024-01-01T00-00-00.als", models.CategorySubprojectVersion, true},
		{".hidden.als", "", false},
		{"Samples/Song.als", "", false},
		{"Song.wav", "", false},
		{".set-tools/db/sets.als", "", false},
	}

	for _, tc := range cases {
		category, ok := Classify(c, root, filepath.Join(root, tc.path))
		assert.Equal(t, tc.ok, ok, tc.path)
		assert.Equal(t, tc.category, category, tc.path)
	}
}

func TestIsInternalPath(t *testing.T) {
	c := config.Default()

	assert.True(t, IsInternalPath(c, "/p", "/p/.set-tools/files/Song/versions/a.als"))
	assert.False(t, IsInternalPath(c, "/p", "/p/Song.als"))
	assert.False(t, IsInternalPath(c, "/p", "/p/.set-tools/filesX/a.als"))
}

func TestProjectRoot(t *testing.T) {
	c := config.Default()
	root := "/music/Song Project"

	assert.Equal(t, root, ProjectRoot(c, filepath.Join(root, "Song.als")))
	assert.Equal(t, root, ProjectRoot(c, filepath.Join(root, "Backup", "Song [2024-01-02 030405].als")))
	assert.Equal(t, root, ProjectRoot(c, filepath.Join(root, ".set-tools", "files", "Song", "versions", "a.als")))
	assert.Equal(t, root, ProjectRoot(c, filepath.Join(root, ".set-tools", "files", "Song", "liveSetTracks", "42", "a.als")))
}
