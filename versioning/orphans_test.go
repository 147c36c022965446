package versioning

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"set-tools/models"
	"testing"
	"time"
)

func writeOrphan(t *testing.T, filePath, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0750))
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0600))
}

func TestSyncOrphans(t *testing.T) {
	p := newTestProject(t)
	ctx := context.Background()
	filesPath := p.vc.Config.FilesPath(p.root)

	writeOrphan(t, filepath.Join(filesPath, "Song", "versions", "2024-01-01T10-00-00.als"), "a")
	writeOrphan(t, filepath.Join(filesPath, "Song", "versions", "2024-01-02T10-00-00.als"), "b")
	writeOrphan(t, filepath.Join(filesPath, "Song", "versions", "2024-01-02T10-00-00.comment.txt"), "mix two")
	writeOrphan(t, filepath.Join(filesPath, "Song", "liveSetTracks", "42", "2024-01-03T10-00-00.als"), "c")
	writeOrphan(t, filepath.Join(filesPath, "Song", "liveSetTracks", "notanid", "2024-01-03T10-00-00.als"), "d")

	count, err := p.vc.SyncOrphans(ctx, p.root)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	song := filepath.Join(p.root, "Song.als")
	versions, err := p.vc.List(ctx, song)
	require.NoError(t, err)
	require.Len(t, versions, 2)

	assert.True(t, versions[0].FileModifiedAt.Equal(time.Date(2024, 1, 2, 10, 0, 0, 0, time.Local)))
	assert.Equal(t, "mix two", versions[0].Comment)
	assert.True(t, versions[1].FileModifiedAt.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)))

	subprojects, err := p.vc.Store.ItemsByParent(ctx, song, models.CategorySubprojectVersion)
	require.NoError(t, err)
	require.Len(t, subprojects, 1)
	assert.Equal(t, 42, *subprojects[0].SourceTrackID)

	count, err = p.vc.SyncOrphans(ctx, p.root)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSyncOrphansForgetsVanishedVersions(t *testing.T) {
	p := newTestProject(t)
	ctx := context.Background()
	song := p.writeDocument(t, "Song.als", "one")

	result, err := p.vc.Commit(ctx, song, "")
	require.NoError(t, err)
	require.NoError(t, os.Remove(result.Item.Path))

	count, err := p.vc.SyncOrphans(ctx, p.root)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	_, err = p.vc.Store.GetItem(ctx, result.Item.Path)
	assert.Error(t, err)
}

func TestSyncOrphansWithoutFilesArea(t *testing.T) {
	p := newTestProject(t)

	count, err := p.vc.SyncOrphans(context.Background(), p.root)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestPruneEmptyDirs(t *testing.T) {
	p := newTestProject(t)
	filesPath := p.vc.Config.FilesPath(p.root)

	kept := filepath.Join(filesPath, "Song", "versions", "2024-01-01T10-00-00.als")
	writeOrphan(t, kept, "a")
	require.NoError(t, os.MkdirAll(filepath.Join(filesPath, "Song", "liveSetTracks", "42"), 0750))
	require.NoError(t, os.MkdirAll(filepath.Join(filesPath, "Gone", "versions"), 0750))

	require.NoError(t, p.vc.PruneEmptyDirs(p.root))

	assert.FileExists(t, kept)
	assert.DirExists(t, filesPath)
	assert.NoDirExists(t, filepath.Join(filesPath, "Song", "liveSetTracks"))
	assert.NoDirExists(t, filepath.Join(filesPath, "Gone"))
}
