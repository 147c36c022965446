package orchestrator

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"set-tools/config"
	"set-tools/models"
	"set-tools/parser"
	"set-tools/scanner"
	"set-tools/store"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var extractionTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local)

func ptr[T any](v T) *T {
	return &v
}

// fakeParser returns the same track tree for every document and fails for
// documents whose content is "broken".
type fakeParser struct {
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
}

func (f *fakeParser) Parse(ctx context.Context, filePath string) (*parser.Document, error) {
	f.calls.Add(1)
	current := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)

	for {
		peak := f.peak.Load()

		if current <= peak || f.peak.CompareAndSwap(peak, current) {
			break
		}
	}

	time.Sleep(f.delay)

	data, err := os.ReadFile(filePath)

	if err != nil {
		return nil, err
	}

	if string(data) == "broken" {
		return nil, parser.ErrNotADocument
	}

	return &parser.Document{
		DocumentVersion: "Ableton Live 12.0",
		Tracks: []parser.TrackAttrs{
			{ID: 3, Name: "Rhythm", Type: models.TrackTypeGroup},
			{ID: 42, Name: "Drums", Type: models.TrackTypeAudio, ParentGroupID: ptr(3)},
			{ID: 7, Name: "Bass", Type: models.TrackTypeMidi, ParentGroupID: ptr(3)},
			{ID: 9, Name: "Keys", Type: models.TrackTypeMidi, ParentGroupID: ptr(11)},
		},
	}, nil
}

type copyExtractor struct{}

func (copyExtractor) Extract(ctx context.Context, sourcePath string, trackID int, destinationPath string) error {
	data, err := os.ReadFile(sourcePath)

	if err != nil {
		return err
	}

	return os.WriteFile(destinationPath, data, 0600)
}

func newTestOrchestrator(t *testing.T, c *config.Config, options ...Option) (*Orchestrator, *fakeParser) {
	t.Helper()

	if c == nil {
		c = config.Default()
	}

	p := &fakeParser{}
	o := New(c, p, options...)

	t.Cleanup(func() {
		o.Close()
	})

	return o, p
}

func writeDocument(t *testing.T, filePath, content string, modifiedAt time.Time) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0750))
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0600))
	require.NoError(t, os.Chtimes(filePath, modifiedAt, modifiedAt))
}

func storeOf(t *testing.T, o *Orchestrator, root string) *store.Store {
	t.Helper()

	p, err := o.project(root)
	require.NoError(t, err)

	return p.store
}

func TestOpenFullScan(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()
	root := t.TempDir()
	t0 := time.Now().Add(-time.Hour)

	writeDocument(t, filepath.Join(root, "Song.als"), "song", t0)
	writeDocument(t, filepath.Join(root, ".version-Song-2024-05-01T10-00-00.als"), "old", t0)
	writeDocument(t, filepath.Join(root, "Backup", "Song [2024-05-01 100000].als"), "backup", t0)

	report, err := o.Open(ctx, root)
	require.NoError(t, err)

	assert.True(t, report.FullScan)
	assert.Equal(t, 3, report.New)
	assert.Equal(t, 3, report.Parsed)
	assert.Equal(t, 0, report.ParseFailed)
	assert.Equal(t, 0, report.Versions)

	s := storeOf(t, o, root)
	song, err := s.GetItem(ctx, filepath.Join(root, "Song.als"))
	require.NoError(t, err)
	assert.True(t, song.IsParsed)
	assert.Equal(t, "Ableton Live 12.0", song.DocumentVersion)

	tracks, err := s.TracksForItem(ctx, song.Path)
	require.NoError(t, err)
	require.Len(t, tracks, 4)

	for _, track := range tracks {
		if track.TrackID == 9 {
			assert.Nil(t, track.ParentGroupID)
		}
	}

	project, err := s.GetProject(ctx, root)
	require.NoError(t, err)
	assert.NotNil(t, project.LastSyncedAt)
}

func TestOpenWithoutDocuments(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	root := t.TempDir()
	writeDocument(t, filepath.Join(root, "notes.txt"), "x", time.Now())

	_, err := o.Open(context.Background(), root)
	assert.ErrorIs(t, err, ErrNoDocuments)
	assert.NoDirExists(t, filepath.Join(root, ".set-tools"))
}

func TestOpenMissingRoot(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)

	_, err := o.Open(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, scanner.ErrRootNotFound)
}

func TestOpenTwiceChangesNothing(t *testing.T) {
	o, p := newTestOrchestrator(t, nil)
	ctx := context.Background()
	root := t.TempDir()
	writeDocument(t, filepath.Join(root, "Song.als"), "song", time.Now().Add(-time.Hour))

	_, err := o.Open(ctx, root)
	require.NoError(t, err)

	report, err := o.Open(ctx, root)
	require.NoError(t, err)
	assert.False(t, report.FullScan)
	assert.Equal(t, 0, report.New)
	assert.Equal(t, 0, report.Changed)
	assert.Equal(t, 0, report.Deleted)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestRescanVersionsChangedSong(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()
	root := t.TempDir()
	song := filepath.Join(root, "Song.als")
	t0 := time.Now().Add(-time.Hour)

	writeDocument(t, song, "first", t0)
	_, err := o.Open(ctx, root)
	require.NoError(t, err)

	writeDocument(t, song, "second", t0.Add(5*time.Second))

	report, err := o.Rescan(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, 1, report.Parsed)
	assert.Equal(t, 1, report.Versions)

	versions, err := o.Versions(ctx, song)
	require.NoError(t, err)
	require.Len(t, versions, 1)

	content, err := os.ReadFile(versions[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))

	stored, err := storeOf(t, o, root).GetItem(ctx, song)
	require.NoError(t, err)
	assert.True(t, stored.FileModifiedAt.Equal(t0.Add(5*time.Second)))
	assert.True(t, stored.IsParsed)
}

func TestRescanWithinToleranceIsUnchanged(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()
	root := t.TempDir()
	song := filepath.Join(root, "Song.als")
	t0 := time.Now().Add(-time.Hour)

	writeDocument(t, song, "first", t0)
	_, err := o.Open(ctx, root)
	require.NoError(t, err)

	require.NoError(t, os.Chtimes(song, t0.Add(time.Second), t0.Add(time.Second)))

	report, err := o.Rescan(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Changed)
	assert.Equal(t, 0, report.Versions)
}

func TestNewDocumentsAreNotAutoVersioned(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()
	root := t.TempDir()
	t0 := time.Now().Add(-time.Hour)

	writeDocument(t, filepath.Join(root, "Song.als"), "song", t0)
	_, err := o.Open(ctx, root)
	require.NoError(t, err)

	writeDocument(t, filepath.Join(root, "Other.als"), "other", t0)

	report, err := o.Rescan(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 1, report.New)
	assert.Equal(t, 0, report.Versions)
	assert.NoDirExists(t, filepath.Join(root, ".set-tools", "files"))
}

func TestAutoVersionCanBeDisabled(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()
	root := t.TempDir()
	song := filepath.Join(root, "Song.als")
	t0 := time.Now().Add(-time.Hour)

	writeDocument(t, song, "first", t0)
	_, err := o.Open(ctx, root)
	require.NoError(t, err)

	require.NoError(t, o.SetAutoVersion(ctx, song, false))
	writeDocument(t, song, "second", t0.Add(time.Minute))

	report, err := o.Rescan(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, 0, report.Versions)
}

func TestRescanDeleted(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()
	root := t.TempDir()
	t0 := time.Now().Add(-time.Hour)

	writeDocument(t, filepath.Join(root, "Song.als"), "song", t0)
	writeDocument(t, filepath.Join(root, "Gone.als"), "gone", t0)
	_, err := o.Open(ctx, root)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "Gone.als")))

	report, err := o.Rescan(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)

	_, err = storeOf(t, o, root).GetItem(ctx, filepath.Join(root, "Gone.als"))
	assert.ErrorIs(t, err, store.ErrItemNotFound)

	tracks, err := storeOf(t, o, root).TracksForItem(ctx, filepath.Join(root, "Gone.als"))
	require.NoError(t, err)
	assert.Empty(t, tracks)
}

func TestParseFailuresAreCounted(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()
	root := t.TempDir()
	t0 := time.Now().Add(-time.Hour)

	writeDocument(t, filepath.Join(root, "Song.als"), "song", t0)
	writeDocument(t, filepath.Join(root, "Broken.als"), "broken", t0)

	report, err := o.Open(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Parsed)
	assert.Equal(t, 1, report.ParseFailed)

	broken, err := storeOf(t, o, root).GetItem(ctx, filepath.Join(root, "Broken.als"))
	require.NoError(t, err)
	assert.False(t, broken.IsParsed)
}

func TestParserConcurrencyIsCapped(t *testing.T) {
	c := config.Default()
	c.MaxConcurrentParsers = 2
	o, p := newTestOrchestrator(t, c)
	p.delay = 20 * time.Millisecond
	root := t.TempDir()
	t0 := time.Now().Add(-time.Hour)

	for _, name := range []string{"A", "B", "C", "D", "E", "F", "G", "H"} {
		writeDocument(t, filepath.Join(root, name+".als"), name, t0)
	}

	report, err := o.Open(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 8, report.Parsed)
	assert.LessOrEqual(t, p.peak.Load(), int32(2))
}

func TestExtractSubproject(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, WithExtractor(copyExtractor{}), WithClock(func() time.Time {
		return extractionTime
	}))
	ctx := context.Background()
	root := t.TempDir()
	song := filepath.Join(root, "Song.als")

	writeDocument(t, song, "song", time.Now().Add(-time.Hour))
	_, err := o.Open(ctx, root)
	require.NoError(t, err)

	item, err := o.ExtractSubproject(ctx, song, 42)
	require.NoError(t, err)

	expected := filepath.Join(root, ".subproject-Song-Drums-2024-05-01T12-00-00.als")
	assert.Equal(t, expected, item.Path)
	assert.FileExists(t, expected)
	assert.FileExists(t, filepath.Join(root, ".subproject-Song-Drums-2024-05-01T12-00-00.meta.yaml"))
	assert.FileExists(t, filepath.Join(root, ".set-tools", "files", "Song", "liveSetTracks", "42", "2024-05-01T12-00-00.als"))

	s := storeOf(t, o, root)
	track, err := s.GetTrack(ctx, song, 42)
	require.NoError(t, err)
	require.NotNil(t, track.SubprojectPath)
	assert.Equal(t, expected, *track.SubprojectPath)

	other, err := s.GetTrack(ctx, song, 7)
	require.NoError(t, err)
	assert.Nil(t, other.SubprojectPath)

	// The extracted file is known, so a rescan sees no change
	report, err := o.Rescan(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 0, report.New)
	assert.Equal(t, 0, report.Deleted)
	assert.Equal(t, 1, report.Linked)
}

func TestExtractSubprojectWithoutExtractor(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)

	_, err := o.ExtractSubproject(context.Background(), "/music/Song.als", 42)
	assert.ErrorIs(t, err, ErrNoExtractor)
}

func TestRegisterSubproject(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()
	root := t.TempDir()
	song := filepath.Join(root, "Song.als")
	t0 := time.Now().Add(-time.Hour)

	writeDocument(t, song, "song", t0)
	_, err := o.Open(ctx, root)
	require.NoError(t, err)

	extracted := filepath.Join(root, ".subproject-exported.als")
	writeDocument(t, extracted, "drums", t0)

	_, err = o.RegisterSubproject(ctx, root, extracted, song, 42)
	require.NoError(t, err)

	sidecar, err := scanner.ReadSidecar(extracted)
	require.NoError(t, err)
	require.NotNil(t, sidecar)
	assert.Equal(t, "Drums", sidecar.SourceTrackName)

	track, err := storeOf(t, o, root).GetTrack(ctx, song, 42)
	require.NoError(t, err)
	require.NotNil(t, track.SubprojectPath)
	assert.Equal(t, extracted, *track.SubprojectPath)

	_, err = o.RegisterSubproject(ctx, root, song, song, 42)
	assert.ErrorIs(t, err, ErrNotASubproject)
}

func TestSetComment(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()
	root := t.TempDir()
	song := filepath.Join(root, "Song.als")

	writeDocument(t, song, "song", time.Now().Add(-time.Hour))
	_, err := o.Open(ctx, root)
	require.NoError(t, err)

	result, err := o.Commit(ctx, song, "")
	require.NoError(t, err)
	require.False(t, result.Skipped)

	require.NoError(t, o.SetComment(ctx, result.Item.Path, "final mix"))

	commentFile := filepath.Join(filepath.Dir(result.Item.Path), scanner.Stem(result.Item.Path)+scanner.CommentSuffix)
	content, err := os.ReadFile(commentFile)
	require.NoError(t, err)
	assert.Equal(t, "final mix", string(content))

	stored, err := storeOf(t, o, root).GetItem(ctx, result.Item.Path)
	require.NoError(t, err)
	assert.Equal(t, "final mix", stored.Comment)

	assert.ErrorIs(t, o.SetAutoVersion(ctx, result.Item.Path, false), ErrNotMainDocument)
}

func TestRenameAndMoveTrack(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()
	root := t.TempDir()
	song := filepath.Join(root, "Song.als")

	writeDocument(t, song, "song", time.Now().Add(-time.Hour))
	_, err := o.Open(ctx, root)
	require.NoError(t, err)

	require.NoError(t, o.RenameTrack(ctx, song, 42, "Live Drums"))

	s := storeOf(t, o, root)
	track, err := s.GetTrack(ctx, song, 42)
	require.NoError(t, err)
	assert.Equal(t, "Live Drums", track.Name)
	assert.Equal(t, "Drums", track.OriginalName)
	assert.True(t, track.IsModified)

	// Bass moves ahead of Drums inside the Rhythm group
	require.NoError(t, o.MoveTrack(ctx, song, 7, 0))

	tracks, err := s.TracksForItem(ctx, song)
	require.NoError(t, err)

	var order []int

	for _, track := range tracks {
		if track.ParentGroupID != nil && *track.ParentGroupID == 3 {
			order = append(order, track.TrackID)
		}
	}

	assert.Equal(t, []int{7, 42}, order)

	assert.ErrorIs(t, o.MoveTrack(ctx, song, 7, 5), ErrTrackIndexInvalid)
	assert.ErrorIs(t, o.MoveTrack(ctx, song, 99, 0), store.ErrTrackNotFound)
}

func TestCategoryCounts(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()
	root := t.TempDir()
	t0 := time.Now().Add(-time.Hour)

	writeDocument(t, filepath.Join(root, "Song.als"), "song", t0)
	writeDocument(t, filepath.Join(root, "Other.als"), "other", t0)
	writeDocument(t, filepath.Join(root, "Backup", "Song [2024-05-01 100000].als"), "backup", t0)

	_, err := o.Open(ctx, root)
	require.NoError(t, err)

	counts, err := o.CategoryCounts(ctx, root)
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, store.CategoryCount{Category: models.CategoryBackup, Count: 1}, counts[0])
	assert.Equal(t, store.CategoryCount{Category: models.CategoryMain, Count: 2}, counts[1])
}

func TestCommitOfBackupUsesProjectStore(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil)
	ctx := context.Background()
	root := t.TempDir()
	backup := filepath.Join(root, "Backup", "Song [2024-05-01 100000].als")
	t0 := time.Now().Add(-time.Hour)

	writeDocument(t, filepath.Join(root, "Song.als"), "song", t0)
	writeDocument(t, backup, "backup", t0)

	_, err := o.Open(ctx, root)
	require.NoError(t, err)

	result, err := o.Commit(ctx, backup, "")
	require.NoError(t, err)
	require.False(t, result.Skipped)

	assert.Equal(t, root, result.Item.ProjectPath)
	assert.Equal(t, filepath.Join(root, ".set-tools", "files", "Song [2024-05-01 100000]", "versions"), filepath.Dir(result.Item.Path))
	assert.NoDirExists(t, filepath.Join(root, "Backup", ".set-tools"))

	versions, err := o.Versions(ctx, backup)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestConcurrentCommitsWriteOneVersion(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, WithClock(func() time.Time {
		return extractionTime
	}))
	ctx := context.Background()
	root := t.TempDir()
	song := filepath.Join(root, "Song.als")

	writeDocument(t, song, "song", time.Now().Add(-time.Hour))
	_, err := o.Open(ctx, root)
	require.NoError(t, err)

	var wg sync.WaitGroup
	var written, skipped, failed atomic.Int32

	for i := 0; i < 6; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			result, err := o.Commit(ctx, song, "")

			switch {
			case err != nil:
				failed.Add(1)
			case result.Skipped:
				skipped.Add(1)
			default:
				written.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(0), failed.Load())
	assert.Equal(t, int32(1), written.Load())
	assert.Equal(t, int32(5), skipped.Load())
}

func TestReopenKeepsLinks(t *testing.T) {
	o, _ := newTestOrchestrator(t, nil, WithExtractor(copyExtractor{}), WithClock(func() time.Time {
		return extractionTime
	}))
	ctx := context.Background()
	root := t.TempDir()
	song := filepath.Join(root, "Song.als")

	writeDocument(t, song, "song", time.Now().Add(-time.Hour))
	_, err := o.Open(ctx, root)
	require.NoError(t, err)

	_, err = o.ExtractSubproject(ctx, song, 42)
	require.NoError(t, err)

	report, err := o.Open(ctx, root)
	require.NoError(t, err)
	assert.False(t, report.FullScan)
	assert.Equal(t, 0, report.Orphans)
	assert.Equal(t, 1, report.Linked)
}
