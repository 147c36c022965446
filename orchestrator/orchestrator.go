// Package orchestrator keeps the record store of a project in step with its
// folder. It is constructed explicitly and owns one store per project root.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"set-tools/config"
	"set-tools/fracindex"
	"set-tools/linker"
	"set-tools/models"
	"set-tools/parser"
	"set-tools/scanner"
	"set-tools/store"
	"set-tools/utils"
	"set-tools/versioning"
	"sync"
	"time"
)

type Option func(o *Orchestrator)

func WithExtractor(extractor parser.Extractor) Option {
	return func(o *Orchestrator) {
		o.extractor = extractor
	}
}

// WithClock replaces the time source used for versions and extractions.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithRescanHandler is called after every rescan triggered by Watch.
func WithRescanHandler(handler func(report *Report, err error)) Option {
	return func(o *Orchestrator) {
		o.onRescan = handler
	}
}

type Orchestrator struct {
	config    *config.Config
	parser    parser.Parser
	extractor parser.Extractor
	now       func() time.Time
	onRescan  func(report *Report, err error)

	mutex    sync.Mutex
	projects map[string]*project
}

// project bundles the services bound to one project store.
type project struct {
	root      string
	store     *store.Store
	scanner   *scanner.Scanner
	versions  *versioning.VersionControl
	linker    *linker.Linker
	syncMutex sync.Mutex
}

func New(c *config.Config, p parser.Parser, options ...Option) *Orchestrator {
	o := &Orchestrator{
		config:   c,
		parser:   p,
		now:      time.Now,
		projects: make(map[string]*project),
	}

	for _, option := range options {
		option(o)
	}

	return o
}

// Close releases every open project store.
func (o *Orchestrator) Close() error {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	var errs []error

	for root, p := range o.projects {
		errs = append(errs, p.store.Close())
		delete(o.projects, root)
	}

	return errors.Join(errs...)
}

func (o *Orchestrator) project(root string) (*project, error) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if p, found := o.projects[root]; found {
		return p, nil
	}

	s, err := store.OpenForProject(o.config, root)

	if err != nil {
		return nil, err
	}

	versions := versioning.New(o.config, s)
	versions.Now = o.now

	p := &project{
		root:     root,
		store:    s,
		scanner:  scanner.New(o.config),
		versions: versions,
		linker:   linker.New(o.config, s),
	}

	o.projects[root] = p

	return p, nil
}

func cleanRoot(root string) (string, error) {
	absolute, err := filepath.Abs(root)

	if err != nil {
		return "", err
	}

	return filepath.Clean(absolute), nil
}

// Open synchronizes a project folder. A project without records gets a full
// scan, otherwise an incremental rescan. Version orphans, empty directories
// and subproject links are reconciled afterwards.
func (o *Orchestrator) Open(ctx context.Context, root string) (*Report, error) {
	root, err := cleanRoot(root)

	if err != nil {
		return nil, err
	}

	report := &Report{}
	isNew := !utils.IsFile(o.config.DBPath(root))

	if isNew {
		// Nothing is created for a folder without documents
		result, err := scanner.New(o.config).FullScan(root)

		if err != nil {
			return nil, err
		}

		if len(result.New) == 0 {
			return nil, fmt.Errorf("%w in \"%s\"", ErrNoDocuments, root)
		}
	}

	p, err := o.project(root)

	if err != nil {
		return nil, err
	}

	p.syncMutex.Lock()
	defer p.syncMutex.Unlock()

	count, err := p.store.CountItems(ctx, root)

	if err != nil {
		return nil, err
	}

	if count == 0 {
		err = o.fullScan(ctx, p, report)
	} else {
		err = o.rescan(ctx, p, report)
	}

	if err != nil {
		return nil, err
	}

	report.Orphans, err = p.versions.SyncOrphans(ctx, root)

	if err != nil {
		return nil, err
	}

	err = p.versions.PruneEmptyDirs(root)

	if err != nil {
		log.Printf("Could not prune empty directories of \"%s\": %v", root, err)
	}

	// A rescan has linked already, unless orphan subprojects turned up since
	if report.FullScan || report.Orphans > 0 {
		report.Linked, err = p.linker.LinkProject(ctx, root)

		if err != nil {
			return nil, err
		}
	}

	return report, p.store.MarkSynced(ctx, root, o.now())
}

// Rescan applies the changes on disk since the last pass.
func (o *Orchestrator) Rescan(ctx context.Context, root string) (*Report, error) {
	root, err := cleanRoot(root)

	if err != nil {
		return nil, err
	}

	p, err := o.project(root)

	if err != nil {
		return nil, err
	}

	p.syncMutex.Lock()
	defer p.syncMutex.Unlock()

	report := &Report{}
	err = o.rescan(ctx, p, report)

	if err != nil {
		return nil, err
	}

	return report, p.store.MarkSynced(ctx, root, o.now())
}

func (o *Orchestrator) fullScan(ctx context.Context, p *project, report *Report) error {
	report.FullScan = true

	result, err := p.scanner.FullScan(p.root)

	if err != nil {
		return err
	}

	if len(result.New) == 0 {
		return fmt.Errorf("%w in \"%s\"", ErrNoDocuments, p.root)
	}

	// Stale records from a previous life of the folder
	err = p.store.ClearProject(ctx, p.root)

	if err != nil {
		return err
	}

	_, err = p.store.EnsureProject(ctx, p.root)

	if err != nil {
		return err
	}

	err = p.store.InsertItems(ctx, result.New)

	if err != nil {
		return err
	}

	report.New = len(result.New)
	o.parseItems(ctx, p, result.New, report)

	return nil
}

func (o *Orchestrator) rescan(ctx context.Context, p *project, report *Report) error {
	existing, err := p.store.ItemsForProject(ctx, p.root)

	if err != nil {
		return err
	}

	result, err := p.scanner.Detect(p.root, existing)

	if err != nil {
		return err
	}

	_, err = p.store.EnsureProject(ctx, p.root)

	if err != nil {
		return err
	}

	err = p.store.InsertItems(ctx, result.New)

	if err != nil {
		return err
	}

	err = p.store.UpdateFingerprints(ctx, result.Changed)

	if err != nil {
		return err
	}

	deletedPaths := make([]string, len(result.Deleted))

	for i, item := range result.Deleted {
		deletedPaths[i] = item.Path
	}

	err = p.store.DeleteItems(ctx, deletedPaths)

	if err != nil {
		return err
	}

	report.New = len(result.New)
	report.Changed = len(result.Changed)
	report.Deleted = len(result.Deleted)

	toParse := append(append([]models.ProjectItem{}, result.New...), result.Changed...)
	o.parseItems(ctx, p, toParse, report)

	report.Linked, err = p.linker.LinkProject(ctx, p.root)

	if err != nil {
		return err
	}

	// New documents are never auto-versioned, only changed ones
	for _, item := range result.Changed {
		if item.Category != models.CategoryMain || !item.AutoVersion {
			continue
		}

		commit, err := p.versions.Commit(ctx, item.Path, "")

		if err != nil {
			log.Printf("Could not version \"%s\": %v", item.Path, err)
			report.VersionErrors++
			continue
		}

		if !commit.Skipped {
			report.Versions++
		}
	}

	return nil
}

// parseItems parses with at most MaxConcurrentParsers in flight. Each result
// is stored as soon as it is ready; failures are logged and counted.
func (o *Orchestrator) parseItems(ctx context.Context, p *project, items []models.ProjectItem, report *Report) {
	if len(items) == 0 {
		return
	}

	bar := utils.NewProgressBar(int64(len(items)), o.config.ShowProgress, "Parsing sets")
	orchestrator := utils.NewTaskOrchestrator(bar, len(items), o.config.MaxConcurrentParsers)

	for _, item := range items {
		orchestrator.StartTask()
		go o.parseTask(ctx, orchestrator, p, item.Path, report)
	}

	orchestrator.WaitForTasks()
}

func (o *Orchestrator) parseTask(ctx context.Context, orchestrator *utils.TaskOrchestrator, p *project, itemPath string, report *Report) {
	defer orchestrator.FinishTask()

	err := o.parseItem(ctx, p, itemPath)

	orchestrator.Lock()
	defer orchestrator.Unlock()

	if err != nil {
		log.Printf("Could not parse \"%s\": %v", itemPath, err)
		report.ParseFailed++
		return
	}

	report.Parsed++
}

func (o *Orchestrator) parseItem(ctx context.Context, p *project, itemPath string) error {
	err := ctx.Err()

	if err != nil {
		return err
	}

	document, err := o.parser.Parse(ctx, itemPath)

	if err != nil {
		return err
	}

	tracks := make([]models.Track, len(document.Tracks))
	orderKeys := fracindex.GenerateInitialIndices(len(document.Tracks))

	for i, attrs := range document.Tracks {
		tracks[i] = models.Track{
			TrackID:       attrs.ID,
			Name:          attrs.Name,
			Type:          attrs.Type,
			ParentGroupID: attrs.ParentGroupID,
			OrderKey:      orderKeys[i],
			Payload:       attrs.Payload,
		}
	}

	cleared := models.ClearDanglingGroups(tracks)

	if len(cleared) > 0 {
		log.Printf("Moved tracks %v of \"%s\" to root level, their group does not exist", cleared, itemPath)
	}

	return p.store.ApplyParse(ctx, itemPath, document.DocumentVersion, tracks)
}

// Commit versions a document explicitly.
func (o *Orchestrator) Commit(ctx context.Context, docPath, comment string) (*versioning.Result, error) {
	p, docPath, err := o.projectOf(docPath)

	if err != nil {
		return nil, err
	}

	// Auto-versioning during a rescan commits under the same lock
	p.syncMutex.Lock()
	defer p.syncMutex.Unlock()

	return p.versions.Commit(ctx, docPath, comment)
}

// Versions lists the versions of a document, newest first.
func (o *Orchestrator) Versions(ctx context.Context, docPath string) ([]models.ProjectItem, error) {
	p, docPath, err := o.projectOf(docPath)

	if err != nil {
		return nil, err
	}

	return p.versions.List(ctx, docPath)
}

// projectOf resolves the project a document belongs to, backups included.
func (o *Orchestrator) projectOf(docPath string) (*project, string, error) {
	absolute, err := filepath.Abs(docPath)

	if err != nil {
		return nil, "", err
	}

	p, err := o.project(scanner.ProjectRoot(o.config, absolute))

	return p, absolute, err
}

// ExtractSubproject writes one track of sourcePath into a standalone
// subproject document next to it, records its provenance and relinks the
// source.
func (o *Orchestrator) ExtractSubproject(ctx context.Context, sourcePath string, trackID int) (*models.ProjectItem, error) {
	if o.extractor == nil {
		return nil, ErrNoExtractor
	}

	p, sourcePath, err := o.projectOf(sourcePath)

	if err != nil {
		return nil, err
	}

	p.syncMutex.Lock()
	defer p.syncMutex.Unlock()

	track, err := p.store.GetTrack(ctx, sourcePath, trackID)

	if err != nil {
		return nil, err
	}

	extractedAt := o.now().Truncate(time.Second)
	destination := filepath.Join(p.root, scanner.SubprojectFileName(scanner.Stem(sourcePath), track.Name, extractedAt, filepath.Ext(sourcePath)))

	err = o.extractor.Extract(ctx, sourcePath, trackID, destination)

	if err != nil {
		return nil, fmt.Errorf("could not extract track %d of \"%s\": %w", trackID, sourcePath, err)
	}

	item, err := o.recordSubproject(ctx, p, destination, sourcePath, track.TrackID, track.Name, extractedAt)

	if err != nil {
		return nil, err
	}

	err = o.parseItem(ctx, p, destination)

	if err != nil {
		log.Printf("Could not parse \"%s\": %v", destination, err)
	}

	_, err = p.versions.CommitTrack(ctx, sourcePath, trackID, destination, "")

	if err != nil {
		log.Printf("Could not version track %d of \"%s\": %v", trackID, sourcePath, err)
	}

	_, err = p.linker.Link(ctx, sourcePath)

	return item, err
}

func (o *Orchestrator) recordSubproject(ctx context.Context, p *project, filePath, sourcePath string, trackID int, trackName string, extractedAt time.Time) (*models.ProjectItem, error) {
	sidecar := &scanner.Sidecar{
		SourceDocumentName: filepath.Base(sourcePath),
		SourceDocumentPath: sourcePath,
		SourceTrackID:      trackID,
		SourceTrackName:    trackName,
		ExtractedAt:        extractedAt,
	}

	err := scanner.WriteSidecar(filePath, sidecar)

	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)

	if err != nil {
		return nil, err
	}

	modifiedAt := info.ModTime()
	item := models.ProjectItem{
		Path:               filePath,
		ProjectPath:        p.root,
		Category:           models.CategorySubprojectVersion,
		FileModifiedAt:     &modifiedAt,
		ParentPath:         &sidecar.SourceDocumentPath,
		SourceDocumentName: &sidecar.SourceDocumentName,
		SourceTrackID:      &sidecar.SourceTrackID,
		SourceTrackName:    &sidecar.SourceTrackName,
		ExtractedAt:        &sidecar.ExtractedAt,
	}

	err = p.store.DeleteItems(ctx, []string{filePath})

	if err != nil {
		return nil, err
	}

	err = p.store.InsertItems(ctx, []models.ProjectItem{item})

	if err != nil {
		return nil, err
	}

	return &item, nil
}

// RegisterSubproject records the provenance of a subproject file written by
// another tool, then rescans the project so it is parsed and linked.
func (o *Orchestrator) RegisterSubproject(ctx context.Context, root, filePath, sourcePath string, trackID int) (*Report, error) {
	root, err := cleanRoot(root)

	if err != nil {
		return nil, err
	}

	filePath, err = filepath.Abs(filePath)

	if err != nil {
		return nil, err
	}

	category, ok := scanner.Classify(o.config, root, filePath)

	if !ok || category != models.CategorySubprojectVersion || scanner.IsInternalPath(o.config, root, filePath) {
		return nil, fmt.Errorf("%w: %s", ErrNotASubproject, filePath)
	}

	info, err := os.Stat(filePath)

	if err != nil {
		return nil, err
	}

	p, err := o.project(root)

	if err != nil {
		return nil, err
	}

	sourcePath, err = filepath.Abs(sourcePath)

	if err != nil {
		return nil, err
	}

	trackName := ""
	track, err := p.store.GetTrack(ctx, sourcePath, trackID)

	if err == nil {
		trackName = track.Name
	} else if !errors.Is(err, store.ErrTrackNotFound) {
		return nil, err
	}

	_, err = o.recordSubproject(ctx, p, filePath, sourcePath, trackID, trackName, info.ModTime())

	if err != nil {
		return nil, err
	}

	err = o.parseItem(ctx, p, filePath)

	if err != nil {
		log.Printf("Could not parse \"%s\": %v", filePath, err)
	}

	return o.Rescan(ctx, root)
}

// SetComment edits the comment of an item. Version comments are mirrored to
// their comment file.
func (o *Orchestrator) SetComment(ctx context.Context, itemPath, comment string) error {
	p, item, err := o.itemOf(ctx, itemPath)

	if err != nil {
		return err
	}

	if item.Category.IsVersion() && scanner.IsInternalPath(o.config, p.root, item.Path) {
		err = versioning.WriteComment(item.Path, comment)

		if err != nil {
			return err
		}
	}

	return p.store.SetComment(ctx, item.Path, comment)
}

func (o *Orchestrator) SetAutoVersion(ctx context.Context, itemPath string, enabled bool) error {
	p, item, err := o.itemOf(ctx, itemPath)

	if err != nil {
		return err
	}

	if item.Category != models.CategoryMain {
		return fmt.Errorf("%w: %s", ErrNotMainDocument, item.Path)
	}

	return p.store.SetAutoVersion(ctx, item.Path, enabled)
}

func (o *Orchestrator) RenameTrack(ctx context.Context, itemPath string, trackID int, name string) error {
	p, item, err := o.itemOf(ctx, itemPath)

	if err != nil {
		return err
	}

	return p.store.RenameTrack(ctx, item.Path, trackID, name)
}

// MoveTrack places a track at index among its siblings, the tracks sharing
// its parent group, without touching any other order key.
func (o *Orchestrator) MoveTrack(ctx context.Context, itemPath string, trackID, index int) error {
	p, item, err := o.itemOf(ctx, itemPath)

	if err != nil {
		return err
	}

	tracks, err := p.store.TracksForItem(ctx, item.Path)

	if err != nil {
		return err
	}

	var moved *models.Track
	var siblings []models.Track

	for i := range tracks {
		if tracks[i].TrackID == trackID {
			moved = &tracks[i]
		}
	}

	if moved == nil {
		return store.ErrTrackNotFound
	}

	for _, track := range tracks {
		if track.TrackID != trackID && sameGroup(track.ParentGroupID, moved.ParentGroupID) {
			siblings = append(siblings, track)
		}
	}

	if index < 0 || index > len(siblings) {
		return fmt.Errorf("%w: %d", ErrTrackIndexInvalid, index)
	}

	lower, upper := "", ""

	if index > 0 {
		lower = siblings[index-1].OrderKey
	}

	if index < len(siblings) {
		upper = siblings[index].OrderKey
	}

	orderKey, err := fracindex.Between(lower, upper)

	if err != nil {
		return err
	}

	return p.store.SetTrackOrderKey(ctx, item.Path, trackID, orderKey)
}

func sameGroup(left, right *int) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}

	return *left == *right
}

func (o *Orchestrator) itemOf(ctx context.Context, itemPath string) (*project, *models.ProjectItem, error) {
	absolute, err := filepath.Abs(itemPath)

	if err != nil {
		return nil, nil, err
	}

	p, err := o.project(scanner.ProjectRoot(o.config, absolute))

	if err != nil {
		return nil, nil, err
	}

	item, err := p.store.GetItem(ctx, absolute)

	if err != nil {
		return nil, nil, err
	}

	return p, item, nil
}

// SyncOrphans records version files the store does not know about and prunes
// the empty directories left behind.
func (o *Orchestrator) SyncOrphans(ctx context.Context, root string) (int, error) {
	root, err := cleanRoot(root)

	if err != nil {
		return 0, err
	}

	p, err := o.project(root)

	if err != nil {
		return 0, err
	}

	p.syncMutex.Lock()
	defer p.syncMutex.Unlock()

	count, err := p.versions.SyncOrphans(ctx, root)

	if err != nil {
		return count, err
	}

	return count, p.versions.PruneEmptyDirs(root)
}

// CategoryCounts reports how many items of each category a project holds.
func (o *Orchestrator) CategoryCounts(ctx context.Context, root string) ([]store.CategoryCount, error) {
	root, err := cleanRoot(root)

	if err != nil {
		return nil, err
	}

	p, err := o.project(root)

	if err != nil {
		return nil, err
	}

	return p.store.CategoryCounts(ctx, root)
}
