// Package versioning mints timestamped copies of documents into the internal
// files area of a project and keeps the store in step with that area.
package versioning

import (
	"context"
	"errors"
	"fmt"
	"github.com/natefinch/atomic"
	"io"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"set-tools/config"
	"set-tools/crypto"
	"set-tools/models"
	"set-tools/scanner"
	"set-tools/store"
	"set-tools/utils"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	versionsDirName = "versions"
	tracksDirName   = "liveSetTracks"
)

type SkipReason string

const (
	SkipReservedName SkipReason = "reserved name"
	SkipSameInstant  SkipReason = "version exists at this instant"
	SkipUnchanged    SkipReason = "identical to latest version"
)

// Result of a commit. Item is set only when a version was written.
type Result struct {
	Skipped bool
	Reason  SkipReason
	Item    *models.ProjectItem
}

type VersionControl struct {
	Config *config.Config
	Store  *store.Store
	// Now is replaceable so that tests can pin the commit instant
	Now func() time.Time
	// mutex serializes everything that writes to the files area
	mutex sync.Mutex
}

func New(c *config.Config, s *store.Store) *VersionControl {
	return &VersionControl{
		Config: c,
		Store:  s,
		Now:    time.Now,
	}
}

type commitRequest struct {
	source      string
	parentPath  string
	projectPath string
	directory   string
	category    models.Category
	comment     string
	decorate    func(item *models.ProjectItem)
}

// Commit copies docPath into files/<docBase>/versions/<timestamp><ext> unless
// the name is reserved, a version already exists at this second or the
// document is byte-identical to its most recent version.
func (vc *VersionControl) Commit(ctx context.Context, docPath, comment string) (*Result, error) {
	if scanner.HasReservedPrefix(filepath.Base(docPath)) {
		return &Result{Skipped: true, Reason: SkipReservedName}, nil
	}

	err := vc.checkDocument(docPath)

	if err != nil {
		return nil, err
	}

	projectPath := scanner.ProjectRoot(vc.Config, docPath)

	return vc.commit(ctx, commitRequest{
		source:      docPath,
		parentPath:  docPath,
		projectPath: projectPath,
		directory:   filepath.Join(vc.Config.FilesPath(projectPath), scanner.Stem(docPath), versionsDirName),
		category:    models.CategoryVersion,
		comment:     comment,
	})
}

// CommitTrack versions an extracted track of sourcePath under
// files/<docBase>/liveSetTracks/<trackID>/<timestamp><ext>.
func (vc *VersionControl) CommitTrack(ctx context.Context, sourcePath string, trackID int, subprojectPath, comment string) (*Result, error) {
	if scanner.HasReservedPrefix(filepath.Base(sourcePath)) {
		return &Result{Skipped: true, Reason: SkipReservedName}, nil
	}

	err := vc.checkDocument(subprojectPath)

	if err != nil {
		return nil, err
	}

	projectPath := scanner.ProjectRoot(vc.Config, sourcePath)
	sourceName := filepath.Base(sourcePath)

	var trackName *string
	sidecar, err := scanner.ReadSidecar(subprojectPath)

	if err != nil {
		log.Printf("Could not read sidecar of \"%s\": %v", subprojectPath, err)
	}

	if sidecar != nil && sidecar.SourceTrackName != "" {
		trackName = &sidecar.SourceTrackName
	}

	return vc.commit(ctx, commitRequest{
		source:      subprojectPath,
		parentPath:  sourcePath,
		projectPath: projectPath,
		directory:   filepath.Join(vc.Config.FilesPath(projectPath), scanner.Stem(sourcePath), tracksDirName, strconv.Itoa(trackID)),
		category:    models.CategorySubprojectVersion,
		comment:     comment,
		decorate: func(item *models.ProjectItem) {
			id := trackID
			item.SourceDocumentName = &sourceName
			item.SourceTrackID = &id
			item.SourceTrackName = trackName
			item.ExtractedAt = item.FileModifiedAt
		},
	})
}

func (vc *VersionControl) checkDocument(docPath string) error {
	if !strings.EqualFold(filepath.Ext(docPath), vc.Config.DocumentExtension) {
		return fmt.Errorf("%w: %s", ErrNotADocument, docPath)
	}

	if !utils.IsFile(docPath) {
		return fmt.Errorf("%w: %s", os.ErrNotExist, docPath)
	}

	return nil
}

func (vc *VersionControl) commit(ctx context.Context, request commitRequest) (*Result, error) {
	vc.mutex.Lock()
	defer vc.mutex.Unlock()

	now := vc.Now().Truncate(time.Second)
	timestamp := scanner.FormatTimestamp(now)
	versionPath := filepath.Join(request.directory, timestamp+filepath.Ext(request.source))

	if utils.IsFile(versionPath) {
		return &Result{Skipped: true, Reason: SkipSameInstant}, nil
	}

	latest, err := vc.latestIn(ctx, request)

	if err != nil {
		return nil, err
	}

	if latest != nil {
		identical, err := utils.CompareFiles(request.source, latest.Path)

		if err != nil {
			return nil, err
		}

		if identical {
			return &Result{Skipped: true, Reason: SkipUnchanged}, nil
		}
	}

	err = copyFile(request.source, versionPath)

	// Another process took this instant between the check and the copy
	if errors.Is(err, errVersionExists) {
		return &Result{Skipped: true, Reason: SkipSameInstant}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("could not copy \"%s\": %w", request.source, err)
	}

	if request.comment != "" {
		err = WriteComment(versionPath, request.comment)

		if err != nil {
			return nil, err
		}
	}

	hash, err := crypto.HashFile(versionPath)

	if err != nil {
		return nil, err
	}

	parentPath := request.parentPath
	item := models.ProjectItem{
		Path:           versionPath,
		ProjectPath:    request.projectPath,
		Category:       request.category,
		FileModifiedAt: &now,
		Comment:        request.comment,
		ContentHash:    &hash,
		ParentPath:     &parentPath,
	}

	if request.decorate != nil {
		request.decorate(&item)
	}

	err = vc.Store.InsertItems(ctx, []models.ProjectItem{item})

	if err != nil {
		return nil, err
	}

	log.Printf("Committed \"%s\" as \"%s\"", request.source, versionPath)

	return &Result{Item: &item}, nil
}

// latestIn finds the most recent recorded version inside the target directory
// whose file still exists.
func (vc *VersionControl) latestIn(ctx context.Context, request commitRequest) (*models.ProjectItem, error) {
	if request.category == models.CategoryVersion {
		latest, err := vc.Store.LatestVersion(ctx, request.parentPath, request.category)

		if err != nil || latest == nil {
			return nil, err
		}

		if utils.IsFile(latest.Path) {
			return latest, nil
		}

		return nil, nil
	}

	items, err := vc.Store.ItemsByParent(ctx, request.parentPath, request.category)

	if err != nil {
		return nil, err
	}

	for i := range items {
		if filepath.Dir(items[i].Path) == request.directory && utils.IsFile(items[i].Path) {
			return &items[i], nil
		}
	}

	return nil, nil
}

func (vc *VersionControl) List(ctx context.Context, docPath string) ([]models.ProjectItem, error) {
	return vc.Store.ItemsByParent(ctx, docPath, models.CategoryVersion)
}

var errVersionExists = errors.New("version file already exists")

// copyFile never replaces an existing version. The copy is staged next to
// the destination and hard linked into place, which fails if the name is
// taken.
func copyFile(source, destination string) error {
	directory := filepath.Dir(destination)
	err := os.MkdirAll(directory, 0750)

	if err != nil {
		return err
	}

	file, err := os.Open(path.Clean(source))

	if err != nil {
		return err
	}

	defer file.Close()

	staging, err := os.CreateTemp(directory, ".staging-*")

	if err != nil {
		return err
	}

	stagingPath := staging.Name()
	staging.Close()
	defer os.Remove(stagingPath)

	err = atomic.WriteFile(stagingPath, file)

	if err != nil {
		return err
	}

	err = os.Link(stagingPath, destination)

	if errors.Is(err, fs.ErrExist) {
		return errVersionExists
	}

	if err == nil {
		return nil
	}

	// Volumes without hard links, exFAT drives for example
	log.Printf("Could not link \"%s\", copying exclusively: %v", destination, err)

	return copyExclusive(stagingPath, destination)
}

func copyExclusive(source, destination string) error {
	input, err := os.Open(path.Clean(source))

	if err != nil {
		return err
	}

	defer input.Close()

	output, err := os.OpenFile(path.Clean(destination), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)

	if errors.Is(err, fs.ErrExist) {
		return errVersionExists
	}

	if err != nil {
		return err
	}

	_, err = io.Copy(output, input)

	if err == nil {
		err = output.Sync()
	}

	closeErr := output.Close()

	if err == nil {
		err = closeErr
	}

	if err != nil {
		os.Remove(destination)
	}

	return err
}

func commentPath(versionPath string) string {
	return strings.TrimSuffix(versionPath, filepath.Ext(versionPath)) + scanner.CommentSuffix
}

func readComment(versionPath string) string {
	data, err := os.ReadFile(path.Clean(commentPath(versionPath)))

	if err != nil {
		return ""
	}

	return string(data)
}

// WriteComment replaces the comment file of a version. An empty comment
// removes it.
func WriteComment(versionPath, comment string) error {
	if comment == "" {
		err := os.Remove(commentPath(versionPath))

		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return err
	}

	return atomic.WriteFile(commentPath(versionPath), strings.NewReader(comment))
}
