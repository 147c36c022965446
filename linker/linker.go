// Package linker stamps the tracks of main documents with the subproject
// files that were extracted from them.
package linker

import (
	"context"
	"log"
	"path/filepath"
	"set-tools/config"
	"set-tools/models"
	"set-tools/scanner"
	"set-tools/store"
)

type Linker struct {
	Config *config.Config
	Store  *store.Store
}

func New(c *config.Config, s *store.Store) *Linker {
	return &Linker{Config: c, Store: s}
}

// Link maps every source track id of mainPath to its most recently extracted
// subproject and stamps the matching tracks. Copies kept in the internal files
// area are history, not links. Returns the number of tracks stamped.
func (l *Linker) Link(ctx context.Context, mainPath string) (int, error) {
	subprojects, err := l.Store.SubprojectsForSource(ctx, filepath.Base(mainPath))

	if err != nil {
		return 0, err
	}

	links := make(map[int]string)
	projectPath := filepath.Dir(mainPath)

	// Ordered by extraction time so the latest one wins
	for _, subproject := range subprojects {
		if subproject.SourceTrackID == nil || scanner.IsInternalPath(l.Config, projectPath, subproject.Path) {
			continue
		}

		links[*subproject.SourceTrackID] = subproject.Path
	}

	updated, err := l.Store.SetTrackLinks(ctx, mainPath, links)

	return int(updated), err
}

// LinkProject links every main document of a project.
func (l *Linker) LinkProject(ctx context.Context, root string) (int, error) {
	mains, err := l.Store.ItemsByCategory(ctx, filepath.Clean(root), models.CategoryMain)

	if err != nil {
		return 0, err
	}

	total := 0

	for _, item := range mains {
		linked, err := l.Link(ctx, item.Path)

		if err != nil {
			return total, err
		}

		total += linked
	}

	if total > 0 {
		log.Printf("Linked %d tracks to subprojects in \"%s\"", total, root)
	}

	return total, nil
}
