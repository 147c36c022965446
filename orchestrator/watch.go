package orchestrator

import (
	"context"
	"fmt"
	"github.com/fsnotify/fsnotify"
	"log"
	"path/filepath"
	"set-tools/utils"
	"strings"
	"time"
)

// Watch rescans the project whenever documents in its root or backup
// directory change. A burst of events within WatchDebounce of each other
// results in a single rescan. Watch returns when ctx is done.
func (o *Orchestrator) Watch(ctx context.Context, root string) error {
	root, err := cleanRoot(root)

	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()

	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	defer watcher.Close()

	err = watcher.Add(root)

	if err != nil {
		return fmt.Errorf("failed to watch \"%s\": %w", root, err)
	}

	backupPath := filepath.Join(root, o.config.BackupDirName)

	if utils.IsDir(backupPath) {
		err = watcher.Add(backupPath)

		if err != nil {
			return fmt.Errorf("failed to watch \"%s\": %w", backupPath, err)
		}
	}

	trigger := make(chan struct{}, 1)
	var timer *time.Timer

	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// A backup directory created after the watch started
			if event.Has(fsnotify.Create) && event.Name == backupPath && utils.IsDir(backupPath) {
				err = watcher.Add(backupPath)

				if err != nil {
					log.Printf("Could not watch \"%s\": %v", backupPath, err)
				}

				continue
			}

			if !o.isWatchedDocument(root, event.Name) {
				continue
			}

			if timer == nil {
				timer = time.AfterFunc(o.config.WatchDebounce, func() {
					select {
					case trigger <- struct{}{}:
					default:
					}
				})
			} else {
				timer.Reset(o.config.WatchDebounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			log.Printf("Watcher error: %v", err)

		case <-trigger:
			report, err := o.Rescan(ctx, root)

			if err != nil {
				log.Printf("Rescan of \"%s\" failed: %v", root, err)
			} else {
				log.Printf("Rescanned \"%s\": %s", root, report)
			}

			if o.onRescan != nil {
				o.onRescan(report, err)
			}
		}
	}
}

// isWatchedDocument ignores the internal metadata area and every file that is
// not a document, sidecars and comment files included.
func (o *Orchestrator) isWatchedDocument(root, eventPath string) bool {
	metadataPath := filepath.Clean(o.config.MetadataPath(root))

	if eventPath == metadataPath || strings.HasPrefix(eventPath, metadataPath+string(filepath.Separator)) {
		return false
	}

	return strings.EqualFold(filepath.Ext(eventPath), o.config.DocumentExtension)
}
