package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/akolanti/AskStan/internal/domain/commonModels"
	"github.com/akolanti/AskStan/pkg/logger_i"
	"github.com/fsnotify/fsnotify"
)

// Watch calls handle for every supported file created or rewritten in dir, once
// the file has stopped changing for settle. It returns when ctx is done.
func Watch(ctx context.Context, dir string, settle time.Duration, handle func(ctx context.Context, path string) error) error {
	log := logger_i.NewLogger("ingest_watch").With("dir", dir)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log.Info("Watching for documents")

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(max(settle/2, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if getDocType(event.Name) == commonModels.ERR {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", "error", err)

		case now := <-ticker.C:
			for path, seen := range pending {
				if now.Sub(seen) < settle {
					continue
				}
				delete(pending, path)
				log.Info("Ingesting changed document", "path", path)
				if err := handle(ctx, path); err != nil {
					log.Error("ingestion failed", "path", path, "error", err)
				}
			}
		}
	}
}
