package prompt

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// reloadDelay lets editors finish writing before the file is re-read.
const reloadDelay = 100 * time.Millisecond

// Watcher reloads a Store whenever its prompt file changes on disk.
type Watcher struct {
	store   *Store
	path    string
	log     zerolog.Logger
	watcher *fsnotify.Watcher
}

// NewWatcher watches the directory holding path, since editors and config
// management usually replace the file rather than write it in place.
func NewWatcher(store *Store, path string, log zerolog.Logger) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve prompts path: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(absPath)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}
	return &Watcher{
		store:   store,
		path:    absPath,
		log:     log.With().Str("component", "prompt-watcher").Logger(),
		watcher: fw,
	}, nil
}

// Run blocks until ctx is cancelled or the watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	w.log.Info().Str("path", w.path).Msg("watching prompt file")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			select {
			case <-time.After(reloadDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			if err := w.store.Reload(w.path); err != nil {
				w.log.Error().Err(err).Msg("prompt reload rejected, keeping previous set")
				continue
			}
			w.log.Info().Strs("variants", w.store.Variants()).Msg("prompts reloaded")

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.log.Error().Err(err).Msg("watcher error")
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
