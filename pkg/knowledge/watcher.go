package knowledge

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/entrhq/recall/pkg/logging"
)

// DefaultWatchDebounce is the quiet period after the last fact-log event
// before a rebuild is triggered. Editors and concurrent sessions tend to
// produce bursts of writes.
const DefaultWatchDebounce = 500 * time.Millisecond

// Watcher keeps the derived search index and graph current by watching the
// project's knowledge folders and triggering an incremental rebuild after
// fact logs change.
type Watcher struct {
	projectRoot string
	builder     *IndexBuilder
	watcher     *fsnotify.Watcher
	debounce    time.Duration
	log         *logging.Logger
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewWatcher creates a watcher over projectRoot. Pass 0 to use
// DefaultWatchDebounce.
func NewWatcher(projectRoot string, builder *IndexBuilder, debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}
	log, _ := logging.NewLogger("knowledge.watcher")

	w := &Watcher{
		projectRoot: projectRoot,
		builder:     builder,
		watcher:     fsw,
		debounce:    debounce,
		log:         log,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	return w, nil
}

// Start registers watches on the project root and every existing knowledge
// folder, then begins processing events. Non-blocking.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.projectRoot); err != nil {
		return err
	}

	// Watch existing knowledge folders. New ones are picked up from create
	// events on their parent directories as they appear.
	err := filepath.WalkDir(w.projectRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				w.log.Warnf("failed to watch %s: %v", path, err)
			}
		}
		return nil
	})
	if err != nil {
		w.log.Warnf("watch registration walk failed: %v", err)
	}

	go w.run()
	w.log.Infof("watching %s for fact log changes", w.projectRoot)
	return nil
}

// Close stops the watcher and waits for the event loop to drain.
func (w *Watcher) Close() error {
	close(w.stopCh)
	err := w.watcher.Close()
	<-w.doneCh
	return err
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != 0 {
				// A new directory may contain (or become) a knowledge folder.
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					if err := w.watcher.Add(event.Name); err == nil {
						w.log.Debugf("watching new directory %s", event.Name)
					}
				}
			}
			if filepath.Base(event.Name) != FactLogName {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerCh:
			if err := w.builder.RebuildAll(w.projectRoot); err != nil {
				w.log.Errorf("rebuild after fact log change failed: %v", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warnf("watch error: %v", err)
		}
	}
}
