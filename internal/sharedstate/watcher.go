package sharedstate

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the window within which rapid record writes coalesce
// into a single notification. Atomic renames produce several fs events per
// write; consumers only care that the record changed.
const DefaultDebounce = 250 * time.Millisecond

// Watcher turns filesystem events on the shared record into change
// callbacks. It is an optional upgrade over pure lifecycle-triggered
// polling: the reconciliation algorithm is unchanged, a watch event is just
// an extra activation.
type Watcher struct {
	fw       *fsnotify.Watcher
	path     string
	debounce time.Duration
	logger   *slog.Logger
	onChange func()
	done     chan struct{}
}

// NewWatcher watches the store's record file and invokes onChange after
// each (debounced) mutation. Call Start to begin and Close to stop.
func NewWatcher(store *Store, debounce time.Duration, onChange func(), logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	// Watch the directory, not the file: atomic renames replace the inode,
	// and a watch on the old inode goes quiet after the first write.
	if err := fw.Add(filepath.Dir(store.Path())); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch shared dir: %w", err)
	}
	return &Watcher{
		fw:       fw,
		path:     store.Path(),
		debounce: debounce,
		logger:   logger,
		onChange: onChange,
		done:     make(chan struct{}),
	}, nil
}

// Start runs the event loop until Close is called.
func (w *Watcher) Start() {
	go w.loop()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Name != w.path {
				continue
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("shared record watch error", "error", err)
		case <-timerC:
			timer = nil
			timerC = nil
			w.onChange()
		}
	}
}

// Close stops the watcher and releases the fsnotify handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}
