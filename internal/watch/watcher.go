// Package watch turns filesystem activity on chat.db into bus events.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/matheus3301/imv/internal/bus"
	"github.com/matheus3301/imv/internal/status"
)

// DefaultDebounce coalesces bursts of writes into one store.changed event.
const DefaultDebounce = 500 * time.Millisecond

// Watcher observes the directory holding chat.db. Writes to chat.db or its
// WAL and shared-memory files publish a debounced store.changed; removing
// chat.db publishes store.unavailable at once and recreating it restores
// the Ready state.
type Watcher struct {
	path     string
	bus      *bus.Bus
	machine  *status.Machine
	logger   *zap.Logger
	debounce time.Duration

	fsw    *fsnotify.Watcher
	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu      sync.Mutex
	timer   *time.Timer
	missing bool
	restore func(context.Context) error
}

// restoreTimeout bounds the OnRestore hook.
const restoreTimeout = 5 * time.Second

// New creates a watcher for the chat.db at path. machine may be nil.
func New(path string, b *bus.Bus, machine *status.Machine, logger *zap.Logger, debounce time.Duration) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		path:     filepath.Clean(path),
		bus:      b,
		machine:  machine,
		logger:   logger,
		debounce: debounce,
	}
}

// OnRestore sets a hook run when chat.db reappears after removal. If it
// fails the state stays Unavailable and the next recreation retries.
// Call it before Start.
func (w *Watcher) OnRestore(fn func(context.Context) error) {
	w.mu.Lock()
	w.restore = fn
	w.mu.Unlock()
}

// Start begins watching. It returns once the watch is registered.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.fsw = fsw

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
	w.logger.Info("watching chat.db", zap.String("path", w.path))
	return nil
}

// Stop ends the watch and drops any pending debounced event.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.fsw != nil {
		_ = w.fsw.Close()
	}
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) relevant(name string) bool {
	switch filepath.Clean(name) {
	case w.path, w.path + "-wal", w.path + "-shm":
		return true
	}
	return false
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !w.relevant(event.Name) {
		return
	}
	if filepath.Clean(event.Name) == w.path {
		if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
			if _, err := os.Stat(w.path); os.IsNotExist(err) {
				w.markMissing()
				return
			}
		}
		if event.Has(fsnotify.Create) {
			w.markPresent()
		}
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
		w.schedule(filepath.Base(event.Name))
	}
}

func (w *Watcher) markMissing() {
	w.mu.Lock()
	already := w.missing
	w.missing = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()
	if already {
		return
	}
	w.logger.Warn("chat.db removed", zap.String("path", w.path))
	w.transition(status.Unavailable, "chat.db removed")
	w.bus.Emit(bus.KindStoreUnavailable, w.path)
}

func (w *Watcher) markPresent() {
	w.mu.Lock()
	was := w.missing
	w.missing = false
	restore := w.restore
	w.mu.Unlock()
	if !was {
		return
	}
	if restore != nil {
		ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
		err := restore(ctx)
		cancel()
		if err != nil {
			w.logger.Warn("chat.db reappeared but cannot be reopened", zap.String("path", w.path), zap.Error(err))
			w.mu.Lock()
			w.missing = true
			w.mu.Unlock()
			w.transition(status.Unavailable, "reopen chat.db: "+err.Error())
			return
		}
	}
	w.logger.Info("chat.db restored", zap.String("path", w.path))
	w.transition(status.Ready, "")
}

func (w *Watcher) transition(to status.State, reason string) {
	if w.machine == nil {
		return
	}
	if err := w.machine.TransitionReason(to, reason); err != nil {
		w.logger.Debug("status not changed", zap.String("to", string(to)), zap.Error(err))
	}
}

func (w *Watcher) schedule(file string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		w.timer = nil
		missing := w.missing
		w.mu.Unlock()
		if missing {
			return
		}
		w.logger.Debug("chat.db changed", zap.String("file", file))
		w.bus.Emit(bus.KindStoreChanged, file)
	})
}
