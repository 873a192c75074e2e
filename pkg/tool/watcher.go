package tool

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher monitors the schema file and its library directory and reloads the
// manager when a relevant file changes. Editors often emit bursts of events
// for one save, so events are debounced per path.
type Watcher struct {
	watcher            *fsnotify.Watcher
	manager            *Manager
	stabilityThreshold time.Duration
	done               chan struct{}
	debounceTimers     map[string]*time.Timer
	debounceMu         sync.Mutex
	stopOnce           sync.Once
}

// NewWatcher creates a watcher for the manager's schema file. A zero
// stabilityThreshold defaults to 100ms.
func NewWatcher(manager *Manager, stabilityThreshold time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	if stabilityThreshold == 0 {
		stabilityThreshold = 100 * time.Millisecond
	}

	return &Watcher{
		watcher:            fsw,
		manager:            manager,
		stabilityThreshold: stabilityThreshold,
		done:               make(chan struct{}),
		debounceTimers:     make(map[string]*time.Timer),
	}, nil
}

// Start begins watching the schema directory and the toolset library
// directory if one exists.
func (w *Watcher) Start() error {
	schemaDir := filepath.Dir(w.manager.SchemaPath())
	if err := w.watcher.Add(schemaDir); err != nil {
		return fmt.Errorf("failed to watch schema directory: %w", err)
	}

	libDir := w.manager.Schema().LibraryDir
	if !filepath.IsAbs(libDir) {
		libDir = filepath.Join(schemaDir, libDir)
	}
	// Best effort: the library directory only exists when toolsets are used.
	if err := w.watcher.Add(libDir); err == nil {
		log.Debug().Str("path", libDir).Msg("Watching toolset library directory")
	}

	go w.eventLoop()

	log.Info().
		Str("path", w.manager.SchemaPath()).
		Msg("Schema watcher started")

	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	clear(w.debounceTimers)
	w.debounceMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	log.Info().Msg("Schema watcher stopped")
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.isRelevant(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	w.debounceEvent(event)
}

func (w *Watcher) debounceEvent(event fsnotify.Event) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, exists := w.debounceTimers[event.Name]; exists {
		timer.Stop()
	}

	name := event.Name
	w.debounceTimers[name] = time.AfterFunc(w.stabilityThreshold, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, name)
		w.debounceMu.Unlock()

		select {
		case <-w.done:
			return
		default:
			w.reload(name)
		}
	})
}

func (w *Watcher) reload(trigger string) {
	if err := w.manager.Reload(); err != nil {
		log.Error().
			Err(err).
			Str("trigger", trigger).
			Msg("Schema reload failed, keeping previous collection")
		return
	}
	log.Info().Str("trigger", trigger).Msg("Schema reloaded")
}

// isRelevant reports whether a change to the path can affect the loaded
// collection: the schema file itself or any tool collection file.
func (w *Watcher) isRelevant(path string) bool {
	if path == w.manager.SchemaPath() {
		return true
	}
	base := filepath.Base(path)
	return strings.HasSuffix(base, ".mci.json") ||
		strings.HasSuffix(base, ".mci.yaml") ||
		strings.HasSuffix(base, ".mci.yml")
}
