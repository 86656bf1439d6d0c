package source

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	eventChannelBuffer = 100
	defaultDebounce    = 500 * time.Millisecond
)

// WatchConfig configures a Watcher.
type WatchConfig struct {
	// Debounce is how long changes accumulate before they are emitted.
	Debounce time.Duration
	// Patterns select files relative to the watched root. Empty means every
	// supported document.
	Patterns []string
	// ExcludeDirs lists directory names to skip. Hidden directories are
	// always skipped.
	ExcludeDirs []string
}

// ChangeOp is the kind of change a ChangeEvent reports.
type ChangeOp string

// Change operations.
const (
	OpCreate ChangeOp = "create"
	OpModify ChangeOp = "modify"
	OpDelete ChangeOp = "delete"
)

// ChangeEvent reports a debounced, content-changed document.
type ChangeEvent struct {
	// Path is relative to the watched root.
	Path    string
	AbsPath string
	Op      ChangeOp
	Hash    string
}

// Watcher emits ChangeEvents for documents under a root directory. Writes
// that leave the content hash unchanged are suppressed.
type Watcher struct {
	config   WatchConfig
	root     string
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
	excludes map[string]bool

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	hashMu sync.RWMutex
	hashes map[string]string

	events  chan ChangeEvent
	dropped atomic.Int64
}

// NewWatcher creates a watcher rooted at dir.
func NewWatcher(config WatchConfig, dir string, logger *slog.Logger) (*Watcher, error) {
	if err := ValidatePatterns(config.Patterns); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.Debounce <= 0 {
		config.Debounce = defaultDebounce
	}

	excludes := map[string]bool{"node_modules": true, "vendor": true}
	if len(config.ExcludeDirs) > 0 {
		excludes = make(map[string]bool, len(config.ExcludeDirs))
		for _, d := range config.ExcludeDirs {
			excludes[d] = true
		}
	}

	return &Watcher{
		config:   config,
		root:     dir,
		fsw:      fsw,
		logger:   logger,
		excludes: excludes,
		pending:  make(map[string]fsnotify.Op),
		hashes:   make(map[string]string),
		events:   make(chan ChangeEvent, eventChannelBuffer),
	}, nil
}

// Events returns the channel of change events. It is closed when the
// watcher stops.
func (w *Watcher) Events() <-chan ChangeEvent {
	return w.events
}

// Start records the hashes of existing documents, so only later edits are
// reported, and begins watching.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root, true); err != nil {
		return err
	}
	go w.run(ctx)

	w.logger.Info("Watching requirements",
		"dir", w.root,
		"debounce", w.config.Debounce,
		"patterns", w.config.Patterns)
	return nil
}

// Stop closes the underlying watcher.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

// Dropped returns the number of events dropped because the channel was full.
func (w *Watcher) Dropped() int64 {
	return w.dropped.Load()
}

func (w *Watcher) skipDir(path string) bool {
	base := filepath.Base(path)
	if path == w.root {
		return false
	}
	return w.excludes[base] || strings.HasPrefix(base, ".")
}

// addRecursive watches root and its subdirectories. With seed set, existing
// documents are hashed so they are not reported as new.
func (w *Watcher) addRecursive(root string, seed bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if !seed {
				return nil
			}
			if rel, ok := w.relevant(path); ok {
				if content, err := os.ReadFile(path); err == nil {
					w.setHash(rel, ContentHash(content))
				}
			}
			return nil
		}
		if w.skipDir(path) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

// relevant returns the root-relative path when path is a watched document.
func (w *Watcher) relevant(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return rel, Match(w.config.Patterns, rel)
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.config.Debounce)
	defer ticker.Stop()

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
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !w.skipDir(event.Name) {
				if err := w.addRecursive(event.Name, false); err != nil {
					w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
				}
			}
			return
		}
	}

	rel, ok := w.relevant(event.Name)
	if !ok {
		return
	}

	w.pendingMu.Lock()
	w.pending[event.Name] |= event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("Requirements change detected", "path", rel, "op", event.Op.String())
}

func (w *Watcher) flush(ctx context.Context) {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	for path, op := range toProcess {
		if ctx.Err() != nil {
			return
		}
		rel, _ := filepath.Rel(w.root, path)
		event := ChangeEvent{Path: rel, AbsPath: path}

		content, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			if _, had := w.hash(rel); had {
				w.deleteHash(rel)
				event.Op = OpDelete
				w.send(event)
			}
			continue
		}
		if err != nil {
			w.logger.Warn("Failed to read changed file", "path", rel, "error", err)
			continue
		}

		newHash := ContentHash(content)
		oldHash, had := w.hash(rel)
		if had && oldHash == newHash {
			continue
		}
		w.setHash(rel, newHash)

		event.Hash = newHash
		if op.Has(fsnotify.Create) || !had {
			event.Op = OpCreate
		} else {
			event.Op = OpModify
		}
		w.send(event)
	}
}

func (w *Watcher) send(event ChangeEvent) {
	select {
	case w.events <- event:
	default:
		dropped := w.dropped.Add(1)
		w.logger.Warn("Event channel full, dropping event", "path", event.Path, "total_dropped", dropped)
	}
}

func (w *Watcher) hash(rel string) (string, bool) {
	w.hashMu.RLock()
	defer w.hashMu.RUnlock()
	h, ok := w.hashes[rel]
	return h, ok
}

func (w *Watcher) setHash(rel, hash string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	w.hashes[rel] = hash
}

func (w *Watcher) deleteHash(rel string) {
	w.hashMu.Lock()
	defer w.hashMu.Unlock()
	delete(w.hashes, rel)
}
