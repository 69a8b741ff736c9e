// Package watch reports debounced changes to spec files so checks can be
// re-run while specs are edited.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a batch is emitted.
const DefaultDebounce = 300 * time.Millisecond

// DefaultPatterns match spec documents and domain manifests.
var DefaultPatterns = []string{"**/*.md", "**/_manifest.yaml"}

// DefaultExcludeDirs are never watched.
var DefaultExcludeDirs = []string{".git", "node_modules", ".obsidian"}

// Config configures a Watcher.
type Config struct {
	Debounce time.Duration
	// Patterns are doublestar patterns matched against slash-separated paths
	// relative to the watched directory.
	Patterns    []string
	ExcludeDirs []string
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = DefaultDebounce
	}
	if len(c.Patterns) == 0 {
		c.Patterns = DefaultPatterns
	}
	if c.ExcludeDirs == nil {
		c.ExcludeDirs = DefaultExcludeDirs
	}
	return c
}

// Op is the kind of change.
type Op string

// Change operations.
const (
	OpCreate Op = "create"
	OpModify Op = "modify"
	OpDelete Op = "delete"
)

// Change is one changed file.
type Change struct {
	// Path is relative to the watched directory, slash-separated.
	Path    string
	AbsPath string
	Op      Op
}

// Batch is the set of changes collected during one quiet period, sorted by
// path.
type Batch struct {
	Changes []Change
	At      time.Time
}

// Paths returns the changed paths.
func (b Batch) Paths() []string {
	out := make([]string, len(b.Changes))
	for i, c := range b.Changes {
		out[i] = c.Path
	}
	return out
}

// Watcher watches a spec tree recursively.
type Watcher struct {
	cfg      Config
	dir      string
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
	excludes map[string]bool

	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op

	// hashes is owned by the event goroutine after Start.
	hashes map[string]string

	batches chan Batch
	kick    chan struct{}
}

// New creates a Watcher for dir.
func New(dir string, cfg Config, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	excludes := make(map[string]bool, len(cfg.ExcludeDirs))
	for _, d := range cfg.ExcludeDirs {
		excludes[d] = true
	}

	return &Watcher{
		cfg:      cfg,
		dir:      dir,
		fsw:      fsw,
		logger:   logger,
		excludes: excludes,
		pending:  make(map[string]fsnotify.Op),
		hashes:   make(map[string]string),
		batches:  make(chan Batch, 8),
		kick:     make(chan struct{}, 1),
	}, nil
}

// Batches returns the channel of debounced change batches. It is closed when
// the watcher stops.
func (w *Watcher) Batches() <-chan Batch {
	return w.batches
}

// Start records the current content of every matching file, adds watches
// recursively and begins processing events.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.addWatchesRecursive(w.dir, false); err != nil {
		return err
	}
	w.logger.Info("Spec watcher started",
		slog.String("dir", w.dir),
		slog.Duration("debounce", w.cfg.Debounce),
		slog.Int("files", len(w.hashes)))

	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher. The batch channel is closed by the event loop.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

// Matches reports whether a path relative to the watched directory is a
// watched file.
func (w *Watcher) Matches(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if w.excludes[part] {
			return false
		}
	}
	for _, p := range w.cfg.Patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// addWatchesRecursive watches every directory under root. Matching files are
// hashed; with queue set they are also queued as changes, which covers files
// written into a new directory before its watch was added.
func (w *Watcher) addWatchesRecursive(root string, queue bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel := w.rel(path)
			if !w.Matches(rel) {
				return nil
			}
			if queue {
				w.enqueue(path, fsnotify.Create)
			} else if content, err := os.ReadFile(path); err == nil {
				w.hashes[rel] = contentHash(content)
			}
			return nil
		}

		base := d.Name()
		if path != root && (w.excludes[base] || strings.HasPrefix(base, ".")) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", slog.String("path", path), slog.String("error", err.Error()))
		} else {
			w.logger.Debug("Watching directory", slog.String("path", path))
		}
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.batches)
	timer := time.NewTimer(w.cfg.Debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.handleFSEvent(event) {
				timer.Reset(w.cfg.Debounce)
			}

		case <-w.kick:
			timer.Reset(w.cfg.Debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", slog.String("error", err.Error()))

		case <-timer.C:
			batch := w.flushPending()
			if len(batch.Changes) == 0 {
				continue
			}
			select {
			case w.batches <- batch:
			case <-ctx.Done():
				return
			}
		}
	}
}

// handleFSEvent queues a relevant event and reports whether it did.
func (w *Watcher) handleFSEvent(event fsnotify.Event) bool {
	path := event.Name
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			base := filepath.Base(path)
			if w.excludes[base] || strings.HasPrefix(base, ".") {
				return false
			}
			if err := w.addWatchesRecursive(path, true); err != nil {
				w.logger.Warn("Failed to watch new directory", slog.String("path", path), slog.String("error", err.Error()))
			}
			return w.hasPending()
		}
	}
	if !w.Matches(w.rel(path)) {
		return false
	}
	w.enqueue(path, event.Op)
	w.logger.Debug("Spec change detected", slog.String("path", w.rel(path)), slog.String("op", event.Op.String()))
	return true
}

func (w *Watcher) enqueue(path string, op fsnotify.Op) {
	w.pendingMu.Lock()
	w.pending[path] |= op
	w.pendingMu.Unlock()
}

func (w *Watcher) hasPending() bool {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	return len(w.pending) > 0
}

// Notify queues path as changed, as if the filesystem had reported it.
func (w *Watcher) Notify(path string) {
	w.enqueue(path, fsnotify.Write)
	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// flushPending turns queued events into a batch, dropping files whose content
// did not change.
func (w *Watcher) flushPending() Batch {
	w.pendingMu.Lock()
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	batch := Batch{At: time.Now()}
	for path := range toProcess {
		rel := w.rel(path)
		change := Change{Path: rel, AbsPath: path}

		content, err := os.ReadFile(path)
		if err != nil {
			if _, had := w.hashes[rel]; !had {
				continue
			}
			delete(w.hashes, rel)
			change.Op = OpDelete
			batch.Changes = append(batch.Changes, change)
			continue
		}

		hash := contentHash(content)
		old, had := w.hashes[rel]
		if had && old == hash {
			continue
		}
		w.hashes[rel] = hash
		change.Op = OpModify
		if !had {
			change.Op = OpCreate
		}
		batch.Changes = append(batch.Changes, change)
	}
	sort.Slice(batch.Changes, func(i, j int) bool { return batch.Changes[i].Path < batch.Changes[j].Path })
	return batch
}

func (w *Watcher) rel(path string) string {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Run starts the watcher and calls onChange for every batch until ctx is
// done. onChange runs on the caller's goroutine, one batch at a time.
func (w *Watcher) Run(ctx context.Context, onChange func(context.Context, Batch)) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-w.batches:
			if !ok {
				return nil
			}
			onChange(ctx, b)
		}
	}
}
