package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/patternd/internal/engine"
	"github.com/fyrsmithlabs/patternd/internal/evolution"
	"github.com/fyrsmithlabs/patternd/internal/logging"
	"github.com/fyrsmithlabs/patternd/internal/pattern"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

const (
	// ProcessedDir receives successfully ingested bundle files.
	ProcessedDir = "processed"
	// FailedDir receives bundle files that could not be ingested.
	FailedDir = "failed"

	// DefaultSettle is how long a file must go without writes before it is read.
	DefaultSettle = 250 * time.Millisecond
)

// Recorder is the engine surface the inbox drives.
type Recorder interface {
	RecordObservation(ctx context.Context, scope pattern.Scope, fragments []pattern.Fragment, sessionID string) (*engine.ObservationResult, error)
	RunEvolution(ctx context.Context, scope pattern.Scope) (*evolution.Report, error)
}

// Result describes how one bundle file was handled.
type Result struct {
	// File is the bundle's path after it was moved.
	File        string
	Observation *engine.ObservationResult
	Evolution   *evolution.Report
	Err         error
}

// Watcher ingests bundle files from a directory.
type Watcher struct {
	dir      string
	recorder Recorder
	logger   *zap.Logger
	settle   time.Duration
	evolve   bool

	watcher *fsnotify.Watcher
	started bool
	results chan Result
	ready   chan string
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithSettle sets the quiet period before a changed file is read.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) { w.settle = d }
}

// WithEvolveOnIngest runs evolution for a bundle's scope after it is recorded.
func WithEvolveOnIngest(enabled bool) Option {
	return func(w *Watcher) { w.evolve = enabled }
}

// NewWatcher creates a watcher over dir. The directory and its processed/
// and failed/ subdirectories are created if missing.
func NewWatcher(dir string, rec Recorder, opts ...Option) (*Watcher, error) {
	if rec == nil {
		return nil, errors.New("recorder is required")
	}
	w := &Watcher{
		dir:      dir,
		recorder: rec,
		logger:   zap.NewNop(),
		settle:   DefaultSettle,
		results:  make(chan Result, 16),
		ready:    make(chan string, 16),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.settle < 0 {
		w.settle = 0
	}

	for _, d := range []string{dir, filepath.Join(dir, ProcessedDir), filepath.Join(dir, FailedDir)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return nil, fmt.Errorf("creating inbox directory: %w", err)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	w.watcher = fw
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Results returns the channel of handled files. Results are dropped when
// nobody drains the channel.
func (w *Watcher) Results() <-chan Result {
	return w.results
}

// Start begins watching. Files already in the directory are handled before
// Start returns; later files are handled in a background goroutine until
// Stop is called or ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}

	pending, err := w.pendingFiles()
	if err != nil {
		return err
	}
	for _, path := range pending {
		w.emit(w.Process(ctx, path))
	}

	w.started = true
	go w.processEvents(ctx)
	w.logger.Info("inbox watcher started",
		zap.String("dir", w.dir),
		zap.Int("backlog", len(pending)))
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.stop)
		_ = w.watcher.Close()
	})
	if !w.started {
		return
	}
	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		w.logger.Warn("inbox watcher did not stop in time")
	}
}

// pendingFiles lists bundle files currently in the inbox, oldest name first.
func (w *Watcher) pendingFiles() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("listing inbox: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isBundleName(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(w.dir, e.Name()))
	}
	slices.Sort(out)
	return out, nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.done)

	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if filepath.Dir(event.Name) != filepath.Clean(w.dir) || !isBundleName(filepath.Base(event.Name)) {
				continue
			}
			w.schedule(ctx, timers, event.Name)

		case path := <-w.ready:
			delete(timers, path)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			w.emit(w.Process(ctx, path))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inbox watcher error", zap.Error(err))
		}
	}
}

// schedule (re)arms the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, timers map[string]*time.Timer, path string) {
	if t, ok := timers[path]; ok {
		t.Reset(w.settle)
		return
	}
	timers[path] = time.AfterFunc(w.settle, func() { w.signal(ctx, path) })
}

// signal hands a settled path to the event loop. Nothing drains ready once
// the watcher stops or ctx ends, so it gives up then.
func (w *Watcher) signal(ctx context.Context, path string) bool {
	select {
	case w.ready <- path:
		return true
	case <-w.stop:
	case <-ctx.Done():
	}
	return false
}

func (w *Watcher) emit(r Result) {
	select {
	case w.results <- r:
	default:
	}
}

// Process ingests one bundle file and moves it to processed/ or failed/.
func (w *Watcher) Process(ctx context.Context, path string) Result {
	res := w.ingest(ctx, path)

	dest := ProcessedDir
	if res.Err != nil {
		dest = FailedDir
	}
	bundlesTotal.WithLabelValues(dest).Inc()

	moved, err := moveInto(path, filepath.Join(w.dir, dest))
	if err != nil {
		w.logger.Error("failed to move bundle file",
			zap.String("file", path),
			zap.Error(err))
		moved = path
	}
	res.File = moved

	if res.Err != nil {
		w.logger.Warn("bundle rejected",
			zap.String("file", moved),
			zap.Error(res.Err))
	} else {
		w.logger.Info("bundle ingested",
			zap.String("file", moved),
			zap.String(logging.ScopeKey, string(res.Observation.Scope)),
			zap.String(logging.SessionKey, res.Observation.SessionID),
			zap.Int("created", len(res.Observation.Created)),
			zap.Int("updated", len(res.Observation.Updated)))
	}
	return res
}

func (w *Watcher) ingest(ctx context.Context, path string) Result {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{Err: fmt.Errorf("reading bundle: %w", err)}
	}
	b, err := ParseBundle(data)
	if err != nil {
		return Result{Err: err}
	}

	obs, err := w.recorder.RecordObservation(ctx, b.Scope, b.Fragments, b.SessionID)
	if err != nil {
		return Result{Err: fmt.Errorf("recording bundle: %w", err)}
	}
	res := Result{Observation: obs}

	if w.evolve {
		evolutionsTriggered.Inc()
		rep, err := w.recorder.RunEvolution(ctx, b.Scope)
		if err != nil {
			// The observation is committed; a failed run is retried by the next bundle.
			w.logger.Error("evolution after ingest failed",
				zap.String("scope", string(b.Scope)),
				zap.Error(err))
		}
		res.Evolution = rep
	}
	return res
}

// moveInto renames path into dir, suffixing the name if it is taken.
func moveInto(path, dir string) (string, error) {
	base := filepath.Base(path)
	dest := filepath.Join(dir, base)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(base)
		dest = filepath.Join(dir, fmt.Sprintf("%s-%d%s", strings.TrimSuffix(base, ext), time.Now().UnixNano(), ext))
	}
	if err := os.Rename(path, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func isBundleName(name string) bool {
	return !strings.HasPrefix(name, ".") && strings.EqualFold(filepath.Ext(name), ".json")
}
