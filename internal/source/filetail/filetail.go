package filetail

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/five82/logdeck/internal/logevent"
	"github.com/five82/logdeck/internal/logtail"
	"github.com/five82/logdeck/internal/metrics"
	"github.com/five82/logdeck/internal/source"
)

const DefaultTailLines = 1000

// Options select the files to import.
type Options struct {
	Patterns  []string // doublestar globs, e.g. /var/log/**/*.log
	TailLines int      // lines imported per file at start; <= 0 imports everything
	Follow    bool     // keep reading appended lines
}

// Tailer bulk-imports the end of every matching file, then optionally
// follows appends. Files created later that match a pattern are picked up
// when their directory is already watched.
type Tailer struct {
	name     string
	opts     Options
	patterns []string
	gate     *source.Gate
	logger   *slog.Logger
	metrics  metrics.Sink
	now      func() time.Time
	life     source.Lifecycle

	cursors map[string]*logtail.Cursor // owned by the run goroutine
}

var _ source.Producer = (*Tailer)(nil)

// New creates a file producer forwarding to sink.
func New(name string, opts Options, sink source.Enqueuer, logger *slog.Logger, m metrics.Sink) *Tailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tailer{
		name:    name,
		opts:    opts,
		gate:    source.NewGate(sink, name),
		logger:  logger,
		metrics: metrics.OrNop(m),
		now:     time.Now,
		cursors: make(map[string]*logtail.Cursor),
	}
}

// Name identifies the producer.
func (t *Tailer) Name() string { return t.name }

// Start expands the patterns, sets up watches when following, and imports
// in the background. Invalid patterns and watcher failures are returned.
func (t *Tailer) Start(ctx context.Context) error {
	patterns := make([]string, 0, len(t.opts.Patterns))
	for _, p := range t.opts.Patterns {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve pattern %q: %w", p, err)
		}
		if !doublestar.ValidatePathPattern(abs) {
			return fmt.Errorf("invalid pattern %q: %w", p, doublestar.ErrBadPattern)
		}
		patterns = append(patterns, abs)
	}
	t.patterns = patterns

	files := t.expand()

	var fsw *fsnotify.Watcher
	if t.opts.Follow {
		var err error
		fsw, err = fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create file watcher: %w", err)
		}
		for _, dir := range t.watchDirs(files) {
			if err := fsw.Add(dir); err != nil {
				t.logger.Warn("cannot watch directory", "producer", t.name, "dir", dir, "error", err)
			}
		}
	}

	err := t.life.Go(ctx, func(ctx context.Context) {
		for _, path := range files {
			t.importFile(path)
		}
		if fsw != nil {
			t.follow(ctx, fsw)
		}
	})
	if err != nil && fsw != nil {
		_ = fsw.Close()
	}
	return err
}

// Stop halts following. No events are enqueued after it returns.
func (t *Tailer) Stop() {
	t.gate.Close()
	t.life.Stop()
}

// Done is closed once the import, and following if enabled, has finished.
func (t *Tailer) Done() <-chan struct{} {
	return t.life.Done()
}

func (t *Tailer) expand() []string {
	var files []string
	for _, pattern := range t.patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			t.logger.Warn("failed to expand pattern", "producer", t.name, "pattern", pattern, "error", err)
			continue
		}
		files = append(files, matches...)
	}
	slices.Sort(files)
	return slices.Compact(files)
}

// watchDirs returns the directories holding matched files plus the fixed
// prefix of every pattern, so new files appearing there are noticed.
func (t *Tailer) watchDirs(files []string) []string {
	var dirs []string
	for _, f := range files {
		dirs = append(dirs, filepath.Dir(f))
	}
	for _, pattern := range t.patterns {
		base, _ := doublestar.SplitPattern(filepath.ToSlash(pattern))
		base = filepath.FromSlash(base)
		if info, err := os.Stat(base); err == nil && info.IsDir() {
			dirs = append(dirs, base)
		}
	}
	slices.Sort(dirs)
	return slices.Compact(dirs)
}

func (t *Tailer) matches(path string) bool {
	for _, pattern := range t.patterns {
		if ok, _ := doublestar.PathMatch(pattern, path); ok {
			return true
		}
	}
	return false
}

func (t *Tailer) importFile(path string) {
	tail, err := logtail.Read(path, t.opts.TailLines)
	if err != nil {
		t.metrics.Count(metrics.ProducerErrors, 1)
		t.logger.Warn("import failed", "producer", t.name, "path", path, "error", err)
		return
	}
	t.cursors[path] = &logtail.Cursor{Path: path, Offset: tail.Offset}
	t.emit(path, tail.Lines)
}

func (t *Tailer) follow(ctx context.Context, fsw *fsnotify.Watcher) {
	defer fsw.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			t.handle(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			t.logger.Warn("watcher error", "producer", t.name, "error", err)
		}
	}
}

func (t *Tailer) handle(ev fsnotify.Event) {
	if !t.matches(ev.Name) {
		return
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		delete(t.cursors, ev.Name)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		cur, ok := t.cursors[ev.Name]
		if !ok {
			// New or rotated file: read it from the start.
			cur = &logtail.Cursor{Path: ev.Name}
			t.cursors[ev.Name] = cur
		}
		lines, err := cur.ReadNew()
		if err != nil {
			t.metrics.Count(metrics.ProducerErrors, 1)
			t.logger.Warn("read failed", "producer", t.name, "path", ev.Name, "error", err)
			return
		}
		t.emit(ev.Name, lines)
	}
}

func (t *Tailer) emit(path string, lines []string) {
	if len(lines) == 0 {
		return
	}
	now := t.now()
	events := make([]logevent.LogEvent, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		ev := logevent.DecodeLine(line, now)
		ev.Source = path
		events = append(events, ev)
	}
	t.gate.Enqueue(events)
}
