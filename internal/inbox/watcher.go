// Package inbox feeds text files dropped into a directory into a document.
// Block files (*.json) are inserted block by block when their extension is
// accepted.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"pagedoc/internal/domain"
	"pagedoc/internal/pager"
	"pagedoc/internal/service"
)

// DefaultSettle is how long a file must stay quiet before it is read.
const DefaultSettle = 200 * time.Millisecond

// Suffixes appended to processed files.
const (
	DoneSuffix   = ".done"
	FailedSuffix = ".failed"
)

// Inserter is the part of the document service the watcher needs.
type Inserter interface {
	InsertContent(ctx context.Context, documentID, text string) (pager.InsertReport, error)
	InsertBlocks(ctx context.Context, documentID string, blocks []domain.Block) (pager.InsertReport, error)
}

// ProcessedHandler is called after each file has been handled.
type ProcessedHandler func(path string, report pager.InsertReport, err error)

// Options configures a Watcher.
type Options struct {
	Dir        string
	DocumentID string
	// Extensions lists accepted file extensions, lower case with the dot.
	Extensions []string
	Settle     time.Duration
	OnFile     ProcessedHandler
	Logger     *zap.Logger
}

// Watcher inserts the content of every accepted file written into Dir.
// Each file is renamed with DoneSuffix (or FailedSuffix) once handled, so
// it is never inserted twice.
type Watcher struct {
	opts    Options
	insert  Inserter
	log     *zap.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]struct{}
	done    chan struct{}
	cancel  context.CancelFunc
}

// New creates a watcher. Call Start to begin watching.
func New(opts Options, insert Inserter) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, errors.New("inbox: dir is required")
	}
	if opts.DocumentID == "" {
		return nil, errors.New("inbox: document id is required")
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".txt", ".md"}
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	abs, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, err
	}
	opts.Dir = abs
	return &Watcher{
		opts:    opts,
		insert:  insert,
		log:     opts.Logger.With(zap.String("inbox", abs), zap.String("document_id", opts.DocumentID)),
		pending: make(map[string]struct{}),
	}, nil
}

// Start watches the directory, queueing files already present in it.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.opts.Dir, 0755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(w.opts.Dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", w.opts.Dir, err)
	}
	w.watcher = watcher

	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		watcher.Close()
		return fmt.Errorf("read inbox: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.queue(filepath.Join(w.opts.Dir, e.Name()))
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.watchLoop(ctx)
	w.log.Info("inbox watching")
	return nil
}

// Close stops the watcher and waits for the loop to exit.
func (w *Watcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	w.cancel()
	err := w.watcher.Close()
	<-w.done
	w.watcher = nil
	return err
}

func (w *Watcher) accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.opts.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (w *Watcher) queue(path string) bool {
	if !w.accepts(path) {
		return false
	}
	w.mu.Lock()
	w.pending[path] = struct{}{}
	w.mu.Unlock()
	return true
}

// take drains the pending set in name order.
func (w *Watcher) take() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	clear(w.pending)
	sort.Strings(paths)
	return paths
}

func (w *Watcher) hasPending() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending) > 0
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.done)

	settle := time.NewTimer(w.opts.Settle)
	defer settle.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				if w.queue(event.Name) {
					// Wait until writes to the file go quiet
					settle.Reset(w.opts.Settle)
				}
			}
		case <-settle.C:
			for _, p := range w.take() {
				w.process(ctx, p)
			}
			if w.hasPending() {
				settle.Reset(w.opts.Settle)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		// Already handled, or moved away before it settled
		return
	}
	if err != nil {
		w.finish(path, pager.InsertReport{}, fmt.Errorf("read %s: %w", path, err))
		return
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		w.finish(path, pager.InsertReport{}, nil)
		return
	}

	var report pager.InsertReport
	if strings.EqualFold(filepath.Ext(path), BlockFileExt) {
		blocks, perr := parseBlockFile(raw)
		if perr != nil {
			w.finish(path, report, fmt.Errorf("%s: %w", filepath.Base(path), perr))
			return
		}
		report, err = w.insert.InsertBlocks(ctx, w.opts.DocumentID, blocks)
	} else {
		report, err = w.insert.InsertContent(ctx, w.opts.DocumentID, text)
	}
	if errors.Is(err, service.ErrGenerating) {
		// Another insertion is running; try again once it settles
		w.queue(path)
		return
	}
	if err == nil {
		err = report.Err()
	}
	w.finish(path, report, err)
}

func (w *Watcher) finish(path string, report pager.InsertReport, err error) {
	suffix := DoneSuffix
	if err != nil {
		suffix = FailedSuffix
		w.log.Error("inbox file failed", zap.String("file", filepath.Base(path)), zap.Error(err))
	} else {
		w.log.Info("inbox file inserted",
			zap.String("file", filepath.Base(path)),
			zap.Int("blocks", report.Inserted),
			zap.Int("pages_created", report.PagesCreated))
	}
	if rerr := os.Rename(path, path+suffix); rerr != nil {
		w.log.Error("rename inbox file", zap.String("file", path), zap.Error(rerr))
	}
	if w.opts.OnFile != nil {
		w.opts.OnFile(path, report, err)
	}
}
