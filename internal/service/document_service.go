package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pagedoc/internal/domain"
	"pagedoc/internal/pager"
	"pagedoc/internal/render"
	"pagedoc/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Document Service: live paginated documents
// ─────────────────────────────────────────────────────────────

// EventDocumentSaved is emitted after a document's pages are persisted.
const EventDocumentSaved = "document:saved"

var (
	// ErrGenerating is returned when a bulk insertion is already running
	// for the document.
	ErrGenerating = errors.New("document is already receiving content")
	// ErrNoDocument is returned when no document id was given and none is
	// active.
	ErrNoDocument = errors.New("no active document")
)

// openDocument is a document with a live page manager. mu serialises every
// manager call and every direct edit, since the manager is single-threaded.
type openDocument struct {
	mu    sync.Mutex
	doc   domain.Document
	mgr   *pager.Manager
	dirty bool
	// closed is set once mgr is torn down; holders of a stale pointer
	// must look the document up again.
	closed bool
}

// DocumentService opens documents into page managers and persists them.
type DocumentService struct {
	store   domain.DocumentStore
	history *storage.HistoryStore
	session *SessionService
	emitter EventEmitter
	log     *zap.Logger
	opts    pager.Options
	dataDir string

	mu    sync.Mutex
	open  map[string]*openDocument
	guard generationGuard
}

// NewDocumentService creates a DocumentService. history and session may be
// nil. opts is used for every manager the service opens; its Emitter is
// replaced by one that tags events with the document id.
func NewDocumentService(
	store domain.DocumentStore,
	history *storage.HistoryStore,
	session *SessionService,
	opts pager.Options,
	dataDir string,
	emitter EventEmitter,
	log *zap.Logger,
) *DocumentService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if session == nil {
		session = NewSessionService(nil)
	}
	opts.Logger = log.Named("pager")
	return &DocumentService{
		store:   store,
		history: history,
		session: session,
		emitter: emitter,
		log:     log,
		opts:    opts,
		dataDir: dataDir,
		open:    make(map[string]*openDocument),
	}
}

// ── Documents ──────────────────────────────────────────────

func (s *DocumentService) ListDocuments() ([]domain.Document, error) {
	return s.store.ListDocuments()
}

// CreateDocument stores a new document with one empty page and makes it
// active.
func (s *DocumentService) CreateDocument(name string) (*domain.Document, error) {
	now := time.Now().UTC()
	d := &domain.Document{ID: uuid.New().String(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateDocument(d); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	first := []domain.PageSnapshot{{ID: uuid.New().String(), Number: 1}}
	if err := s.store.ReplacePages(d.ID, first); err != nil {
		return nil, fmt.Errorf("create first page: %w", err)
	}
	if err := s.session.SetActiveDocument(d.ID); err != nil {
		s.log.Debug("active document not saved", zap.Error(err))
	}
	return d, nil
}

func (s *DocumentService) RenameDocument(id, name string) error {
	d, err := s.store.GetDocument(id)
	if err != nil {
		return err
	}
	d.Name = name
	d.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateDocument(d); err != nil {
		return err
	}
	s.mu.Lock()
	od, ok := s.open[id]
	s.mu.Unlock()
	if ok {
		od.mu.Lock()
		od.doc.Name = name
		od.mu.Unlock()
	}
	return nil
}

// DeleteDocument closes the document without saving and removes it.
func (s *DocumentService) DeleteDocument(id string) error {
	s.mu.Lock()
	od, ok := s.open[id]
	delete(s.open, id)
	s.mu.Unlock()
	if ok {
		od.mu.Lock()
		od.closed = true
		od.mgr.Close()
		od.mu.Unlock()
	}
	if err := s.store.DeleteDocument(id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if err := s.session.Forget(id); err != nil {
		s.log.Debug("session not cleared", zap.String("document_id", id), zap.Error(err))
	}
	return nil
}

// ActiveDocument returns the id of the last document made active.
func (s *DocumentService) ActiveDocument() string {
	return s.session.ActiveDocument()
}

func (s *DocumentService) SetActiveDocument(id string) error {
	if _, err := s.store.GetDocument(id); err != nil {
		return fmt.Errorf("document %s: %w", id, err)
	}
	return s.session.SetActiveDocument(id)
}

// Resolve returns id, or the active document when id is empty.
func (s *DocumentService) Resolve(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if active := s.session.ActiveDocument(); active != "" {
		return active, nil
	}
	return "", ErrNoDocument
}

// ── Open / close ───────────────────────────────────────────

// Open loads a document into a page manager, restoring its pages and the
// page it was left on. Opening an open document returns its state.
func (s *DocumentService) Open(ctx context.Context, id string) (*domain.PageState, error) {
	var st *domain.PageState
	err := s.with(ctx, id, func(od *openDocument) error {
		st = od.state()
		return nil
	})
	return st, err
}

func (s *DocumentService) get(ctx context.Context, id string) (*openDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if od, ok := s.open[id]; ok {
		return od, nil
	}

	d, err := s.store.GetDocument(id)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", id, err)
	}
	snaps, err := s.store.LoadPages(id)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}

	opts := s.opts
	opts.Emitter = documentEmitter{documentID: id, next: s.emitter}
	opts.Logger = s.opts.Logger.With(zap.String("document_id", id))
	mgr := pager.New(ctx, opts, snaps)
	if cursor := s.session.Cursor(id); cursor > 0 {
		mgr.GoToPage(ctx, cursor)
	}

	od := &openDocument{doc: *d, mgr: mgr}
	s.open[id] = od
	s.log.Info("document opened", zap.String("document_id", id), zap.Int("pages", mgr.TotalPages()))
	return od, nil
}

// IsOpen reports whether the document has a live manager.
func (s *DocumentService) IsOpen(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.open[id]
	return ok
}

// Close saves a dirty document and tears down its editors.
func (s *DocumentService) Close(ctx context.Context, id string) error {
	s.mu.Lock()
	od, ok := s.open[id]
	delete(s.open, id)
	s.mu.Unlock()
	if !ok {
		return nil
	}
	od.mu.Lock()
	defer od.mu.Unlock()
	if od.closed {
		return nil
	}
	var err error
	if od.dirty {
		err = s.save(ctx, od, "close")
	}
	od.closed = true
	od.mgr.Close()
	return err
}

// State returns the pages and cursor of an open document, opening it if
// needed.
func (s *DocumentService) State(ctx context.Context, id string) (*domain.PageState, error) {
	return s.Open(ctx, id)
}

func (od *openDocument) state() *domain.PageState {
	return &domain.PageState{
		Document:     od.doc,
		Pages:        od.mgr.Pages(),
		CurrentIndex: od.mgr.CurrentIndex(),
		TotalPages:   od.mgr.TotalPages(),
	}
}

// with runs fn with the document's manager under its lock.
func (s *DocumentService) with(ctx context.Context, id string, fn func(od *openDocument) error) error {
	for {
		od, err := s.get(ctx, id)
		if err != nil {
			return err
		}
		od.mu.Lock()
		if od.closed {
			od.mu.Unlock()
			continue
		}
		defer od.mu.Unlock()
		return fn(od)
	}
}

// ── Pages ──────────────────────────────────────────────────

// AddPage appends a page and navigates to it.
func (s *DocumentService) AddPage(ctx context.Context, id string) (domain.Page, error) {
	var p domain.Page
	err := s.with(ctx, id, func(od *openDocument) error {
		p = od.mgr.AddNewPage(ctx)
		od.dirty = true
		return nil
	})
	return p, err
}

// GoToPage activates the page at a 0-based index. An out-of-range index
// leaves the cursor where it was and returns false.
func (s *DocumentService) GoToPage(ctx context.Context, id string, index int) (pager.NavState, bool, error) {
	var nav pager.NavState
	var moved bool
	err := s.with(ctx, id, func(od *openDocument) error {
		moved = od.mgr.GoToPage(ctx, index)
		nav = od.mgr.Navigation()
		s.rememberCursor(id, od)
		return nil
	})
	return nav, moved, err
}

func (s *DocumentService) NextPage(ctx context.Context, id string) (pager.NavState, bool, error) {
	var nav pager.NavState
	var moved bool
	err := s.with(ctx, id, func(od *openDocument) error {
		moved = od.mgr.NextPage(ctx)
		nav = od.mgr.Navigation()
		s.rememberCursor(id, od)
		return nil
	})
	return nav, moved, err
}

func (s *DocumentService) PreviousPage(ctx context.Context, id string) (pager.NavState, bool, error) {
	var nav pager.NavState
	var moved bool
	err := s.with(ctx, id, func(od *openDocument) error {
		moved = od.mgr.PreviousPage(ctx)
		nav = od.mgr.Navigation()
		s.rememberCursor(id, od)
		return nil
	})
	return nav, moved, err
}

// RemoveCurrentPage removes the active page after the configured
// confirmer agrees. See pager.Manager.RemoveCurrentPage for the refusals.
// The question is asked without holding the document, so saves and reads
// go on while a human decides; the page confirmed is the one removed.
func (s *DocumentService) RemoveCurrentPage(ctx context.Context, id string) (bool, error) {
	var pageID, prompt string
	err := s.with(ctx, id, func(od *openDocument) error {
		if od.mgr.TotalPages() <= 1 {
			return pager.ErrLastPage
		}
		p := od.mgr.CurrentPage()
		pageID = p.ID
		prompt = pager.RemovePrompt(p.Number, od.mgr.TotalPages())
		return nil
	})
	if err != nil {
		return false, err
	}

	if c := s.opts.Confirmer; c != nil {
		ok, err := c.Confirm(ctx, prompt)
		if err != nil {
			return false, fmt.Errorf("confirm page removal: %w", err)
		}
		if !ok {
			return false, pager.ErrNotConfirmed
		}
	}

	var removed bool
	err = s.with(ctx, id, func(od *openDocument) error {
		var err error
		removed, err = od.mgr.RemovePage(ctx, pageID)
		if removed {
			od.dirty = true
			s.rememberCursor(id, od)
		}
		return err
	})
	return removed, err
}

// Navigation returns the toolbar state of a document.
func (s *DocumentService) Navigation(ctx context.Context, id string) (pager.NavState, error) {
	var nav pager.NavState
	err := s.with(ctx, id, func(od *openDocument) error {
		nav = od.mgr.Navigation()
		return nil
	})
	return nav, err
}

func (s *DocumentService) rememberCursor(id string, od *openDocument) {
	if err := s.session.SaveCursor(id, od.mgr.CurrentIndex()); err != nil {
		s.log.Debug("cursor not saved", zap.String("document_id", id), zap.Error(err))
	}
}

// ── Content ────────────────────────────────────────────────

// InsertContent splits text into blocks and inserts them, paging as pages
// fill. A second insertion into the same document while one runs fails
// with ErrGenerating.
func (s *DocumentService) InsertContent(ctx context.Context, id, text string) (pager.InsertReport, error) {
	return s.insert(ctx, id, func(m *pager.Manager) (pager.InsertReport, error) {
		return m.InsertContent(ctx, text)
	})
}

// InsertBlocks inserts pre-built blocks, paging as pages fill.
func (s *DocumentService) InsertBlocks(ctx context.Context, id string, blocks []domain.Block) (pager.InsertReport, error) {
	return s.insert(ctx, id, func(m *pager.Manager) (pager.InsertReport, error) {
		return m.InsertBlocks(ctx, blocks)
	})
}

func (s *DocumentService) insert(ctx context.Context, id string, run func(*pager.Manager) (pager.InsertReport, error)) (pager.InsertReport, error) {
	if !s.guard.TryLock(id) {
		return pager.InsertReport{}, ErrGenerating
	}
	defer s.guard.Unlock(id)

	var report pager.InsertReport
	err := s.with(ctx, id, func(od *openDocument) error {
		var err error
		report, err = run(od.mgr)
		if report.Inserted > 0 {
			od.dirty = true
		}
		s.rememberCursor(id, od)
		return err
	})
	if err == nil && !report.OK() {
		s.log.Warn("content partially inserted",
			zap.String("document_id", id),
			zap.Int("failed", len(report.Failed)),
			zap.Error(report.Err()))
	}
	return report, err
}

// IsGenerating reports whether a bulk insertion is running for id.
func (s *DocumentService) IsGenerating(id string) bool {
	return s.guard.Running(id)
}

// AppendBlock types a block at the end of the active page, the way a user
// would. The editor's change notification drives typing overflow.
func (s *DocumentService) AppendBlock(ctx context.Context, id string, b domain.Block) error {
	return s.with(ctx, id, func(od *openDocument) error {
		ed := od.mgr.CurrentEditor()
		if ed == nil {
			return pager.ErrNoEditor
		}
		if err := ed.Insert(ctx, b); err != nil {
			return fmt.Errorf("append block: %w", err)
		}
		od.dirty = true
		return nil
	})
}

// ── Persistence ────────────────────────────────────────────

// Save persists an open document's pages and records a revision.
func (s *DocumentService) Save(ctx context.Context, id string) error {
	return s.with(ctx, id, func(od *openDocument) error {
		return s.save(ctx, od, "save")
	})
}

func (s *DocumentService) save(ctx context.Context, od *openDocument, label string) error {
	id := od.doc.ID
	snaps, err := od.mgr.Save(ctx)
	if err != nil {
		return fmt.Errorf("collect pages: %w", err)
	}
	if err := s.store.ReplacePages(id, snaps); err != nil {
		return fmt.Errorf("save pages: %w", err)
	}
	if s.history != nil {
		if _, err := s.history.Push(id, label, snaps); err != nil {
			s.log.Warn("revision not recorded", zap.String("document_id", id), zap.Error(err))
		}
	}
	od.dirty = false
	s.rememberCursor(id, od)
	s.emitter.Emit(ctx, EventDocumentSaved, DocumentEvent{DocumentID: id, Data: len(snaps)})
	s.log.Debug("document saved", zap.String("document_id", id), zap.Int("pages", len(snaps)))
	return nil
}

// SaveDirty saves every open document with unsaved changes. It skips
// documents that are receiving content and returns the joined failures.
func (s *DocumentService) SaveDirty(ctx context.Context) error {
	var errs []error
	for _, id := range s.openIDs() {
		if s.guard.Running(id) {
			continue
		}
		s.mu.Lock()
		od, ok := s.open[id]
		s.mu.Unlock()
		if !ok {
			continue
		}
		od.mu.Lock()
		if od.dirty && !od.closed {
			if err := s.save(ctx, od, "autosave"); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", id, err))
			}
		}
		od.mu.Unlock()
	}
	return errors.Join(errs...)
}

// Dirty reports whether an open document has unsaved changes.
func (s *DocumentService) Dirty(id string) bool {
	s.mu.Lock()
	od, ok := s.open[id]
	s.mu.Unlock()
	if !ok {
		return false
	}
	od.mu.Lock()
	defer od.mu.Unlock()
	return od.dirty
}

func (s *DocumentService) openIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.open))
	for id := range s.open {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// History lists saved revisions, newest first.
func (s *DocumentService) History(id string) ([]storage.Revision, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.List(id)
}

// RestoreRevision replaces the document's pages with a saved revision and
// reopens it.
func (s *DocumentService) RestoreRevision(ctx context.Context, id, revisionID string) (*domain.PageState, error) {
	if s.history == nil {
		return nil, errors.New("history disabled")
	}
	snaps, err := s.history.Load(id, revisionID)
	if err != nil {
		return nil, fmt.Errorf("load revision: %w", err)
	}

	// The live manager stays usable until the revision is written.
	s.mu.Lock()
	od := s.open[id]
	s.mu.Unlock()
	if od != nil {
		od.mu.Lock()
		if od.closed {
			od.mu.Unlock()
			od = nil
		}
	}
	if od != nil && od.dirty {
		s.keepUnsaved(ctx, od)
	}

	if err := s.store.ReplacePages(id, snaps); err != nil {
		if od != nil {
			od.mu.Unlock()
		}
		return nil, fmt.Errorf("restore pages: %w", err)
	}
	if od != nil {
		s.mu.Lock()
		if s.open[id] == od {
			delete(s.open, id)
		}
		s.mu.Unlock()
		od.closed = true
		od.mgr.Close()
		od.mu.Unlock()
	}
	if err := s.session.SaveCursor(id, 0); err != nil {
		s.log.Debug("cursor not reset", zap.String("document_id", id), zap.Error(err))
	}
	return s.Open(ctx, id)
}

// keepUnsaved records the open document's unsaved pages as a revision so
// a restore over them can be undone. Callers hold od.mu.
func (s *DocumentService) keepUnsaved(ctx context.Context, od *openDocument) {
	snaps, err := od.mgr.Save(ctx)
	if err == nil {
		_, err = s.history.Push(od.doc.ID, "before restore", snaps)
	}
	if err != nil {
		s.log.Warn("unsaved pages not kept before restore", zap.String("document_id", od.doc.ID), zap.Error(err))
	}
}

// ExportMarkdown renders the document's current pages as markdown. When
// write is true the result is also written to <dataDir>/<id>.md and the
// path is returned.
func (s *DocumentService) ExportMarkdown(ctx context.Context, id string, write bool) (string, string, error) {
	var md string
	err := s.with(ctx, id, func(od *openDocument) error {
		if _, err := od.mgr.Save(ctx); err != nil {
			return err
		}
		md = render.Markdown(od.mgr.Pages())
		return nil
	})
	if err != nil || !write {
		return md, "", err
	}
	path := filepath.Join(s.dataDir, id+".md")
	if err := os.WriteFile(path, []byte(md), 0644); err != nil {
		return md, "", fmt.Errorf("write markdown: %w", err)
	}
	return md, path, nil
}

// Shutdown waits for running insertions, then saves and closes every open
// document.
func (s *DocumentService) Shutdown(ctx context.Context) error {
	s.guard.WaitAll(ctx)
	var errs []error
	for _, id := range s.openIDs() {
		if err := s.Close(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
