package pager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pagedoc/internal/domain"
	"pagedoc/internal/editor"
)

// pageEntry pairs a page record with the editor bound to its container.
// editor is nil when construction failed.
type pageEntry struct {
	page   *domain.Page
	editor editor.Editor
}

// Manager owns the pages of one document. See the package doc for the
// concurrency contract.
type Manager struct {
	opts Options
	log  *zap.Logger

	pages      []*pageEntry
	current    int
	generating bool
	focusTimer *time.Timer
}

// New builds a manager with one page per restored snapshot, or a single
// empty page when restore is empty, and activates the first page.
func New(ctx context.Context, opts Options, restore []domain.PageSnapshot) *Manager {
	opts = opts.withDefaults()
	m := &Manager{opts: opts, log: opts.Logger}

	for _, s := range restore {
		id := s.ID
		if id == "" {
			id = uuid.New().String()
		}
		m.createPage(ctx, id, s.Blocks)
	}
	if len(m.pages) == 0 {
		m.createPage(ctx, uuid.New().String(), nil)
	}
	m.activate(ctx, 0, false)
	return m
}

// ── Page lifecycle ─────────────────────────────────────────

// CreatePage appends a page seeded with initial blocks. It never fails: an
// editor that cannot be constructed is logged and the page is kept.
func (m *Manager) CreatePage(ctx context.Context, initial []domain.Block) domain.Page {
	p := m.createPage(ctx, uuid.New().String(), initial)
	m.emitNavigation(ctx)
	return clonePage(p)
}

func (m *Manager) createPage(ctx context.Context, id string, initial []domain.Block) *domain.Page {
	p := &domain.Page{
		ID:     id,
		Number: len(m.pages) + 1,
		Holder: "page-" + id,
		Blocks: domain.CloneBlocks(initial),
	}
	p.WordCount = WordCount(p.Blocks)
	entry := &pageEntry{page: p}
	m.pages = append(m.pages, entry)

	m.opts.Emitter.Emit(ctx, EventPageMounted, pageEvent(p))

	pageID := p.ID
	ed, err := m.opts.EditorFactory(ctx, editor.Config{
		Holder: p.Holder,
		Blocks: p.Blocks,
		OnChange: func() {
			if err := m.HandlePageChange(context.Background(), pageID); err != nil {
				m.log.Debug("page change not applied", zap.String("page_id", pageID), zap.Error(err))
			}
		},
	})
	if err != nil {
		m.log.Error("editor construction failed", zap.String("page_id", p.ID), zap.Int("page", p.Number), zap.Error(err))
		return p
	}
	entry.editor = ed
	m.log.Debug("page created", zap.String("page_id", p.ID), zap.Int("page", p.Number))
	return p
}

// AddNewPage creates an empty page and navigates to it.
func (m *Manager) AddNewPage(ctx context.Context) domain.Page {
	p := m.createPage(ctx, uuid.New().String(), nil)
	m.GoToPage(ctx, len(m.pages)-1)
	return clonePage(p)
}

// RemoveCurrentPage deletes the active page after confirmation. It refuses
// with ErrLastPage when only one page exists and returns ErrNotConfirmed
// when the confirmer declines. The remaining pages are renumbered and the
// page that took the removed one's place (or the new last page) becomes
// active.
func (m *Manager) RemoveCurrentPage(ctx context.Context) (bool, error) {
	if len(m.pages) <= 1 {
		return false, ErrLastPage
	}
	idx := m.current

	if m.opts.Confirmer != nil {
		ok, err := m.opts.Confirmer.Confirm(ctx, RemovePrompt(m.pages[idx].page.Number, len(m.pages)))
		if err != nil {
			return false, fmt.Errorf("confirm page removal: %w", err)
		}
		if !ok {
			return false, ErrNotConfirmed
		}
	}
	m.removeAt(ctx, idx)
	return true, nil
}

// RemovePage deletes a page whose removal the caller has already
// confirmed. It refuses with ErrLastPage like RemoveCurrentPage and
// returns ErrPageNotFound for an unknown id. Removing the active page
// moves to the page that took its place; otherwise the active page stays.
func (m *Manager) RemovePage(ctx context.Context, pageID string) (bool, error) {
	idx := m.indexOf(pageID)
	if idx < 0 {
		return false, ErrPageNotFound
	}
	if len(m.pages) <= 1 {
		return false, ErrLastPage
	}
	m.removeAt(ctx, idx)
	return true, nil
}

// RemovePrompt is the question asked before a page is removed.
func RemovePrompt(number, total int) string {
	return fmt.Sprintf("Delete page %d of %d? This cannot be undone.", number, total)
}

func (m *Manager) removeAt(ctx context.Context, idx int) {
	entry := m.pages[idx]
	wasCurrent := idx == m.current

	if wasCurrent {
		m.stopFocus()
	}
	if entry.editor != nil {
		if err := entry.editor.Destroy(); err != nil {
			m.log.Error("editor teardown failed", zap.String("page_id", entry.page.ID), zap.Error(err))
		}
		entry.editor = nil
	}
	m.opts.Emitter.Emit(ctx, EventPageUnmounted, pageEvent(entry.page))

	m.pages = append(m.pages[:idx], m.pages[idx+1:]...)
	m.renumber()
	m.log.Info("page removed", zap.String("page_id", entry.page.ID), zap.Int("remaining", len(m.pages)))

	switch {
	case wasCurrent:
		m.activate(ctx, min(idx, len(m.pages)-1), false)
	case idx < m.current:
		m.current--
		m.emitNavigation(ctx)
	default:
		m.emitNavigation(ctx)
	}
}

func (m *Manager) renumber() {
	for i, e := range m.pages {
		e.page.Number = i + 1
	}
}

// ── Navigation ─────────────────────────────────────────────

// GoToPage activates the page at the 0-based index. Out-of-range indexes
// are ignored and false is returned.
func (m *Manager) GoToPage(ctx context.Context, index int) bool {
	if index < 0 || index >= len(m.pages) {
		return false
	}
	m.activate(ctx, index, true)
	return true
}

func (m *Manager) PreviousPage(ctx context.Context) bool {
	return m.GoToPage(ctx, m.current-1)
}

func (m *Manager) NextPage(ctx context.Context) bool {
	return m.GoToPage(ctx, m.current+1)
}

func (m *Manager) activate(ctx context.Context, index int, deactivate bool) {
	if deactivate && m.current < len(m.pages) {
		m.opts.Emitter.Emit(ctx, EventPageDeactivated, pageEvent(m.pages[m.current].page))
	}
	m.current = index
	target := m.pages[index]
	m.opts.Emitter.Emit(ctx, EventPageActivated, pageEvent(target.page))
	m.scheduleFocus(target.editor)
	m.emitNavigation(ctx)
}

// scheduleFocus focuses ed after FocusDelay so the container can paint first.
func (m *Manager) scheduleFocus(ed editor.Editor) {
	m.stopFocus()
	if ed == nil {
		return
	}
	if m.opts.FocusDelay == 0 {
		ed.Focus()
		return
	}
	m.focusTimer = time.AfterFunc(m.opts.FocusDelay, ed.Focus)
}

func (m *Manager) stopFocus() {
	if m.focusTimer != nil {
		m.focusTimer.Stop()
		m.focusTimer = nil
	}
}

// ── Content ────────────────────────────────────────────────

// InsertBlocks inserts blocks in order, moving to a new page whenever the
// current one is full.
func (m *Manager) InsertBlocks(ctx context.Context, blocks []domain.Block) (InsertReport, error) {
	return m.insertUnits(ctx, blocks)
}

// InsertContent inserts text one non-blank line at a time. See ClassifyLine.
func (m *Manager) InsertContent(ctx context.Context, text string) (InsertReport, error) {
	return m.insertUnits(ctx, ParseContent(text))
}

func (m *Manager) insertUnits(ctx context.Context, units []domain.Block) (InsertReport, error) {
	m.generating = true
	defer func() { m.generating = false }()

	report := InsertReport{Units: len(units)}
	for i, b := range units {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		err := m.insertUnit(ctx, b, &report)
		if err == nil {
			report.Inserted++
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return report, err
		}
		ue := UnitError{Index: i, Block: b, Err: err}
		report.Failed = append(report.Failed, ue)
		m.log.Warn("block insertion failed", zap.Int("unit", i), zap.String("type", string(b.Type)), zap.Error(err))
		if m.opts.ErrorPolicy == Strict {
			return report, ue
		}
	}
	m.log.Debug("bulk insertion done",
		zap.Int("units", report.Units),
		zap.Int("inserted", report.Inserted),
		zap.Int("pages_created", report.PagesCreated))
	return report, nil
}

func (m *Manager) insertUnit(ctx context.Context, b domain.Block, report *InsertReport) error {
	entry := m.pages[m.current]
	if m.liveCount(ctx, entry) >= m.opts.MaxBlocksPerPage {
		m.AddNewPage(ctx)
		report.PagesCreated++
		if err := sleep(ctx, m.opts.PageInitDelay); err != nil {
			return err
		}
		entry = m.pages[m.current]
	}
	if entry.editor == nil {
		return ErrNoEditor
	}
	if err := entry.editor.Insert(ctx, b); err != nil {
		return fmt.Errorf("insert %s block: %w", b.Type, err)
	}
	if err := m.refresh(ctx, entry); err != nil {
		m.log.Debug("page refresh after insert failed", zap.String("page_id", entry.page.ID), zap.Error(err))
	}
	return nil
}

// liveCount asks the editor for the block count, falling back to the
// cached blocks when the editor is missing or fails.
func (m *Manager) liveCount(ctx context.Context, e *pageEntry) int {
	if e.editor == nil {
		return len(e.page.Blocks)
	}
	n, err := e.editor.BlockCount(ctx)
	if err != nil {
		m.log.Debug("live block count failed", zap.String("page_id", e.page.ID), zap.Error(err))
		return len(e.page.Blocks)
	}
	return n
}

// HandlePageChange refreshes a page from its editor and, when typing fills
// the last page, appends a new one. It does not auto-page during a bulk
// insertion.
func (m *Manager) HandlePageChange(ctx context.Context, pageID string) error {
	idx := m.indexOf(pageID)
	if idx < 0 {
		return ErrPageNotFound
	}
	entry := m.pages[idx]
	if err := m.refresh(ctx, entry); err != nil {
		return err
	}
	if m.opts.AutoCreatePages && !m.generating &&
		idx == len(m.pages)-1 && len(entry.page.Blocks) >= m.opts.MaxBlocksPerPage {
		m.log.Debug("last page full, adding page", zap.String("page_id", pageID))
		m.AddNewPage(ctx)
	}
	return nil
}

func (m *Manager) refresh(ctx context.Context, e *pageEntry) error {
	if e.editor == nil {
		return ErrNoEditor
	}
	blocks, err := e.editor.Save(ctx)
	if err != nil {
		return fmt.Errorf("save page %d: %w", e.page.Number, err)
	}
	e.page.Blocks = blocks
	e.page.WordCount = WordCount(blocks)
	return nil
}

// Save refreshes every page from its editor and returns snapshots in
// document order. With BestEffort a page whose editor fails keeps its
// cached blocks; with Strict the first failure is returned.
func (m *Manager) Save(ctx context.Context) ([]domain.PageSnapshot, error) {
	snaps := make([]domain.PageSnapshot, 0, len(m.pages))
	for _, e := range m.pages {
		if err := m.refresh(ctx, e); err != nil {
			if m.opts.ErrorPolicy == Strict {
				return nil, err
			}
			m.log.Warn("page save failed, using cached blocks", zap.String("page_id", e.page.ID), zap.Error(err))
		}
		snaps = append(snaps, domain.PageSnapshot{
			ID:     e.page.ID,
			Number: e.page.Number,
			Blocks: domain.CloneBlocks(e.page.Blocks),
		})
	}
	return snaps, nil
}

// Close tears down every editor. The manager must not be used afterwards.
func (m *Manager) Close() {
	m.stopFocus()
	for _, e := range m.pages {
		if e.editor == nil {
			continue
		}
		if err := e.editor.Destroy(); err != nil {
			m.log.Warn("editor teardown failed", zap.String("page_id", e.page.ID), zap.Error(err))
		}
		e.editor = nil
	}
}

// ── Accessors ──────────────────────────────────────────────

// CurrentEditor returns the active page's editor, or nil if it failed to
// initialise.
func (m *Manager) CurrentEditor() editor.Editor {
	return m.pages[m.current].editor
}

// Editor returns the editor of the given page.
func (m *Manager) Editor(pageID string) (editor.Editor, error) {
	idx := m.indexOf(pageID)
	if idx < 0 {
		return nil, ErrPageNotFound
	}
	if ed := m.pages[idx].editor; ed != nil {
		return ed, nil
	}
	return nil, ErrNoEditor
}

func (m *Manager) CurrentPage() domain.Page {
	return clonePage(m.pages[m.current].page)
}

// CurrentIndex is 0-based.
func (m *Manager) CurrentIndex() int { return m.current }

func (m *Manager) TotalPages() int { return len(m.pages) }

func (m *Manager) IsGenerating() bool { return m.generating }

func (m *Manager) MaxBlocksPerPage() int { return m.opts.MaxBlocksPerPage }

// Pages returns copies of every page in document order.
func (m *Manager) Pages() []domain.Page {
	out := make([]domain.Page, len(m.pages))
	for i, e := range m.pages {
		out[i] = clonePage(e.page)
	}
	return out
}

// Navigation returns the toolbar state for the current position.
func (m *Manager) Navigation() NavState {
	ids := make([]string, len(m.pages))
	for i, e := range m.pages {
		ids[i] = e.page.ID
	}
	return NavState{
		Current:   m.current + 1,
		Total:     len(m.pages),
		CanPrev:   m.current > 0,
		CanNext:   m.current < len(m.pages)-1,
		CanRemove: len(m.pages) > 1,
		PageIDs:   ids,
	}
}

func (m *Manager) emitNavigation(ctx context.Context) {
	if m.current >= len(m.pages) {
		return
	}
	m.opts.Emitter.Emit(ctx, EventNavigation, m.Navigation())
}

func (m *Manager) indexOf(pageID string) int {
	for i, e := range m.pages {
		if e.page.ID == pageID {
			return i
		}
	}
	return -1
}

// ── helpers ────────────────────────────────────────────────

func pageEvent(p *domain.Page) PageEvent {
	return PageEvent{PageID: p.ID, Holder: p.Holder, Number: p.Number}
}

func clonePage(p *domain.Page) domain.Page {
	c := *p
	c.Blocks = domain.CloneBlocks(p.Blocks)
	return c
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
