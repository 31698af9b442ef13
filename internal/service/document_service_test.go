package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"pagedoc/internal/domain"
	"pagedoc/internal/editor/memory"
	"pagedoc/internal/pager"
	"pagedoc/internal/service"
	"pagedoc/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	db      *storage.DB
	docs    *service.DocumentService
	emitter *service.MockEmitter
}

func newFixture(t *testing.T, max int, faults *memory.Faults) *fixture {
	t.Helper()
	return newConfirmFixture(t, max, faults, nil)
}

func newConfirmFixture(t *testing.T, max int, faults *memory.Faults, confirm pager.Confirmer) *fixture {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "pagedoc.db"), filepath.Join(dir, "exports"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	opts := pager.DefaultOptions()
	opts.MaxBlocksPerPage = max
	opts.PageInitDelay = 0
	opts.FocusDelay = 0
	opts.EditorFactory = memory.NewFactory(faults)
	opts.Confirmer = confirm

	em := &service.MockEmitter{}
	docs := service.NewDocumentService(
		storage.NewDocumentStore(db),
		storage.NewHistoryStore(db, 5),
		service.NewSessionService(db),
		opts,
		db.DataDir(),
		em,
		zap.NewNop(),
	)
	t.Cleanup(func() { docs.Shutdown(context.Background()) })
	return &fixture{db: db, docs: docs, emitter: em}
}

func TestDocumentService_CreateOpensWithOnePage(t *testing.T) {
	f := newFixture(t, 3, nil)
	ctx := context.Background()

	d, err := f.docs.CreateDocument("Letter")
	require.NoError(t, err)
	assert.Equal(t, d.ID, f.docs.ActiveDocument())

	st, err := f.docs.Open(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalPages)
	assert.Equal(t, 0, st.CurrentIndex)
	assert.Equal(t, 1, st.Pages[0].Number)
	assert.True(t, st.Pages[0].IsEmpty())
}

func TestDocumentService_ResolveActive(t *testing.T) {
	f := newFixture(t, 3, nil)

	_, err := f.docs.Resolve("")
	assert.ErrorIs(t, err, service.ErrNoDocument)

	d, err := f.docs.CreateDocument("Letter")
	require.NoError(t, err)
	id, err := f.docs.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, d.ID, id)

	id, err = f.docs.Resolve("explicit")
	require.NoError(t, err)
	assert.Equal(t, "explicit", id)
}

func TestDocumentService_InsertContentPersistsAcrossReopen(t *testing.T) {
	f := newFixture(t, 3, nil)
	ctx := context.Background()
	d, err := f.docs.CreateDocument("Letter")
	require.NoError(t, err)

	report, err := f.docs.InsertContent(ctx, d.ID, "INTRO\none\ntwo\nthree\nfour\nfive\nsix")
	require.NoError(t, err)
	assert.Equal(t, 7, report.Inserted)
	assert.Equal(t, 2, report.PagesCreated)
	assert.True(t, f.docs.Dirty(d.ID))

	before, err := f.docs.State(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, 3, before.TotalPages)

	require.NoError(t, f.docs.Close(ctx, d.ID))
	assert.False(t, f.docs.IsOpen(d.ID))

	after, err := f.docs.Open(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, 3, after.TotalPages)
	for i := range before.Pages {
		assert.Equal(t, before.Pages[i].ID, after.Pages[i].ID)
		assert.Equal(t, i+1, after.Pages[i].Number)
		assert.Len(t, after.Pages[i].Blocks, len(before.Pages[i].Blocks))
	}
	assert.Equal(t, domain.BlockTypeHeader, after.Pages[0].Blocks[0].Type)
	assert.Equal(t, "six", after.Pages[2].Blocks[0].Text())
	// the cursor ends on the page that received the last block
	assert.Equal(t, 2, after.CurrentIndex)
}

func TestDocumentService_CursorRestored(t *testing.T) {
	f := newFixture(t, 3, nil)
	ctx := context.Background()
	d, err := f.docs.CreateDocument("Letter")
	require.NoError(t, err)

	_, err = f.docs.AddPage(ctx, d.ID)
	require.NoError(t, err)
	_, err = f.docs.AddPage(ctx, d.ID)
	require.NoError(t, err)
	nav, moved, err := f.docs.GoToPage(ctx, d.ID, 1)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, 2, nav.Current)

	_, moved, err = f.docs.GoToPage(ctx, d.ID, 9)
	require.NoError(t, err)
	assert.False(t, moved)

	require.NoError(t, f.docs.Close(ctx, d.ID))
	st, err := f.docs.Open(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalPages)
	assert.Equal(t, 1, st.CurrentIndex)
}

func TestDocumentService_NextPrevious(t *testing.T) {
	f := newFixture(t, 3, nil)
	ctx := context.Background()
	d, err := f.docs.CreateDocument("Letter")
	require.NoError(t, err)
	_, err = f.docs.AddPage(ctx, d.ID)
	require.NoError(t, err)

	_, moved, err := f.docs.NextPage(ctx, d.ID)
	require.NoError(t, err)
	assert.False(t, moved, "already on the last page")

	nav, moved, err := f.docs.PreviousPage(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, 1, nav.Current)
	assert.False(t, nav.CanPrev)
	assert.True(t, nav.CanNext)
}

func TestDocumentService_RemoveCurrentPage(t *testing.T) {
	f := newFixture(t, 3, nil)
	ctx := context.Background()
	d, err := f.docs.CreateDocument("Letter")
	require.NoError(t, err)

	removed, err := f.docs.RemoveCurrentPage(ctx, d.ID)
	assert.False(t, removed)
	assert.ErrorIs(t, err, pager.ErrLastPage)

	_, err = f.docs.AddPage(ctx, d.ID)
	require.NoError(t, err)
	removed, err = f.docs.RemoveCurrentPage(ctx, d.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	nav, err := f.docs.Navigation(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, nav.Total)
	assert.False(t, nav.CanRemove)
}

func TestDocumentService_RemoveConfirmsWithoutBlockingDocument(t *testing.T) {
	asked := make(chan string, 1)
	answer := make(chan bool)
	confirm := pager.ConfirmFunc(func(_ context.Context, prompt string) (bool, error) {
		asked <- prompt
		return <-answer, nil
	})
	f := newConfirmFixture(t, 3, nil, confirm)
	ctx := context.Background()
	d, err := f.docs.CreateDocument("Letter")
	require.NoError(t, err)
	_, err = f.docs.AddPage(ctx, d.ID)
	require.NoError(t, err)

	type outcome struct {
		removed bool
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		removed, err := f.docs.RemoveCurrentPage(ctx, d.ID)
		done <- outcome{removed, err}
	}()
	assert.Equal(t, "Delete page 2 of 2? This cannot be undone.", <-asked)

	// the document stays usable while the question is open
	require.NoError(t, f.docs.SaveDirty(ctx))
	require.NoError(t, f.docs.AppendBlock(ctx, d.ID, domain.NewParagraph("typed meanwhile")))
	nav, err := f.docs.Navigation(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, nav.Total)

	answer <- true
	res := <-done
	require.NoError(t, res.err)
	assert.True(t, res.removed)

	st, err := f.docs.State(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalPages)
}

func TestDocumentService_RemoveDeclined(t *testing.T) {
	confirm := pager.ConfirmFunc(func(context.Context, string) (bool, error) { return false, nil })
	f := newConfirmFixture(t, 3, nil, confirm)
	ctx := context.Background()
	d, err := f.docs.CreateDocument("Letter")
	require.NoError(t, err)
	_, err = f.docs.AddPage(ctx, d.ID)
	require.NoError(t, err)

	removed, err := f.docs.RemoveCurrentPage(ctx, d.ID)
	assert.False(t, removed)
	assert.ErrorIs(t, err, pager.ErrNotConfirmed)
	nav, err := f.docs.Navigation(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, nav.Total)
}

func TestDocumentService_AppendBlockOverflows(t *testing.T) {
	f := newFixture(t, 2, nil)
	ctx := context.Background()
	d, err := f.docs.CreateDocument("Letter")
	require.NoError(t, err)

	require.NoError(t, f.docs.AppendBlock(ctx, d.ID, domain.NewParagraph("one")))
	require.NoError(t, f.docs.AppendBlock(ctx, d.ID, domain.NewParagraph("two")))

	st, err := f.docs.State(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalPages)
	assert.Equal(t, 1, st.CurrentIndex)
	assert.Equal(t, 2, st.Pages[0].WordCount)
}

func TestDocumentService_ConcurrentInsertRefused(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	faults := &memory.Faults{Insert: func(domain.Block) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}}
	f := newFixture(t, 10, faults)
	ctx := context.Background()
	d, err := f.docs.CreateDocument("Letter")
	require.NoError(t, err)

	done := make(chan error)
	go func() {
		_, err := f.docs.InsertContent(ctx, d.ID, "one\ntwo")
		done <- err
	}()
	<-started
	assert.True(t, f.docs.IsGenerating(d.ID))

	_, err = f.docs.InsertContent(ctx, d.ID, "three")
	assert.ErrorIs(t, err, service.ErrGenerating)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, f.docs.IsGenerating(d.ID))
}

func TestDocumentService_InsertBlocksReportsFailures(t *testing.T) {
	boom := errors.New("boom")
	faults := &memory.Faults{Insert: func(b domain.Block) error {
		if b.Text() == "bad" {
			return boom
		}
		return nil
	}}
	f := newFixture(t, 10, faults)
	ctx := context.Background()
	d, err := f.docs.CreateDocument("Letter")
	require.NoError(t, err)

	report, err := f.docs.InsertBlocks(ctx, d.ID, []domain.Block{
		domain.NewParagraph("good"),
		domain.NewParagraph("bad"),
		domain.NewParagraph("good again"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Inserted)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 1, report.Failed[0].Index)
	assert.ErrorIs(t, report.Err(), boom)
}

func TestDocumentService_SaveDirtyAndHistory(t *testing.T) {
	f := newFixture(t, 3, nil)
	ctx := context.Background()
	d, err := f.docs.CreateDocument("Letter")
	require.NoError(t, err)

	_, err = f.docs.InsertContent(ctx, d.ID, "first draft")
	require.NoError(t, err)
	require.NoError(t, f.docs.SaveDirty(ctx))
	assert.False(t, f.docs.Dirty(d.ID))
	assert.Len(t, f.emitter.Named(service.EventDocumentSaved), 1)

	// nothing changed, nothing saved
	require.NoError(t, f.docs.SaveDirty(ctx))
	assert.Len(t, f.emitter.Named(service.EventDocumentSaved), 1)

	_, err = f.docs.InsertContent(ctx, d.ID, "second draft")
	require.NoError(t, err)
	require.NoError(t, f.docs.Save(ctx, d.ID))

	revs, err := f.docs.History(d.ID)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, "save", revs[0].Label)
	assert.Equal(t, "autosave", revs[1].Label)

	st, err := f.docs.RestoreRevision(ctx, d.ID, revs[1].ID)
	require.NoError(t, err)
	require.Equal(t, 1, st.TotalPages)
	require.Len(t, st.Pages[0].Blocks, 1)
	assert.Equal(t, "first draft", st.Pages[0].Blocks[0].Text())
}

func TestDocumentService_RestoreForeignRevisionKeepsDocument(t *testing.T) {
	f := newFixture(t, 3, nil)
	ctx := context.Background()
	a, err := f.docs.CreateDocument("Alpha")
	require.NoError(t, err)
	b, err := f.docs.CreateDocument("Beta")
	require.NoError(t, err)

	_, err = f.docs.InsertContent(ctx, a.ID, "alpha text")
	require.NoError(t, err)
	require.NoError(t, f.docs.Save(ctx, a.ID))
	revs, err := f.docs.History(a.ID)
	require.NoError(t, err)
	require.NotEmpty(t, revs)

	_, err = f.docs.InsertContent(ctx, b.ID, "unsaved beta")
	require.NoError(t, err)

	_, err = f.docs.RestoreRevision(ctx, b.ID, revs[0].ID)
	require.ErrorIs(t, err, storage.ErrRevisionNotFound)

	assert.True(t, f.docs.IsOpen(b.ID))
	assert.True(t, f.docs.Dirty(b.ID))
	st, err := f.docs.State(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, st.Pages[0].Blocks, 1)
	assert.Equal(t, "unsaved beta", st.Pages[0].Blocks[0].Text())
}

func TestDocumentService_RestoreKeepsUnsavedAsRevision(t *testing.T) {
	f := newFixture(t, 3, nil)
	ctx := context.Background()
	d, err := f.docs.CreateDocument("Letter")
	require.NoError(t, err)

	_, err = f.docs.InsertContent(ctx, d.ID, "saved")
	require.NoError(t, err)
	require.NoError(t, f.docs.Save(ctx, d.ID))
	revs, err := f.docs.History(d.ID)
	require.NoError(t, err)
	require.Len(t, revs, 1)

	_, err = f.docs.InsertContent(ctx, d.ID, "not yet saved")
	require.NoError(t, err)

	st, err := f.docs.RestoreRevision(ctx, d.ID, revs[0].ID)
	require.NoError(t, err)
	require.Len(t, st.Pages[0].Blocks, 1)
	assert.Equal(t, "saved", st.Pages[0].Blocks[0].Text())

	revs, err = f.docs.History(d.ID)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	assert.Equal(t, "before restore", revs[0].Label)
}

func TestDocumentService_RepeatedBlockIDsStillSave(t *testing.T) {
	f := newFixture(t, 3, nil)
	ctx := context.Background()
	a, err := f.docs.CreateDocument("Alpha")
	require.NoError(t, err)
	b, err := f.docs.CreateDocument("Beta")
	require.NoError(t, err)

	blocks := []domain.Block{{ID: "b1", Type: domain.BlockTypeParagraph, Data: map[string]any{"text": "same"}}}
	for i := 0; i < 2; i++ {
		_, err = f.docs.InsertBlocks(ctx, a.ID, blocks)
		require.NoError(t, err)
	}
	require.NoError(t, f.docs.Save(ctx, a.ID))

	// an id already stored for another document
	_, err = f.docs.InsertBlocks(ctx, b.ID, blocks)
	require.NoError(t, err)
	require.NoError(t, f.docs.Save(ctx, b.ID))
	require.NoError(t, f.docs.SaveDirty(ctx))

	require.NoError(t, f.docs.Close(ctx, a.ID))
	st, err := f.docs.Open(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, st.Pages[0].Blocks, 2)
}

func TestDocumentService_ExportMarkdown(t *testing.T) {
	f := newFixture(t, 2, nil)
	ctx := context.Background()
	d, err := f.docs.CreateDocument("Letter")
	require.NoError(t, err)
	_, err = f.docs.InsertContent(ctx, d.ID, "Summary:\nline one\nline two")
	require.NoError(t, err)

	md, path, err := f.docs.ExportMarkdown(ctx, d.ID, true)
	require.NoError(t, err)
	assert.Contains(t, md, "## Summary\n")
	assert.Contains(t, md, "<!-- page 2 -->")
	assert.Contains(t, md, "\n---\n")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, md, string(raw))
}

func TestDocumentService_DeleteDocument(t *testing.T) {
	f := newFixture(t, 3, nil)
	ctx := context.Background()
	d, err := f.docs.CreateDocument("Letter")
	require.NoError(t, err)
	_, err = f.docs.Open(ctx, d.ID)
	require.NoError(t, err)

	require.NoError(t, f.docs.DeleteDocument(d.ID))
	assert.False(t, f.docs.IsOpen(d.ID))
	assert.Equal(t, "", f.docs.ActiveDocument())
	_, err = f.docs.Open(ctx, d.ID)
	assert.Error(t, err)
}

func TestDocumentService_EventsTaggedWithDocument(t *testing.T) {
	f := newFixture(t, 3, nil)
	ctx := context.Background()
	d, err := f.docs.CreateDocument("Letter")
	require.NoError(t, err)
	_, err = f.docs.Open(ctx, d.ID)
	require.NoError(t, err)

	mounted := f.emitter.Named(pager.EventPageMounted)
	require.Len(t, mounted, 1)
	ev, ok := mounted[0].Data.(service.DocumentEvent)
	require.True(t, ok)
	assert.Equal(t, d.ID, ev.DocumentID)
}

// ── Autosaver ──

func TestAutosaver_RunOnce(t *testing.T) {
	f := newFixture(t, 3, nil)
	ctx := context.Background()
	d, err := f.docs.CreateDocument("Letter")
	require.NoError(t, err)
	_, err = f.docs.InsertContent(ctx, d.ID, "draft")
	require.NoError(t, err)

	a := service.NewAutosaver(f.docs, "", f.emitter, zap.NewNop())
	a.RunOnce(ctx)
	assert.False(t, f.docs.Dirty(d.ID))
	assert.Empty(t, f.emitter.Named(service.EventAutosaveFailed))
}

func TestAutosaver_StartStop(t *testing.T) {
	f := newFixture(t, 3, nil)
	a := service.NewAutosaver(f.docs, "@every 1h", nil, nil)
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Start(context.Background()))
	a.Stop()
	a.Stop()
}

func TestAutosaver_BadSchedule(t *testing.T) {
	f := newFixture(t, 3, nil)
	a := service.NewAutosaver(f.docs, "not a schedule", nil, nil)
	assert.Error(t, a.Start(context.Background()))
}
