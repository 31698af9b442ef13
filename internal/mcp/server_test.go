package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagedoc/internal/pager"
	"pagedoc/internal/service"
	"pagedoc/internal/storage"
)

func newTestServer(t *testing.T, max int) (*Server, *approvalEmitter) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "pagedoc.db"), filepath.Join(dir, "exports"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	em := newApprovalEmitter()
	approval := NewApprovalQueue(em)

	opts := pager.DefaultOptions()
	opts.MaxBlocksPerPage = max
	opts.PageInitDelay = 0
	opts.FocusDelay = 0
	opts.Confirmer = approval

	docs := service.NewDocumentService(
		storage.NewDocumentStore(db),
		storage.NewHistoryStore(db, 0),
		service.NewSessionService(db),
		opts,
		db.DataDir(),
		em,
		nil,
	)
	t.Cleanup(func() { docs.Shutdown(context.Background()) })

	return New(Deps{Emitter: em, Documents: docs, Approval: approval}), em
}

func call(t *testing.T, s *Server, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) string {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func createDocument(t *testing.T, s *Server, name string) string {
	t.Helper()
	out := call(t, s, s.handleCreateDocument, map[string]any{"name": name})
	var doc struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.NotEmpty(t, doc.ID)
	return doc.ID
}

func TestServer_CreateDocumentBecomesActive(t *testing.T) {
	s, _ := newTestServer(t, 3)
	id := createDocument(t, s, "Report")

	got, err := s.resolveDocumentID(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	out := call(t, s, s.handleListDocuments, nil)
	assert.Contains(t, out, "Report")
}

func TestServer_InsertContentPages(t *testing.T) {
	s, _ := newTestServer(t, 2)
	createDocument(t, s, "Report")

	out := call(t, s, s.handleInsertContent, map[string]any{"content": "INTRO\nfirst\nsecond\n\nthird"})
	var sum insertSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, 4, sum.Units)
	assert.Equal(t, 4, sum.Inserted)
	assert.Equal(t, 1, sum.PagesCreated)
	assert.Equal(t, 2, sum.TotalPages)
	assert.Equal(t, 2, sum.CurrentPage)
	assert.Empty(t, sum.Failures)

	var pages []pageSummary
	require.NoError(t, json.Unmarshal([]byte(call(t, s, s.handleListPages, nil)), &pages))
	require.Len(t, pages, 2)
	assert.Equal(t, "INTRO", pages[0].Preview)
	assert.Equal(t, 2, pages[1].Blocks)
	assert.True(t, pages[1].Current)
}

func TestServer_InsertBlocks(t *testing.T) {
	s, _ := newTestServer(t, 5)
	createDocument(t, s, "Report")

	out := call(t, s, s.handleInsertBlocks, map[string]any{
		"blocks": `[{"type":"header","data":{"text":"Intro","level":2}},{"data":{"text":"body"}}]`,
	})
	assert.Contains(t, out, `"inserted": 2`)

	var req mcp.CallToolRequest
	req.Params.Arguments = map[string]any{"blocks": `{not json`}
	_, err := s.handleInsertBlocks(context.Background(), req)
	assert.Error(t, err)
}

func TestServer_Navigation(t *testing.T) {
	s, _ := newTestServer(t, 3)
	createDocument(t, s, "Report")
	call(t, s, s.handleAddPage, nil)
	call(t, s, s.handleAddPage, nil)

	out := call(t, s, s.handleGoToPage, map[string]any{"page": float64(1)})
	assert.Contains(t, out, `"moved": true`)
	assert.Contains(t, out, `"current": 1`)

	out = call(t, s, s.handleGoToPage, map[string]any{"page": float64(7)})
	assert.Contains(t, out, `"moved": false`)
	assert.Contains(t, out, `"current": 1`)

	out = call(t, s, s.handlePreviousPage, nil)
	assert.Contains(t, out, `"moved": false`)

	out = call(t, s, s.handleNextPage, nil)
	assert.Contains(t, out, `"current": 2`)
}

func TestServer_RemoveLastPageRefused(t *testing.T) {
	s, em := newTestServer(t, 3)
	createDocument(t, s, "Report")

	out := call(t, s, s.handleRemoveCurrentPage, nil)
	assert.Contains(t, out, "cannot be removed")
	assert.Empty(t, em.requests, "no approval asked for the last page")
}

func TestServer_RemovePageNeedsApproval(t *testing.T) {
	s, em := newTestServer(t, 3)
	createDocument(t, s, "Report")
	call(t, s, s.handleAddPage, nil)

	go func() {
		a := <-em.requests
		s.Reject(a.ID)
	}()
	out := call(t, s, s.handleRemoveCurrentPage, nil)
	assert.Equal(t, "Action rejected by user", out)

	go func() {
		a := <-em.requests
		assert.Equal(t, "remove_current_page", a.Tool)
		s.Approve(a.ID)
	}()
	out = call(t, s, s.handleRemoveCurrentPage, nil)
	assert.Contains(t, out, `"total": 1`)
}

func TestServer_SaveExportAndRevisions(t *testing.T) {
	s, _ := newTestServer(t, 3)
	createDocument(t, s, "Report")
	call(t, s, s.handleInsertContent, map[string]any{"content": "Summary:\nAll good."})

	assert.Contains(t, call(t, s, s.handleSaveDocument, nil), "saved")

	md := call(t, s, s.handleExportMarkdown, nil)
	assert.True(t, strings.HasPrefix(md, "<!-- page 1 -->"))
	assert.Contains(t, md, "## Summary")

	out := call(t, s, s.handleExportMarkdown, map[string]any{"write": true})
	assert.Contains(t, out, "Written to")

	assert.Contains(t, call(t, s, s.handleListRevisions, nil), `"label": "save"`)
}

func TestServer_NoActiveDocument(t *testing.T) {
	s, _ := newTestServer(t, 3)
	var req mcp.CallToolRequest
	_, err := s.handleListPages(context.Background(), req)
	assert.ErrorContains(t, err, "set_active_document")
}

func TestServer_Resources(t *testing.T) {
	s, _ := newTestServer(t, 3)
	id := createDocument(t, s, "Report")

	var req mcp.ReadResourceRequest
	req.Params.URI = "pagedoc://documents"
	contents, err := s.handleDocumentsResource(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, contents, 1)
	assert.Contains(t, contents[0].(mcp.TextResourceContents).Text, id)

	req.Params.URI = "pagedoc://document/" + id + "/pages"
	contents, err = s.handleDocumentPagesResource(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, contents[0].(mcp.TextResourceContents).Text, `"number": 1`)
}

func TestExtractDocumentIDFromURI(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"pagedoc://document/abc-123/pages", "abc-123"},
		{"pagedoc://document//pages", ""},
		{"pagedoc://document/a/b/pages", ""},
		{"pagedoc://documents", ""},
		{"notes://page/abc/blocks", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractDocumentIDFromURI(tt.uri), tt.uri)
	}
}

func TestServer_DraftPrompt(t *testing.T) {
	s, _ := newTestServer(t, 3)
	var req mcp.GetPromptRequest
	req.Params.Arguments = map[string]string{"title": "Quarterly review"}
	res, err := s.handleDraftPrompt(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	text := res.Messages[0].Content.(mcp.TextContent).Text
	assert.Contains(t, text, "Quarterly review")
	assert.Contains(t, text, "insert_content")
}
