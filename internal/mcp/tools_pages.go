package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"pagedoc/internal/pager"
)

func (s *Server) registerPageTools() {
	// ── list_pages ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List the pages of a document with block and word counts"),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
	), s.handleListPages)

	// ── add_page ───────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("add_page",
		mcp.WithDescription("Append an empty page and make it current"),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
	), s.handleAddPage)

	// ── go_to_page ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("go_to_page",
		mcp.WithDescription("Make the given page current. Out-of-range page numbers are ignored."),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
		mcp.WithNumber("page", mcp.Description("1-based page number"), mcp.Required()),
	), s.handleGoToPage)

	// ── next_page / previous_page ──────────────────────
	s.mcp.AddTool(mcp.NewTool("next_page",
		mcp.WithDescription("Move to the next page, if any"),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
	), s.handleNextPage)

	s.mcp.AddTool(mcp.NewTool("previous_page",
		mcp.WithDescription("Move to the previous page, if any"),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
	), s.handlePreviousPage)

	// ── remove_current_page (destructive) ──────────────
	s.mcp.AddTool(mcp.NewTool("remove_current_page",
		mcp.WithDescription("🛑 DESTRUCTIVE: Delete the current page. The last remaining page cannot be removed. Requires user approval."),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRemoveCurrentPage)
}

func (s *Server) handleListPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDocumentID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	st, err := s.docs.State(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	return jsonResult(summarizePages(st))
}

func (s *Server) handleAddPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDocumentID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	page, err := s.docs.AddPage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("add page: %w", err)
	}
	s.emitPagesChanged(ctx, id)
	return jsonResult(map[string]any{"id": page.ID, "number": page.Number})
}

func (s *Server) handleGoToPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, err := s.resolveDocumentID(args)
	if err != nil {
		return nil, err
	}
	number, ok := args["page"].(float64)
	if !ok {
		return nil, fmt.Errorf("page is required")
	}
	nav, moved, err := s.docs.GoToPage(ctx, id, int(number)-1)
	if err != nil {
		return nil, fmt.Errorf("go to page: %w", err)
	}
	return navResult(nav, moved)
}

func (s *Server) handleNextPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDocumentID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	nav, moved, err := s.docs.NextPage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("next page: %w", err)
	}
	return navResult(nav, moved)
}

func (s *Server) handlePreviousPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDocumentID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	nav, moved, err := s.docs.PreviousPage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("previous page: %w", err)
	}
	return navResult(nav, moved)
}

func (s *Server) handleRemoveCurrentPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDocumentID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	// The document service asks the approval queue through the pager's
	// confirmer, tagged with this tool's name.
	removed, err := s.docs.RemoveCurrentPage(withTool(ctx, "remove_current_page"), id)
	switch {
	case errors.Is(err, pager.ErrLastPage):
		return textResult("The only page of a document cannot be removed"), nil
	case errors.Is(err, pager.ErrNotConfirmed):
		return textResult("Action rejected by user"), nil
	case err != nil:
		return nil, fmt.Errorf("remove page: %w", err)
	}
	if !removed {
		return textResult("Page not removed"), nil
	}
	s.emitPagesChanged(ctx, id)
	nav, err := s.docs.Navigation(ctx, id)
	if err != nil {
		return nil, err
	}
	return jsonResult(nav)
}

func navResult(nav pager.NavState, moved bool) (*mcp.CallToolResult, error) {
	return jsonResult(struct {
		Moved bool `json:"moved"`
		pager.NavState
	}{moved, nav})
}
