package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerDocumentTools() {
	// ── list_documents ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List all documents"),
	), s.handleListDocuments)

	// ── create_document ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("create_document",
		mcp.WithDescription("Create a new document with one empty page and make it active"),
		mcp.WithString("name",
			mcp.Description("Name of the new document"),
			mcp.Required(),
		),
	), s.handleCreateDocument)

	// ── set_active_document ────────────────────────────
	s.mcp.AddTool(mcp.NewTool("set_active_document",
		mcp.WithDescription("Set the active document for subsequent tool calls. Tools that accept documentId will default to this."),
		mcp.WithString("documentId",
			mcp.Description("ID of the document to make active"),
			mcp.Required(),
		),
	), s.handleSetActiveDocument)

	// ── save_document ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("save_document",
		mcp.WithDescription("Persist the document's pages and record a revision"),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
	), s.handleSaveDocument)

	// ── export_markdown ────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("export_markdown",
		mcp.WithDescription("Render the document as markdown, one section per page"),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
		mcp.WithBoolean("write", mcp.Description("Also write the markdown to the export directory")),
	), s.handleExportMarkdown)

	// ── list_revisions ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_revisions",
		mcp.WithDescription("List saved revisions of a document, newest first"),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
	), s.handleListRevisions)

	// ── restore_revision (destructive) ─────────────────
	s.mcp.AddTool(mcp.NewTool("restore_revision",
		mcp.WithDescription("🛑 DESTRUCTIVE: Replace the document's pages with a saved revision. Requires user approval."),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
		mcp.WithString("revisionId", mcp.Description("Revision ID"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRestoreRevision)
}

func (s *Server) handleListDocuments(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.docs.ListDocuments()
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return jsonResult(docs)
}

func (s *Server) handleCreateDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	doc, err := s.docs.CreateDocument(name)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	// Auto-set as active document
	s.setActive(doc.ID)
	return jsonResult(doc)
}

func (s *Server) handleSetActiveDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("documentId", "")
	if id == "" {
		return nil, fmt.Errorf("documentId is required")
	}
	if err := s.docs.SetActiveDocument(id); err != nil {
		return nil, err
	}
	s.setActive(id)
	return textResult(fmt.Sprintf("Active document set to %s", id)), nil
}

func (s *Server) handleSaveDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDocumentID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	if err := s.docs.Save(ctx, id); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return textResult(fmt.Sprintf("Document %s saved", id)), nil
}

func (s *Server) handleExportMarkdown(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, err := s.resolveDocumentID(args)
	if err != nil {
		return nil, err
	}
	write, _ := args["write"].(bool)
	md, path, err := s.docs.ExportMarkdown(ctx, id, write)
	if err != nil {
		return nil, fmt.Errorf("export markdown: %w", err)
	}
	if path != "" {
		return textResult(fmt.Sprintf("Written to %s\n\n%s", path, md)), nil
	}
	return textResult(md), nil
}

func (s *Server) handleListRevisions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDocumentID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	revs, err := s.docs.History(id)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	return jsonResult(revs)
}

func (s *Server) handleRestoreRevision(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := s.resolveDocumentID(req.GetArguments())
	if err != nil {
		return nil, err
	}
	revID := req.GetString("revisionId", "")
	if revID == "" {
		return nil, fmt.Errorf("revisionId is required")
	}

	meta := fmt.Sprintf(`{"documentId":%q,"revisionId":%q}`, id, revID)
	approved, err := s.approval.Request(ctx, "restore_revision",
		fmt.Sprintf("Replace every page of document %s with revision %s", id, revID), meta)
	if err != nil || !approved {
		return textResult("Action rejected by user"), nil
	}

	st, err := s.docs.RestoreRevision(ctx, id, revID)
	if err != nil {
		return nil, fmt.Errorf("restore revision: %w", err)
	}
	s.emitPagesChanged(ctx, id)
	return jsonResult(summarizePages(st))
}
