package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"pagedoc/internal/pager"
)

func (s *Server) registerContentTools() {
	// ── insert_content ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("insert_content",
		mcp.WithDescription("Insert plain text into the document. Each non-blank line becomes a block; short upper-case lines and lines ending in ':' become headings. New pages are added as pages fill."),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
		mcp.WithString("content", mcp.Description("Text to insert"), mcp.Required()),
	), s.handleInsertContent)

	// ── insert_blocks ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("insert_blocks",
		mcp.WithDescription("Insert pre-built blocks. New pages are added as pages fill."),
		mcp.WithString("documentId", mcp.Description("Document ID (optional, defaults to active document)")),
		mcp.WithString("blocks",
			mcp.Description(`JSON array of blocks, e.g. [{"type":"header","data":{"text":"Intro","level":2}},{"type":"paragraph","data":{"text":"..."}}]`),
			mcp.Required(),
		),
	), s.handleInsertBlocks)
}

func (s *Server) handleInsertContent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, err := s.resolveDocumentID(args)
	if err != nil {
		return nil, err
	}
	content, _ := args["content"].(string)
	report, err := s.docs.InsertContent(ctx, id, content)
	if err != nil {
		return nil, fmt.Errorf("insert content: %w", err)
	}
	return s.insertResult(ctx, id, report)
}

func (s *Server) handleInsertBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	id, err := s.resolveDocumentID(args)
	if err != nil {
		return nil, err
	}
	raw, _ := args["blocks"].(string)
	blocks, err := parseBlocks(raw)
	if err != nil {
		return nil, err
	}
	report, err := s.docs.InsertBlocks(ctx, id, blocks)
	if err != nil {
		return nil, fmt.Errorf("insert blocks: %w", err)
	}
	return s.insertResult(ctx, id, report)
}

// insertSummary is what agents see after an insertion.
type insertSummary struct {
	Units        int      `json:"units"`
	Inserted     int      `json:"inserted"`
	PagesCreated int      `json:"pagesCreated"`
	TotalPages   int      `json:"totalPages"`
	CurrentPage  int      `json:"currentPage"`
	Failures     []string `json:"failures,omitempty"`
}

func (s *Server) insertResult(ctx context.Context, documentID string, report pager.InsertReport) (*mcp.CallToolResult, error) {
	if report.Inserted > 0 {
		s.emitPagesChanged(ctx, documentID)
	}
	nav, err := s.docs.Navigation(ctx, documentID)
	if err != nil {
		return nil, err
	}
	sum := insertSummary{
		Units:        report.Units,
		Inserted:     report.Inserted,
		PagesCreated: report.PagesCreated,
		TotalPages:   nav.Total,
		CurrentPage:  nav.Current,
	}
	for _, f := range report.Failed {
		sum.Failures = append(sum.Failures, f.Error())
	}
	if len(sum.Failures) > 0 {
		s.log.Warn("insertion had failures", zap.String("document_id", documentID), zap.Int("failed", len(sum.Failures)))
	}
	return jsonResult(sum)
}
