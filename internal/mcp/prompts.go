package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("draft_document",
		mcp.WithPromptDescription("Guide through drafting a multi-page document by streaming text into pages"),
		mcp.WithArgument("title",
			mcp.ArgumentDescription("Title of the document"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("outline",
			mcp.ArgumentDescription("Sections to cover (optional)"),
		),
	), s.handleDraftPrompt)
}

func (s *Server) handleDraftPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	title := req.Params.Arguments["title"]
	outline := req.Params.Arguments["outline"]
	if outline == "" {
		outline = "an introduction, the body sections you judge necessary, and a conclusion"
	}
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Draft the document: %s", title),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Draft a document titled "%s" covering %s. Follow these steps:

1. Use create_document with the title as the name (or set_active_document if it already exists)
2. Send the text section by section with insert_content. Put each heading on its own line, either in UPPER CASE or ending with ':'. Every other non-blank line becomes a paragraph.
3. Do not add pages yourself: pages are added automatically as each one fills up
4. Check the result with list_pages, then call save_document
5. Use export_markdown to show the final document

Keep paragraphs to one line each so they map to one block.`, title, outline),
				},
			},
		},
	}, nil
}
