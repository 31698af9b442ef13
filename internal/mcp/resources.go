package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerResources() {
	// ── pagedoc://documents ────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		"pagedoc://documents",
		"All Documents",
		mcp.WithMIMEType("application/json"),
	), s.handleDocumentsResource)

	// ── pagedoc://document/{documentId}/pages ──────────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"pagedoc://document/{documentId}/pages",
			"Pages of a Document",
		),
		s.handleDocumentPagesResource,
	)
}

func (s *Server) handleDocumentsResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	docs, err := s.docs.ListDocuments()
	if err != nil {
		return nil, err
	}

	type documentSummary struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}

	summaries := make([]documentSummary, 0, len(docs))
	for _, d := range docs {
		summaries = append(summaries, documentSummary{ID: d.ID, Name: d.Name})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "pagedoc://documents",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleDocumentPagesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	documentID := extractDocumentIDFromURI(uri)
	if documentID == "" {
		return nil, fmt.Errorf("could not extract documentId from URI: %s", uri)
	}

	st, err := s.docs.State(ctx, documentID)
	if err != nil {
		return nil, err
	}

	data, _ := json.MarshalIndent(summarizePages(st), "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// extractDocumentIDFromURI extracts the id from "pagedoc://document/{id}/pages".
func extractDocumentIDFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, "pagedoc://document/")
	if !ok {
		return ""
	}
	id, ok := strings.CutSuffix(rest, "/pages")
	if !ok || id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
