package mcpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"pagedoc/internal/service"
)

// Server is the MCP server for pagedoc.
// It exposes tools, resources, and prompts so AI agents can fill documents
// page by page.
type Server struct {
	mcp      *server.MCPServer
	emitter  EventEmitter
	approval *ApprovalQueue
	log      *zap.Logger

	docs *service.DocumentService

	// Active document override for this session (set by set_active_document)
	mu             sync.Mutex
	activeDocument string
}

// Deps holds all dependencies passed from the app layer to the MCP server.
type Deps struct {
	Emitter   EventEmitter
	Documents *service.DocumentService
	// Approval must be the queue the document service confirms page
	// removal through. When nil a new queue is created.
	Approval   *ApprovalQueue
	ApprovalDB *sql.DB // When set, use SQLite-based approval (stdio mode)
	Logger     *zap.Logger
	Version    string
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	if deps.Emitter == nil {
		deps.Emitter = service.NopEmitter{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}
	approval := deps.Approval
	if approval == nil {
		approval = NewApprovalQueue(deps.Emitter)
	}
	if deps.ApprovalDB != nil {
		approval.SetDB(deps.ApprovalDB)
	}
	s := &Server{
		emitter:  deps.Emitter,
		approval: approval,
		log:      deps.Logger,
		docs:     deps.Documents,
	}

	s.mcp = server.NewMCPServer(
		"pagedoc-mcp",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerDocumentTools()
	s.registerPageTools()
	s.registerContentTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.log.Info("starting MCP stdio server")
	return server.ServeStdio(s.mcp)
}

// MCPServer exposes the underlying server, e.g. for an SSE transport.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Approve forwards a user approval to the approval queue.
func (s *Server) Approve(actionID string) bool {
	return s.approval.Approve(actionID)
}

// Reject forwards a user rejection to the approval queue.
func (s *Server) Reject(actionID string) bool {
	return s.approval.Reject(actionID)
}

// ── Helpers ────────────────────────────────────────────────

// emitPagesChanged notifies listeners that a document's pages changed.
func (s *Server) emitPagesChanged(ctx context.Context, documentID string) {
	s.emitter.Emit(ctx, "mcp:pages-changed", map[string]string{"documentId": documentID})
}

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// resolveDocumentID returns the documentId from tool args or falls back to
// the session's active document, then the persisted one.
func (s *Server) resolveDocumentID(args map[string]any) (string, error) {
	if id, ok := args["documentId"].(string); ok && id != "" {
		return id, nil
	}
	s.mu.Lock()
	active := s.activeDocument
	s.mu.Unlock()
	id, err := s.docs.Resolve(active)
	if err != nil {
		return "", fmt.Errorf("no documentId provided and no active document set (use set_active_document first)")
	}
	return id, nil
}

func (s *Server) setActive(documentID string) {
	s.mu.Lock()
	s.activeDocument = documentID
	s.mu.Unlock()
}

func boolPtr(v bool) *bool { return &v }
