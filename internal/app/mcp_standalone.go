package app

import (
	"context"

	"go.uber.org/zap"

	"pagedoc/internal/config"
	mcpserver "pagedoc/internal/mcp"
)

// ServeMCP runs pagedoc as an MCP server on stdin/stdout until the client
// disconnects. Destructive tools wait for approval through the
// mcp_approvals table, resolved by `pagedoc approvals` in another terminal.
func ServeMCP(ctx context.Context, cfg *config.Config, log *zap.Logger, version string) error {
	emitter := NewLogEmitter(log.Named("events"))
	approval := mcpserver.NewApprovalQueue(emitter)
	approval.SetTimeout(cfg.Approval.Timeout)

	a := New(cfg, log, WithEmitter(emitter), WithConfirmer(approval))
	if err := a.Startup(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.Shutdown(context.Background()); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	}()
	if err := a.StartAutosave(ctx); err != nil {
		return err
	}

	srv := mcpserver.New(mcpserver.Deps{
		Emitter:    emitter,
		Documents:  a.Documents(),
		Approval:   approval,
		ApprovalDB: a.DB().Conn(), // Enable SQLite-based approval IPC
		Logger:     log.Named("mcp"),
		Version:    version,
	})
	return srv.ServeStdio()
}
