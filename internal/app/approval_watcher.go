package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	mcpserver "pagedoc/internal/mcp"
)

// DefaultApprovalPoll is how often the approvals table is checked.
const DefaultApprovalPoll = 2 * time.Second

// approvalWatcher polls the mcp_approvals table for actions raised by a
// stdio MCP process and hands each new one to a handler exactly once.
type approvalWatcher struct {
	app      *App
	interval time.Duration
	handle   func(ctx context.Context, a mcpserver.PendingAction)
	// Track handled approval IDs to avoid re-prompting
	seen map[string]bool
}

// WatchApprovals blocks until ctx is cancelled, calling handle for every
// new pending approval.
func (a *App) WatchApprovals(ctx context.Context, interval time.Duration, handle func(context.Context, mcpserver.PendingAction)) error {
	if interval <= 0 {
		interval = DefaultApprovalPoll
	}
	w := &approvalWatcher{app: a, interval: interval, handle: handle, seen: map[string]bool{}}
	return w.pollLoop(ctx)
}

func (w *approvalWatcher) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.check(ctx)
	for {
		select {
		case <-ticker.C:
			w.check(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *approvalWatcher) check(ctx context.Context) {
	pending, err := mcpserver.ListPendingDB(w.app.db.Conn())
	if err != nil {
		w.app.log.Warn("list approvals", zap.Error(err))
		return
	}

	live := make(map[string]bool, len(pending))
	for _, p := range pending {
		live[p.ID] = true
		if w.seen[p.ID] {
			continue
		}
		w.seen[p.ID] = true
		w.handle(ctx, p)
	}
	// Forget resolved or expired approvals
	for id := range w.seen {
		if !live[id] {
			delete(w.seen, id)
		}
	}
}
