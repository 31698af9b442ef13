package mcpserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultApprovalTimeout is how long a destructive tool call waits for a human.
const DefaultApprovalTimeout = 120 * time.Second

// ErrRejected is returned when a human rejects a pending action.
var ErrRejected = errors.New("action rejected by user")

// EventEmitter allows the approval queue to notify the front end.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// PendingAction represents a destructive operation awaiting user approval.
type PendingAction struct {
	ID          string `json:"id"`
	Tool        string `json:"tool"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
	Metadata    string `json:"metadata"` // JSON with extra context (e.g. document id)
}

// actionResult is sent through the channel when user approves/rejects.
type actionResult struct {
	approved bool
}

// ApprovalQueue manages human-in-the-loop approval for destructive tool calls.
// It supports two modes:
//   - In-process: pending actions are announced as events and resolved
//     through Approve / Reject
//   - DB-based (stdio MCP): pending actions are written to the
//     mcp_approvals table and another pagedoc process resolves them
type ApprovalQueue struct {
	mu      sync.Mutex
	pending map[string]chan actionResult
	emitter EventEmitter
	timeout time.Duration
	poll    time.Duration
	// DB-based mode for the stdio server (cross-process IPC)
	db *sql.DB
}

type toolKey struct{}

// withTool names the tool a confirmation raised under ctx belongs to.
func withTool(ctx context.Context, tool string) context.Context {
	return context.WithValue(ctx, toolKey{}, tool)
}

func NewApprovalQueue(emitter EventEmitter) *ApprovalQueue {
	return &ApprovalQueue{
		pending: make(map[string]chan actionResult),
		emitter: emitter,
		timeout: DefaultApprovalTimeout,
		poll:    500 * time.Millisecond,
	}
}

// SetDB enables DB-based approval mode.
func (q *ApprovalQueue) SetDB(db *sql.DB) {
	q.db = db
}

// SetTimeout changes how long requests wait. Non-positive values are ignored.
func (q *ApprovalQueue) SetTimeout(d time.Duration) {
	if d > 0 {
		q.timeout = d
	}
}

// Confirm asks a human to approve prompt. A rejection is reported as
// (false, nil) so callers can tell it from a timeout.
func (q *ApprovalQueue) Confirm(ctx context.Context, prompt string) (bool, error) {
	tool, _ := ctx.Value(toolKey{}).(string)
	if tool == "" {
		tool = "confirm"
	}
	ok, err := q.Request(ctx, tool, prompt)
	if errors.Is(err, ErrRejected) {
		return false, nil
	}
	return ok, err
}

// Request sends an approval request and blocks until approved/rejected.
// metadata is optional JSON with extra context.
func (q *ApprovalQueue) Request(ctx context.Context, tool, description string, metadata ...string) (bool, error) {
	id := uuid.New().String()
	meta := "{}"
	if len(metadata) > 0 && metadata[0] != "" {
		meta = metadata[0]
	}

	if q.db != nil {
		return q.requestViaDB(ctx, id, tool, description, meta)
	}
	return q.requestViaChannel(ctx, id, tool, description, meta)
}

// requestViaDB writes a pending approval to SQLite and polls until resolved.
func (q *ApprovalQueue) requestViaDB(ctx context.Context, id, tool, description, metadata string) (bool, error) {
	_, err := q.db.Exec(
		`INSERT INTO mcp_approvals (id, tool, description, status, metadata) VALUES (?, ?, ?, 'pending', ?)`,
		id, tool, description, metadata,
	)
	if err != nil {
		return false, fmt.Errorf("insert approval: %w", err)
	}
	defer q.db.Exec(`DELETE FROM mcp_approvals WHERE id = ?`, id)

	deadline := time.NewTimer(q.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(q.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			var status string
			err := q.db.QueryRow(`SELECT status FROM mcp_approvals WHERE id = ?`, id).Scan(&status)
			if err != nil {
				continue
			}
			switch status {
			case "approved":
				return true, nil
			case "rejected":
				return false, fmt.Errorf("%w: %s", ErrRejected, tool)
			}
			// Still pending
		case <-deadline.C:
			return false, fmt.Errorf("action timed out after %s: %s", q.timeout, tool)
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// requestViaChannel announces the action as an event and waits for
// Approve or Reject.
func (q *ApprovalQueue) requestViaChannel(ctx context.Context, id, tool, description, metadata string) (bool, error) {
	ch := make(chan actionResult, 1)

	q.mu.Lock()
	q.pending[id] = ch
	q.mu.Unlock()
	defer q.cleanup(id)

	q.emitter.Emit(ctx, "mcp:approval-required", PendingAction{
		ID:          id,
		Tool:        tool,
		Description: description,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
		Metadata:    metadata,
	})

	deadline := time.NewTimer(q.timeout)
	defer deadline.Stop()

	select {
	case result := <-ch:
		if !result.approved {
			return false, fmt.Errorf("%w: %s", ErrRejected, tool)
		}
		return true, nil
	case <-deadline.C:
		q.emitter.Emit(ctx, "mcp:approval-dismissed", map[string]string{"id": id})
		return false, fmt.Errorf("action timed out after %s: %s", q.timeout, tool)
	case <-ctx.Done():
		q.emitter.Emit(ctx, "mcp:approval-dismissed", map[string]string{"id": id})
		return false, ctx.Err()
	}
}

// Approve marks a pending action as approved.
func (q *ApprovalQueue) Approve(actionID string) bool {
	return q.resolve(actionID, true)
}

// Reject marks a pending action as rejected.
func (q *ApprovalQueue) Reject(actionID string) bool {
	return q.resolve(actionID, false)
}

func (q *ApprovalQueue) resolve(actionID string, approved bool) bool {
	q.mu.Lock()
	ch, ok := q.pending[actionID]
	q.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- actionResult{approved: approved}:
		return true
	default:
		return false
	}
}

// Pending lists in-process actions still waiting for a decision.
func (q *ApprovalQueue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, 0, len(q.pending))
	for id := range q.pending {
		ids = append(ids, id)
	}
	return ids
}

func (q *ApprovalQueue) cleanup(id string) {
	q.mu.Lock()
	delete(q.pending, id)
	q.mu.Unlock()
}

// ── Cross-process resolution ───────────────────────────────

// ListPendingDB returns actions waiting in the mcp_approvals table.
func ListPendingDB(db *sql.DB) ([]PendingAction, error) {
	rows, err := db.Query(
		`SELECT id, tool, description, created_at, metadata FROM mcp_approvals
		 WHERE status = 'pending' ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var out []PendingAction
	for rows.Next() {
		var a PendingAction
		if err := rows.Scan(&a.ID, &a.Tool, &a.Description, &a.CreatedAt, &a.Metadata); err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ResolveDB approves or rejects a pending action in the mcp_approvals table.
func ResolveDB(db *sql.DB, actionID string, approved bool) error {
	status := "rejected"
	if approved {
		status = "approved"
	}
	res, err := db.Exec(`UPDATE mcp_approvals SET status = ? WHERE id = ? AND status = 'pending'`, status, actionID)
	if err != nil {
		return fmt.Errorf("resolve approval: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no pending action %s", actionID)
	}
	return nil
}
