package mcpserver

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagedoc/internal/storage"
)

// approvalEmitter forwards approval requests to a channel.
type approvalEmitter struct {
	requests chan PendingAction
}

func newApprovalEmitter() *approvalEmitter {
	return &approvalEmitter{requests: make(chan PendingAction, 8)}
}

func (e *approvalEmitter) Emit(_ context.Context, event string, data any) {
	if a, ok := data.(PendingAction); ok && event == "mcp:approval-required" {
		e.requests <- a
	}
}

func TestApprovalQueue_Approve(t *testing.T) {
	em := newApprovalEmitter()
	q := NewApprovalQueue(em)

	go func() {
		a := <-em.requests
		q.Approve(a.ID)
	}()

	ok, err := q.Confirm(withTool(context.Background(), "remove_current_page"), "Delete page 2 of 3?")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, q.Pending())
}

func TestApprovalQueue_RejectIsNotAnError(t *testing.T) {
	em := newApprovalEmitter()
	q := NewApprovalQueue(em)

	go func() {
		a := <-em.requests
		assert.Equal(t, "remove_current_page", a.Tool)
		q.Reject(a.ID)
	}()

	ok, err := q.Confirm(withTool(context.Background(), "remove_current_page"), "Delete?")
	require.NoError(t, err)
	assert.False(t, ok)

	go func() {
		a := <-em.requests
		q.Reject(a.ID)
	}()
	_, err = q.Request(context.Background(), "restore_revision", "Restore?")
	assert.ErrorIs(t, err, ErrRejected)
}

func TestApprovalQueue_Timeout(t *testing.T) {
	q := NewApprovalQueue(newApprovalEmitter())
	q.SetTimeout(20 * time.Millisecond)

	ok, err := q.Confirm(context.Background(), "Delete?")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "timed out")
}

func TestApprovalQueue_ContextCancelled(t *testing.T) {
	q := NewApprovalQueue(newApprovalEmitter())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := q.Confirm(ctx, "Delete?")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApprovalQueue_ResolveUnknown(t *testing.T) {
	q := NewApprovalQueue(newApprovalEmitter())
	assert.False(t, q.Approve("nope"))
	assert.False(t, q.Reject("nope"))
}

func TestApprovalQueue_DBMode(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.New(filepath.Join(dir, "pagedoc.db"), filepath.Join(dir, "exports"))
	require.NoError(t, err)
	defer db.Close()

	q := NewApprovalQueue(newApprovalEmitter())
	q.SetDB(db.Conn())
	q.poll = 5 * time.Millisecond

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			pending, err := ListPendingDB(db.Conn())
			if err == nil && len(pending) == 1 {
				assert.Equal(t, "remove_current_page", pending[0].Tool)
				assert.NoError(t, ResolveDB(db.Conn(), pending[0].ID, true))
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	ok, err := q.Confirm(withTool(context.Background(), "remove_current_page"), "Delete page 1 of 2?")
	<-done
	require.NoError(t, err)
	assert.True(t, ok)

	pending, err := ListPendingDB(db.Conn())
	require.NoError(t, err)
	assert.Empty(t, pending, "resolved approvals are removed")
	assert.Error(t, ResolveDB(db.Conn(), "missing", false))
}
