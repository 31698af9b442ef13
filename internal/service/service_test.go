package service_test

import (
	"context"
	"testing"
	"time"

	"pagedoc/internal/service"
)

// ─────────────────────────────────────────────────────────────
// generationGuard tests
// ─────────────────────────────────────────────────────────────

func TestGenerationGuard_TryLock(t *testing.T) {
	var g service.ExportedGenerationGuard

	if !g.TryLock("doc-1") {
		t.Fatal("expected first TryLock to succeed")
	}
	if g.TryLock("doc-1") {
		t.Fatal("expected second TryLock for same document to fail")
	}
	if !g.TryLock("doc-2") {
		t.Fatal("expected TryLock for different document to succeed")
	}
	g.Unlock("doc-1")
	g.Unlock("doc-2")

	if !g.TryLock("doc-1") {
		t.Fatal("expected TryLock to succeed after unlock")
	}
	g.Unlock("doc-1")
}

func TestGenerationGuard_WaitAll(t *testing.T) {
	var g service.ExportedGenerationGuard

	if !g.TryLock("doc-a") {
		t.Fatal("expected lock to succeed")
	}

	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		g.WaitAll(ctx)
		close(done)
	}()

	go func() {
		time.Sleep(20 * time.Millisecond)
		g.Unlock("doc-a")
	}()

	select {
	case <-done:
		// success
	case <-time.After(1 * time.Second):
		t.Fatal("WaitAll timed out")
	}
}

// ─────────────────────────────────────────────────────────────
// MockEmitter tests
// ─────────────────────────────────────────────────────────────

func TestMockEmitter_RecordsEvents(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "page:mounted", map[string]string{"foo": "bar"})
	m.Emit(ctx, "pager:navigation", nil)

	if len(m.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(m.Events))
	}
	if m.Events[0].Event != "page:mounted" {
		t.Errorf("expected 'page:mounted', got %q", m.Events[0].Event)
	}
}

func TestMockEmitter_LastEvent(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "a", "first")
	m.Emit(ctx, "b", "second")

	if m.Events[len(m.Events)-1].Event != "b" {
		t.Errorf("expected last event 'b', got %q", m.Events[len(m.Events)-1].Event)
	}
}

func TestGenerationGuard_Running(t *testing.T) {
	var g service.ExportedGenerationGuard

	if g.Running("doc-1") {
		t.Fatal("expected idle guard")
	}
	g.TryLock("doc-1")
	if !g.Running("doc-1") {
		t.Fatal("expected doc-1 to be running")
	}
	g.Unlock("doc-1")
	if g.Running("doc-1") {
		t.Fatal("expected doc-1 to be released")
	}
}

func TestMockEmitter_Named(t *testing.T) {
	m := &service.MockEmitter{}
	ctx := context.Background()

	m.Emit(ctx, "page:mounted", 1)
	m.Emit(ctx, "pager:navigation", 2)
	m.Emit(ctx, "page:mounted", 3)

	got := m.Named("page:mounted")
	if len(got) != 2 || got[1].Data != 3 {
		t.Errorf("unexpected named events: %+v", got)
	}
}
