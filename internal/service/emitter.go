package service

import (
	"context"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from the front end
// ─────────────────────────────────────────────────────────────

// EventEmitter is an interface for emitting events to the front end.
// Services receive this interface instead of a concrete transport,
// which makes them independently testable with a mock emitter.
// It matches pager.Emitter, so one value serves both layers.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// DocumentEvent wraps a pager event with the document it came from.
type DocumentEvent struct {
	DocumentID string `json:"documentId"`
	Data       any    `json:"data"`
}

// documentEmitter tags every pager event with its document id.
type documentEmitter struct {
	documentID string
	next       EventEmitter
}

func (e documentEmitter) Emit(ctx context.Context, event string, data any) {
	e.next.Emit(ctx, event, DocumentEvent{DocumentID: e.documentID, Data: data})
}

// NopEmitter discards every event.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, string, any) {}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Named returns the recorded events with the given name.
func (m *MockEmitter) Named(event string) []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EmittedEvent
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
