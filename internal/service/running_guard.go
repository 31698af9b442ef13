package service

import (
	"context"
	"sync"
)

// ExportedGenerationGuard is an exported alias so _test packages can test the guard.
type ExportedGenerationGuard = generationGuard

// ─────────────────────────────────────────────────────────────
// generationGuard: one bulk insertion per document at a time
// ─────────────────────────────────────────────────────────────

// generationGuard refuses a second bulk insertion into a document while
// one is running, instead of queueing it behind the document lock.
type generationGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// TryLock marks documentID as generating. It returns false if a
// generation is already running for it.
func (g *generationGuard) TryLock(documentID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.running == nil {
		g.running = make(map[string]struct{})
	}
	if _, ok := g.running[documentID]; ok {
		return false
	}
	g.running[documentID] = struct{}{}
	g.wg.Add(1)
	return true
}

// Unlock ends the generation. Must follow a successful TryLock.
func (g *generationGuard) Unlock(documentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.running, documentID)
	g.wg.Done()
}

// Running reports whether documentID is generating.
func (g *generationGuard) Running(documentID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[documentID]
	return ok
}

// WaitAll blocks until all running generations finish or ctx is cancelled.
func (g *generationGuard) WaitAll(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
