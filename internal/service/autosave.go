package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ── Autosave ──────────────────────────────────────────────

// DefaultAutosaveSchedule is the cron spec used when none is configured.
const DefaultAutosaveSchedule = "@every 30s"

// EventAutosaveFailed is emitted with the error text when a pass fails.
const EventAutosaveFailed = "document:autosave-failed"

// Autosaver periodically saves every open document with unsaved changes.
type Autosaver struct {
	docs    *DocumentService
	spec    string
	emitter EventEmitter
	log     *zap.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewAutosaver creates an Autosaver. An empty spec uses
// DefaultAutosaveSchedule.
func NewAutosaver(docs *DocumentService, spec string, emitter EventEmitter, log *zap.Logger) *Autosaver {
	if spec == "" {
		spec = DefaultAutosaveSchedule
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Autosaver{docs: docs, spec: spec, emitter: emitter, log: log}
}

// Start schedules the autosave job. Calling Start twice restarts it.
func (a *Autosaver) Start(ctx context.Context) error {
	a.Stop()

	c := cron.New()
	if _, err := c.AddFunc(a.spec, func() { a.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("autosave schedule %q: %w", a.spec, err)
	}
	c.Start()

	a.mu.Lock()
	a.cron = c
	a.mu.Unlock()
	a.log.Info("autosave scheduled", zap.String("schedule", a.spec))
	return nil
}

// RunOnce saves dirty documents now.
func (a *Autosaver) RunOnce(ctx context.Context) {
	if err := a.docs.SaveDirty(ctx); err != nil {
		a.log.Error("autosave failed", zap.Error(err))
		a.emitter.Emit(ctx, EventAutosaveFailed, err.Error())
	}
}

// Stop cancels the schedule and waits for a running pass to finish.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	c := a.cron
	a.cron = nil
	a.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}
