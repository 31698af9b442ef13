package pager

import (
	"context"
	"time"

	"go.uber.org/zap"

	"pagedoc/internal/editor"
	"pagedoc/internal/editor/memory"
)

const (
	DefaultMaxBlocksPerPage = 50
	DefaultPageInitDelay    = 100 * time.Millisecond
	DefaultFocusDelay       = 50 * time.Millisecond
)

// ErrorPolicy decides what bulk insertion and Save do with a failed unit.
type ErrorPolicy int

const (
	// BestEffort logs the failure, records it in the report and moves on.
	BestEffort ErrorPolicy = iota
	// Strict stops at the first failure and returns it.
	Strict
)

func (p ErrorPolicy) String() string {
	if p == Strict {
		return "strict"
	}
	return "best-effort"
}

// ParseErrorPolicy accepts "strict" or "best-effort" (the default).
func ParseErrorPolicy(s string) ErrorPolicy {
	if s == "strict" {
		return Strict
	}
	return BestEffort
}

// Emitter receives container and navigation events. It has the same shape
// as service.EventEmitter so the app can pass one straight through.
type Emitter interface {
	Emit(ctx context.Context, event string, data any)
}

// Confirmer approves destructive operations. A nil Confirmer means the
// caller has already confirmed.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// Options configures a Manager. Start from DefaultOptions; the zero value
// disables auto-paging.
type Options struct {
	// MaxBlocksPerPage is the block count at which a page counts as full.
	MaxBlocksPerPage int
	// AutoCreatePages appends a page when typing fills the last one.
	AutoCreatePages bool
	// PageInitDelay is waited after a bulk insertion creates a page, giving
	// the new editor time to finish initialising.
	PageInitDelay time.Duration
	// FocusDelay defers editor focus after navigation.
	FocusDelay  time.Duration
	ErrorPolicy ErrorPolicy

	EditorFactory editor.Factory
	Confirmer     Confirmer
	Emitter       Emitter
	Logger        *zap.Logger
}

// DefaultOptions returns options with memory editors and no confirmation.
func DefaultOptions() Options {
	return Options{
		MaxBlocksPerPage: DefaultMaxBlocksPerPage,
		AutoCreatePages:  true,
		PageInitDelay:    DefaultPageInitDelay,
		FocusDelay:       DefaultFocusDelay,
		ErrorPolicy:      BestEffort,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxBlocksPerPage <= 0 {
		o.MaxBlocksPerPage = DefaultMaxBlocksPerPage
	}
	if o.PageInitDelay < 0 {
		o.PageInitDelay = 0
	}
	if o.FocusDelay < 0 {
		o.FocusDelay = 0
	}
	if o.EditorFactory == nil {
		o.EditorFactory = memory.NewFactory(nil)
	}
	if o.Emitter == nil {
		o.Emitter = nopEmitter{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, string, any) {}
