package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"pagedoc/internal/config"
	"pagedoc/internal/pager"
	"pagedoc/internal/service"
	"pagedoc/internal/storage"
)

// App wires storage, services and background workers together. The CLI,
// the MCP server and the inbox watcher all run on top of one App.
type App struct {
	cfg       *config.Config
	log       *zap.Logger
	emitter   service.EventEmitter
	confirmer pager.Confirmer

	db        *storage.DB
	documents *service.DocumentService
	autosaver *service.Autosaver
}

// Option customises an App before Startup.
type Option func(*App)

// WithEmitter routes document events to e instead of the debug log.
func WithEmitter(e service.EventEmitter) Option {
	return func(a *App) { a.emitter = e }
}

// WithConfirmer sets who approves page removal. Without one, removal
// proceeds unconfirmed.
func WithConfirmer(c pager.Confirmer) Option {
	return func(a *App) { a.confirmer = c }
}

// New creates an App. Call Startup before use.
func New(cfg *config.Config, log *zap.Logger, opts ...Option) *App {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{cfg: cfg, log: log}
	for _, o := range opts {
		o(a)
	}
	if a.emitter == nil {
		a.emitter = NewLogEmitter(log.Named("events"))
	}
	return a
}

// Startup opens the database and builds the services.
func (a *App) Startup(ctx context.Context) error {
	db, err := storage.New(a.cfg.Storage.DBPath, a.cfg.Storage.ExportDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.db = db

	a.documents = service.NewDocumentService(
		storage.NewDocumentStore(db),
		storage.NewHistoryStore(db, a.cfg.Storage.MaxRevisions),
		service.NewSessionService(db),
		a.PagerOptions(),
		db.DataDir(),
		a.emitter,
		a.log.Named("documents"),
	)
	a.autosaver = service.NewAutosaver(a.documents, a.cfg.Autosave.Schedule, a.emitter, a.log.Named("autosave"))

	a.log.Debug("app started", zap.String("db", a.cfg.Storage.DBPath))
	return nil
}

// PagerOptions translates the pagination config.
func (a *App) PagerOptions() pager.Options {
	p := a.cfg.Pagination
	opts := pager.DefaultOptions()
	opts.MaxBlocksPerPage = p.MaxBlocksPerPage
	opts.AutoCreatePages = p.AutoCreate()
	opts.PageInitDelay = p.PageInitDelay
	opts.FocusDelay = p.FocusDelay
	opts.ErrorPolicy = pager.ParseErrorPolicy(p.ErrorPolicy)
	opts.Confirmer = a.confirmer
	return opts
}

// StartAutosave schedules periodic saving when enabled in the config.
func (a *App) StartAutosave(ctx context.Context) error {
	if !a.cfg.Autosave.On() {
		return nil
	}
	return a.autosaver.Start(ctx)
}

// Shutdown stops background work, saves open documents and closes the
// database.
func (a *App) Shutdown(ctx context.Context) error {
	if a.autosaver != nil {
		a.autosaver.Stop()
	}
	var errs []error
	if a.documents != nil {
		if err := a.documents.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("save documents: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) Documents() *service.DocumentService { return a.documents }

func (a *App) DB() *storage.DB { return a.db }

func (a *App) Config() *config.Config { return a.cfg }

func (a *App) Logger() *zap.Logger { return a.log }
