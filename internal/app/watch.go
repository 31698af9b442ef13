package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pagedoc/internal/inbox"
)

// Watch feeds files dropped into the inbox directory into documentID and
// autosaves until ctx is cancelled.
func (a *App) Watch(ctx context.Context, documentID string, onFile inbox.ProcessedHandler) error {
	if _, err := a.documents.Open(ctx, documentID); err != nil {
		return err
	}
	if err := a.StartAutosave(ctx); err != nil {
		return err
	}

	w, err := inbox.New(inbox.Options{
		Dir:        a.cfg.Inbox.Dir,
		DocumentID: documentID,
		Extensions: a.cfg.Inbox.Extensions,
		Settle:     a.cfg.Inbox.Settle,
		OnFile:     onFile,
		Logger:     a.log.Named("inbox"),
	}, a.documents)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start inbox: %w", err)
	}
	a.log.Info("watching inbox", zap.String("dir", a.cfg.Inbox.Dir), zap.String("document_id", documentID))

	<-ctx.Done()
	return w.Close()
}
