package app

import (
	"context"

	"go.uber.org/zap"
)

// LogEmitter writes events to the debug log. It stands in for a front end
// when pagedoc runs headless.
type LogEmitter struct {
	log *zap.Logger
}

func NewLogEmitter(log *zap.Logger) *LogEmitter {
	return &LogEmitter{log: log}
}

func (e *LogEmitter) Emit(_ context.Context, event string, data any) {
	e.log.Debug("event", zap.String("event", event), zap.Any("data", data))
}
