package events

import (
	"log/slog"

	"github.com/ValentimSts/erc20-erc4626-experimental-vaults/core/types"
)

// LogEmitter writes every event as a structured log line. Payloads that can
// render themselves as a generic event contribute their attributes.
type LogEmitter struct {
	Logger *slog.Logger
}

type attributed interface {
	Event() *types.Event
}

// Emit implements the Emitter interface.
func (l LogEmitter) Emit(evt Event) {
	if evt == nil {
		return
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	args := []any{"type", evt.EventType()}
	if payload, ok := evt.(attributed); ok {
		if generic := payload.Event(); generic != nil {
			for key, value := range generic.Attributes {
				args = append(args, key, value)
			}
		}
	}
	logger.Info("vault event", args...)
}
