package audit

import (
	"context"
	"log/slog"
	"time"
)

const appendTimeout = 5 * time.Second

// Worker consumes audit events from a channel and appends them to a store
// until the channel is closed. A failed append is logged and the event is
// dropped; audit sinks never block onboarding.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

func (w *Worker) Run() {
	for event := range w.inbox {
		ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
		if err := w.store.Append(ctx, event); err != nil {
			w.logger.Error("failed to append audit event",
				"request_id", event.RequestID,
				"event_type", event.Type,
				"error", err,
			)
		}
		cancel()
	}
}
