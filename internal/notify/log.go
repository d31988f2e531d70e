package notify

import (
	"context"
	"log/slog"
)

// LogNotifier writes events to the structured log. It is the dev fallback and
// the audit trail companion to the Kafka stream.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, event Event) error {
	n.logger.InfoContext(ctx, "notification dispatched",
		"event_type", string(event.Type),
		"declaration_id", event.DeclarationID,
		"recipient_count", len(event.Recipients),
	)
	return nil
}
