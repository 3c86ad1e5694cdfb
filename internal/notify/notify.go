// Package notify emits fire-and-forget subscriber notifications (SMS and
// WhatsApp delivery happen downstream of the emitted events).
package notify

import (
	"context"
	"log/slog"
	"time"
)

// EventType names a notification trigger.
type EventType string

const (
	EventVerificationCompleted EventType = "VERIFICATION_COMPLETED"
	EventAccountIssued         EventType = "ACCOUNT_ISSUED"
)

// Event is one notification request.
type Event struct {
	Type       EventType         `json:"type"`
	SessionID  string            `json:"session_id"`
	Language   string            `json:"language,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Notifier delivers events. Errors are reported to the caller for logging
// only; a failed notification never undoes the transition that caused it.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes events to the structured log. It is the fallback when no
// broker is configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, event Event) error {
	n.logger.InfoContext(ctx, "notification",
		"type", string(event.Type),
		"session_id", event.SessionID,
		"language", event.Language,
		"attributes", event.Attributes,
	)
	return nil
}
