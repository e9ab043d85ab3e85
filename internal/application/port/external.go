package port

import (
	"context"

	"github.com/covana/insurance-backoffice/internal/domain/entity"
	"github.com/covana/insurance-backoffice/internal/domain/event"
)

// NotificationSink delivers a notification intent to its audience channel.
// Callers treat delivery as best-effort: the dispatcher logs and swallows
// errors, they never reach a transition's caller.
type NotificationSink interface {
	Deliver(ctx context.Context, evt *event.Event) error
}

// StatementWriter renders a refund statement document and returns the path
// of the generated file
type StatementWriter interface {
	WriteRefundStatement(ctx context.Context, rec *entity.RefundRecord) (string, error)
}

// NotificationRepository persists the delivery ledger behind the sinks
type NotificationRepository interface {
	// Create inserts a pending ledger row and sets notification.ID
	Create(ctx context.Context, notification *entity.Notification) error

	// MarkSent records a successful delivery
	MarkSent(ctx context.Context, id int64) error

	// MarkFailed records a failed delivery with the sink's error text and
	// bumps the attempt counter
	MarkFailed(ctx context.Context, id int64, reason string) error

	// ListRecent returns the newest ledger rows for the admin audit view
	ListRecent(ctx context.Context, limit int) ([]*entity.Notification, error)

	// ListRetryable returns failed rows with fewer than maxAttempts delivery
	// attempts, oldest failure first
	ListRetryable(ctx context.Context, limit, maxAttempts int) ([]*entity.Notification, error)
}
