package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/covana/insurance-backoffice/internal/application/port"
	"github.com/covana/insurance-backoffice/internal/domain/entity"
	"github.com/covana/insurance-backoffice/internal/infrastructure/persistence/postgres"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *postgres.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification ledger repository
func NewNotificationRepository(db *postgres.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a pending ledger row
func (r *NotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	query := `
		INSERT INTO notifications (
			event_id, event_type, audience, channel, user_id, user_email,
			subject, body, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	if notification.Status == "" {
		notification.Status = entity.NotificationStatusPending
	}

	err := r.db.Executor(ctx).QueryRowContext(ctx, query,
		notification.EventID,
		notification.EventType,
		notification.Audience,
		notification.Channel,
		notification.UserID,
		notification.UserEmail,
		notification.Subject,
		notification.Body,
		notification.Status,
	).Scan(&notification.ID, &notification.CreatedAt, &notification.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to create notification", zap.Error(err), zap.String("event_id", notification.EventID))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

// MarkSent records a successful delivery
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64) error {
	query := `UPDATE notifications
		SET status = $1, error = '', attempts = attempts + 1, updated_at = now()
		WHERE id = $2`
	return r.exec(ctx, id, query, entity.NotificationStatusSent, id)
}

// MarkFailed records a failed delivery and bumps the attempt counter
func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	query := `UPDATE notifications
		SET status = $1, error = $2, attempts = attempts + 1, updated_at = now()
		WHERE id = $3`
	return r.exec(ctx, id, query, entity.NotificationStatusFailed, reason, id)
}

func (r *NotificationRepository) exec(ctx context.Context, id int64, query string, args ...interface{}) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update notification status", zap.Error(err), zap.Int64("notification_id", id))
		return fmt.Errorf("failed to update notification status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("notification %d not found", id)
	}
	return nil
}

// ListRecent returns the newest ledger rows
func (r *NotificationRepository) ListRecent(ctx context.Context, limit int) ([]*entity.Notification, error) {
	query := `
		SELECT id, event_id, event_type, audience, channel, user_id, user_email,
			subject, body, status, error, attempts, created_at, updated_at
		FROM notifications
		ORDER BY created_at DESC, id DESC
		LIMIT $1`
	return r.list(ctx, query, limit)
}

// ListRetryable returns failed rows still under the attempt cap, oldest
// failure first so stuck rows do not starve newer ones
func (r *NotificationRepository) ListRetryable(ctx context.Context, limit, maxAttempts int) ([]*entity.Notification, error) {
	query := `
		SELECT id, event_id, event_type, audience, channel, user_id, user_email,
			subject, body, status, error, attempts, created_at, updated_at
		FROM notifications
		WHERE status = 'failed' AND attempts < $2
		ORDER BY updated_at ASC, id ASC
		LIMIT $1`
	return r.list(ctx, query, limit, maxAttempts)
}

func (r *NotificationRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Notification, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*entity.Notification
	for rows.Next() {
		var n entity.Notification
		var userEmail, body, errText sql.NullString
		err := rows.Scan(
			&n.ID,
			&n.EventID,
			&n.EventType,
			&n.Audience,
			&n.Channel,
			&n.UserID,
			&userEmail,
			&n.Subject,
			&body,
			&n.Status,
			&errText,
			&n.Attempts,
			&n.CreatedAt,
			&n.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.UserEmail = userEmail.String
		n.Body = body.String
		n.Error = errText.String
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notifications: %w", err)
	}

	return notifications, nil
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
