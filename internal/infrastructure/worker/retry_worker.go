package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/covana/insurance-backoffice/internal/application/port"
	"github.com/covana/insurance-backoffice/internal/domain/entity"
	"github.com/covana/insurance-backoffice/internal/infrastructure/notification"
)

// RetrySender resends a ledger row over its original channel
type RetrySender interface {
	SendTextToEmail(ctx context.Context, email, text string) error
	SendTextToChat(ctx context.Context, chatID, text string) error
}

// RetryWorkerConfig holds configuration for the notification retry worker
type RetryWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	SendTimeout  time.Duration
}

// DefaultRetryWorkerConfig returns default configuration
func DefaultRetryWorkerConfig() RetryWorkerConfig {
	return RetryWorkerConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    20,
		MaxAttempts:  5,
		SendTimeout:  30 * time.Second,
	}
}

// NotificationRetryWorker re-delivers failed notification ledger rows.
// First delivery is fire-and-forget from the dispatcher; this loop gives
// transient channel outages a second chance without blocking transitions.
type NotificationRetryWorker struct {
	config      RetryWorkerConfig
	ledger      port.NotificationRepository
	sender      RetrySender
	adminChatID string
	logger      *zap.Logger

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
}

// NewNotificationRetryWorker creates a new retry worker
func NewNotificationRetryWorker(
	config RetryWorkerConfig,
	ledger port.NotificationRepository,
	sender RetrySender,
	adminChatID string,
	logger *zap.Logger,
) *NotificationRetryWorker {
	return &NotificationRetryWorker{
		config:      config,
		ledger:      ledger,
		sender:      sender,
		adminChatID: adminChatID,
		logger:      logger,
	}
}

// Start begins the polling loop
func (w *NotificationRetryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("retry worker already running")
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("NotificationRetryWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("max_attempts", w.config.MaxAttempts))

	go w.pollLoop()
	return nil
}

// Stop terminates the polling loop
func (w *NotificationRetryWorker) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isRunning {
		return nil
	}
	w.isRunning = false
	w.cancel()
	return nil
}

// Name returns the worker name for identification
func (w *NotificationRetryWorker) Name() string {
	return "NotificationRetryWorker"
}

func (w *NotificationRetryWorker) pollLoop() {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			if err := w.processRetryable(w.ctx); err != nil {
				w.logger.Error("Failed to process retryable notifications", zap.Error(err))
			}
		}
	}
}

// processRetryable resends one batch of failed ledger rows
func (w *NotificationRetryWorker) processRetryable(ctx context.Context) error {
	rows, err := w.ledger.ListRetryable(ctx, w.config.BatchSize, w.config.MaxAttempts)
	if err != nil {
		return fmt.Errorf("list retryable notifications: %w", err)
	}

	for _, row := range rows {
		sendCtx, cancel := context.WithTimeout(ctx, w.config.SendTimeout)
		err := w.resend(sendCtx, row)
		cancel()

		if err != nil {
			w.logger.Warn("Notification retry failed",
				zap.Int64("notification_id", row.ID),
				zap.Int("attempts", row.Attempts),
				zap.Error(err))
			if mErr := w.ledger.MarkFailed(ctx, row.ID, err.Error()); mErr != nil {
				w.logger.Error("Failed to settle retried notification", zap.Error(mErr), zap.Int64("notification_id", row.ID))
			}
			continue
		}

		w.logger.Info("Notification retried successfully",
			zap.Int64("notification_id", row.ID),
			zap.String("channel", row.Channel))
		if mErr := w.ledger.MarkSent(ctx, row.ID); mErr != nil {
			w.logger.Error("Failed to settle retried notification", zap.Error(mErr), zap.Int64("notification_id", row.ID))
		}
	}
	return nil
}

// resend replays the stored message over the row's original channel. The
// rendered subject and body live in the ledger, so no event state is needed.
func (w *NotificationRetryWorker) resend(ctx context.Context, row *entity.Notification) error {
	text := row.Subject + "\n" + row.Body

	switch row.Channel {
	case notification.ChannelLarkEmail:
		if row.UserEmail == "" {
			return fmt.Errorf("notification %d has no recipient email", row.ID)
		}
		return w.sender.SendTextToEmail(ctx, row.UserEmail, text)
	case notification.ChannelLarkChat:
		return w.sender.SendTextToChat(ctx, w.adminChatID, text)
	default:
		return fmt.Errorf("unknown notification channel %q", row.Channel)
	}
}
