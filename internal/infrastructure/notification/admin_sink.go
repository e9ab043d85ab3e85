package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/covana/insurance-backoffice/internal/application/port"
	"github.com/covana/insurance-backoffice/internal/domain/entity"
	"github.com/covana/insurance-backoffice/internal/domain/event"
)

// ChatSender posts a text message into a group chat
type ChatSender interface {
	SendTextToChat(ctx context.Context, chatID, text string) error
}

// AdminSink posts admin-audience events into the back-office operations chat
type AdminSink struct {
	sender ChatSender
	chatID string
	ledger port.NotificationRepository
	logger *zap.Logger
}

// NewAdminSink creates a new admin notification sink
func NewAdminSink(sender ChatSender, chatID string, ledger port.NotificationRepository, logger *zap.Logger) port.NotificationSink {
	return &AdminSink{
		sender: sender,
		chatID: chatID,
		ledger: ledger,
		logger: logger,
	}
}

// Deliver posts the message and settles the ledger row
func (s *AdminSink) Deliver(ctx context.Context, evt *event.Event) error {
	subject, body := renderAdminMessage(evt)

	row := &entity.Notification{
		EventID:   evt.ID,
		EventType: string(evt.Type),
		Audience:  string(evt.Audience),
		Channel:   ChannelLarkChat,
		Subject:   subject,
		Body:      body,
	}
	if err := s.ledger.Create(ctx, row); err != nil {
		s.logger.Error("Failed to record notification", zap.Error(err), zap.String("event_id", evt.ID))
	}

	err := s.sender.SendTextToChat(ctx, s.chatID, subject+"\n"+body)

	if row.ID != 0 {
		var ledgerErr error
		if err != nil {
			ledgerErr = s.ledger.MarkFailed(ctx, row.ID, err.Error())
		} else {
			ledgerErr = s.ledger.MarkSent(ctx, row.ID)
		}
		if ledgerErr != nil {
			s.logger.Error("Failed to settle notification", zap.Error(ledgerErr), zap.Int64("notification_id", row.ID))
		}
	}

	return err
}

// Verify interface compliance
var _ port.NotificationSink = (*AdminSink)(nil)
