package notification

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/covana/insurance-backoffice/internal/application/port"
	"github.com/covana/insurance-backoffice/internal/domain/entity"
	"github.com/covana/insurance-backoffice/internal/domain/event"
	"github.com/covana/insurance-backoffice/pkg/utils"
)

// Delivery channel tags recorded in the ledger
const (
	ChannelLarkEmail = "lark_email"
	ChannelLarkChat  = "lark_chat"
)

// EmailSender delivers a text message to the user behind an email address
type EmailSender interface {
	SendTextToEmail(ctx context.Context, email, text string) error
}

// UserSink delivers user-audience events over Lark, addressed by the user's
// email, and records every attempt in the notification ledger
type UserSink struct {
	sender EmailSender
	ledger port.NotificationRepository
	logger *zap.Logger
}

// NewUserSink creates a new user notification sink
func NewUserSink(sender EmailSender, ledger port.NotificationRepository, logger *zap.Logger) port.NotificationSink {
	return &UserSink{
		sender: sender,
		ledger: ledger,
		logger: logger,
	}
}

// Deliver sends the message and settles the ledger row
func (s *UserSink) Deliver(ctx context.Context, evt *event.Event) error {
	subject, body := renderUserMessage(evt)

	row := &entity.Notification{
		EventID:   evt.ID,
		EventType: string(evt.Type),
		Audience:  string(evt.Audience),
		Channel:   ChannelLarkEmail,
		UserID:    evt.UserID,
		UserEmail: evt.UserEmail,
		Subject:   subject,
		Body:      body,
	}
	if err := s.ledger.Create(ctx, row); err != nil {
		// Ledger trouble must not block the user's message
		s.logger.Error("Failed to record notification", zap.Error(err), zap.String("event_id", evt.ID))
	}

	if err := utils.ValidateEmail(evt.UserEmail); err != nil {
		err = fmt.Errorf("event %s has no recipient email: %w", evt.ID, err)
		s.settle(ctx, row, err)
		return err
	}

	err := s.sender.SendTextToEmail(ctx, evt.UserEmail, subject+"\n"+body)
	s.settle(ctx, row, err)
	return err
}

func (s *UserSink) settle(ctx context.Context, row *entity.Notification, deliveryErr error) {
	if row.ID == 0 {
		return
	}
	var err error
	if deliveryErr != nil {
		err = s.ledger.MarkFailed(ctx, row.ID, deliveryErr.Error())
	} else {
		err = s.ledger.MarkSent(ctx, row.ID)
	}
	if err != nil {
		s.logger.Error("Failed to settle notification", zap.Error(err), zap.Int64("notification_id", row.ID))
	}
}

// Verify interface compliance
var _ port.NotificationSink = (*UserSink)(nil)
