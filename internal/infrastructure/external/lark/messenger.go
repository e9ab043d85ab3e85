package lark

import (
	"context"
	"encoding/json"
	"fmt"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// Messenger sends plain text messages through Lark, either into a chat or to
// a user addressed by email
type Messenger struct {
	sdk    *SDKClient
	logger *zap.Logger
}

// NewMessenger creates a new Lark messenger
func NewMessenger(sdk *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		sdk:    sdk,
		logger: logger,
	}
}

// SendTextToChat posts a text message into a group chat
func (m *Messenger) SendTextToChat(ctx context.Context, chatID, text string) error {
	if chatID == "" {
		return fmt.Errorf("chat id cannot be empty")
	}
	return m.send(ctx, larkim.ReceiveIdTypeChatId, chatID, text)
}

// SendTextToEmail sends a text message to the user behind an email address
func (m *Messenger) SendTextToEmail(ctx context.Context, email, text string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	return m.send(ctx, larkim.ReceiveIdTypeEmail, email, text)
}

func (m *Messenger) send(ctx context.Context, receiveIDType, receiveID, text string) error {
	if text == "" {
		return fmt.Errorf("message text cannot be empty")
	}

	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal message content: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(larkim.MsgTypeText).
			Content(string(content)).
			Build()).
		Build()

	resp, err := m.sdk.GetClient().Im.Message.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send Lark message",
			zap.String("receive_id_type", receiveIDType),
			zap.Error(err))
		return fmt.Errorf("failed to send lark message: %w", err)
	}
	if !resp.Success() {
		m.logger.Error("Lark rejected message",
			zap.String("receive_id_type", receiveIDType),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("lark rejected message: code=%d msg=%s", resp.Code, resp.Msg)
	}

	return nil
}
