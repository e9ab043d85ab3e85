package lark

import (
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// Config holds Lark client configuration
type Config struct {
	AppID       string
	AppSecret   string
	AdminChatID string // back-office operations chat for admin notifications
}

// SDKClient wraps the Lark SDK client
type SDKClient struct {
	client      *lark.Client
	adminChatID string
	logger      *zap.Logger
}

// NewSDKClient creates a new Lark SDK client
func NewSDKClient(cfg Config, logger *zap.Logger) *SDKClient {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)

	return &SDKClient{
		client:      client,
		adminChatID: cfg.AdminChatID,
		logger:      logger,
	}
}

// GetClient returns the underlying Lark SDK client
func (c *SDKClient) GetClient() *lark.Client {
	return c.client
}

// GetAdminChatID returns the operations chat id
func (c *SDKClient) GetAdminChatID() string {
	return c.adminChatID
}
