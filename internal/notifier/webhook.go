package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookClient 外部 Webhook 客户端（如院方事件总线/寻呼网关）
type WebhookClient struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
}

// NewWebhookClient 创建 Webhook 客户端
func NewWebhookClient(url string, timeout time.Duration, logger *zap.Logger) *WebhookClient {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &WebhookClient{
		httpClient: client,
		url:        url,
		logger:     logger,
	}
}

// Deliver 投递一次通知事件
func (c *WebhookClient) Deliver(ctx context.Context, payload *Event) error {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("webhook post failed: %w", err)
	}

	if resp.StatusCode() >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode())
	}

	c.logger.Debug("Webhook delivered",
		zap.String("event", payload.Event),
		zap.String("alert_id", payload.Alert.AlertID),
		zap.Int("status", resp.StatusCode()),
	)

	return nil
}
