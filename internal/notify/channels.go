package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LogChannel writes notifications to the service log.
type LogChannel struct {
	logger *zap.Logger
}

// NewLogChannel builds a log channel.
func NewLogChannel(logger *zap.Logger) *LogChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogChannel{logger: logger}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Send(_ context.Context, n Notification) error {
	c.logger.Info("notification",
		zap.String("notification_id", n.ID),
		zap.String("kind", string(n.Kind)),
		zap.String("report_id", n.ReportID),
		zap.Strings("recipients", n.Recipients),
		zap.String("message", n.Message))
	return nil
}

// WebhookChannel POSTs each notification as JSON.
type WebhookChannel struct {
	url     string
	timeout time.Duration
}

// NewWebhookChannel builds a webhook channel for url.
func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookChannel{url: url, timeout: timeout}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Send(_ context.Context, n Notification) error {
	agent := fiber.Post(c.url)
	agent.JSON(n)
	agent.Timeout(c.timeout)
	if err := agent.Parse(); err != nil {
		return fmt.Errorf("prepare webhook request: %w", err)
	}
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("webhook request: %w", errors.Join(errs...))
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return fmt.Errorf("webhook responded %d: %s", code, truncate(body, 256))
	}
	return nil
}

// Publisher is the part of the redis client RedisChannel needs. *redis.Client
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisChannel publishes notifications on a pub/sub channel for push gateways.
type RedisChannel struct {
	client  Publisher
	channel string
}

// NewRedisChannel builds a channel publishing to the given topic.
func NewRedisChannel(client Publisher, channel string) *RedisChannel {
	return &RedisChannel{client: client, channel: channel}
}

func (c *RedisChannel) Name() string { return "redis" }

func (c *RedisChannel) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := c.client.Publish(ctx, c.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func truncate(b []byte, limit int) string {
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
