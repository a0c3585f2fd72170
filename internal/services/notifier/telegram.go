// Package notifier delivers operator messages. Delivery is best effort: failures are logged, never returned.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/arbiter/internal/domain"
)

const telegramAPI = "https://api.telegram.org"

// Telegram posts messages through the Bot API sendMessage method.
type Telegram struct {
	token   string
	chatID  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// TelegramOption configures Telegram.
type TelegramOption func(*Telegram)

// WithBaseURL overrides the Bot API endpoint.
func WithBaseURL(url string) TelegramOption {
	return func(t *Telegram) {
		t.baseURL = url
	}
}

// WithHTTPClient replaces the default client with a 10 second timeout.
func WithHTTPClient(c *http.Client) TelegramOption {
	return func(t *Telegram) {
		t.client = c
	}
}

// NewTelegram creates a Telegram notifier for the given bot token and chat.
func NewTelegram(token, chatID string, logger *zap.Logger, opts ...TelegramOption) (*Telegram, error) {
	if token == "" || chatID == "" {
		return nil, errors.New("telegram token and chat id are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Telegram{
		token:   token,
		chatID:  chatID,
		baseURL: telegramAPI,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Send posts text to the chat. Errors wrap ErrNotificationDeliveryFailed.
func (t *Telegram) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    text,
	})
	if err != nil {
		return errors.Wrap(domain.ErrNotificationDeliveryFailed, err.Error())
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(domain.ErrNotificationDeliveryFailed, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// the url carries the token, keep it out of logs
		return errors.Wrap(domain.ErrNotificationDeliveryFailed, "send request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return errors.Wrapf(domain.ErrNotificationDeliveryFailed, "unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Notify sends text and logs delivery failures.
func (t *Telegram) Notify(ctx context.Context, text string) {
	if err := t.Send(ctx, text); err != nil {
		t.logger.Warn("telegram notification failed", zap.Error(err))
	}
}

// Nop discards every message.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, string) {}

// Log writes messages to the logger instead of a chat.
type Log struct {
	Logger *zap.Logger
}

// Notify logs text at info level.
func (l Log) Notify(_ context.Context, text string) {
	if l.Logger == nil {
		return
	}
	l.Logger.Info("notification", zap.String("text", text))
}
