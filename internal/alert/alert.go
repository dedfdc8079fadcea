// Package alert delivers best-effort notifications about task outcomes.
// The Notifier is constructed once at startup and injected where needed;
// there is no package-level state. Delivery failures are logged and reported
// to the immediate caller, but nothing in the pipeline treats them as fatal.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Destination selects a notification channel.
type Destination string

const (
	Monitoring Destination = "monitoring"
	Telegram   Destination = "telegram"
	Logging    Destination = "logging"
)

// Config holds credentials and endpoints for the outbound channels. Leaving
// a channel unconfigured makes Notify for it a logged no-op.
type Config struct {
	TelegramBotToken string
	TelegramChatID   string
	MonitoringURL    string

	// TelegramAPIBase overrides the Telegram API host, used by tests.
	TelegramAPIBase string
}

// Notifier fans alert messages out to the configured channels.
type Notifier struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

func NewNotifier(cfg Config, logger *slog.Logger) *Notifier {
	if cfg.TelegramAPIBase == "" {
		cfg.TelegramAPIBase = "https://api.telegram.org"
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Notify sends message to the given destination. Unknown destinations are an
// error; misconfigured or unreachable channels are logged and returned, and
// callers are expected to continue regardless.
func (n *Notifier) Notify(ctx context.Context, dest Destination, message string) error {
	switch dest {
	case Telegram:
		return n.sendTelegram(ctx, message)
	case Monitoring:
		return n.sendMonitoring(ctx, message)
	case Logging:
		n.logger.Info("ALERT", "message", message)
		return nil
	default:
		n.logger.Error("unsupported alert destination", "destination", string(dest))
		return fmt.Errorf("unsupported alert destination %q", dest)
	}
}

func (n *Notifier) sendTelegram(ctx context.Context, message string) error {
	if n.cfg.TelegramBotToken == "" || n.cfg.TelegramChatID == "" {
		n.logger.Warn("telegram bot token or chat id not configured, alert dropped")
		return nil
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.cfg.TelegramAPIBase, n.cfg.TelegramBotToken)
	form := url.Values{}
	form.Set("chat_id", n.cfg.TelegramChatID)
	form.Set("text", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("telegram alert: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("failed to send telegram alert", "error", err)
		return fmt.Errorf("telegram alert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		n.logger.Error("telegram alert rejected", "status", resp.StatusCode)
		return fmt.Errorf("telegram alert: unexpected status %d", resp.StatusCode)
	}
	n.logger.Debug("telegram alert delivered")
	return nil
}

func (n *Notifier) sendMonitoring(ctx context.Context, message string) error {
	if n.cfg.MonitoringURL == "" {
		n.logger.Warn("monitoring webhook not configured, alert dropped")
		return nil
	}
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return fmt.Errorf("monitoring alert: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.MonitoringURL, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("monitoring alert: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("failed to send monitoring alert", "error", err)
		return fmt.Errorf("monitoring alert: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		n.logger.Error("monitoring alert rejected", "status", resp.StatusCode)
		return fmt.Errorf("monitoring alert: unexpected status %d", resp.StatusCode)
	}
	return nil
}
