package alerting

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Notifier delivers a structured message to the notification channel. The
// destination comes from the configuration snapshot of the current run.
type Notifier interface {
	Send(ctx context.Context, webhookURL string, msg Message) error
}

// WebhookNotifier posts JSON messages to a configured webhook URL.
type WebhookNotifier struct {
	client *http.Client
	logger zerolog.Logger
}

// NewWebhookNotifier constructs the webhook channel.
func NewWebhookNotifier(timeout time.Duration, logger zerolog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{
		client: &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "webhook_notifier").Logger(),
	}
}

// Send posts the message. Any 2xx response counts as delivered.
func (n *WebhookNotifier) Send(ctx context.Context, webhookURL string, msg Message) error {
	parsed, err := url.Parse(webhookURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return PermanentError(fmt.Sprintf("invalid webhook url %q", webhookURL))
	}

	body, err := msg.Payload()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return PermanentError(fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return TransientError(err.Error())
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		n.logger.Debug().Int("status", resp.StatusCode).Msg("webhook delivered")
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return &DeliveryError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Message:    "rate limited by channel",
		}
	case resp.StatusCode >= 500:
		return &DeliveryError{StatusCode: resp.StatusCode, Message: "server error"}
	default:
		return &DeliveryError{StatusCode: resp.StatusCode, Permanent: true, Message: "rejected by channel"}
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

var _ Notifier = (*WebhookNotifier)(nil)
