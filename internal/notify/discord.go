package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/brewgator/blink-relay/internal/metrics"
)

// DefaultTimeout bounds one webhook POST
const DefaultTimeout = 10 * time.Second

// Notifier delivers deposit notifications
type Notifier interface {
	Send(ctx context.Context, d Deposit) error
}

// DeliveryError is returned when Discord answers with a non-2xx status
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("discord webhook returned status %d: %s", e.StatusCode, e.Body)
}

// Discord posts deposits to a Discord execute-webhook URL. Every Send is a
// single attempt; failures are returned for the caller to log.
type Discord struct {
	webhookURL string
	roleID     string
	client     *http.Client
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewDiscord creates a Discord notifier. An empty webhookURL yields a
// notifier that only logs.
func NewDiscord(webhookURL, roleID string, logger zerolog.Logger, m *metrics.Metrics) *Discord {
	d := &Discord{
		webhookURL: webhookURL,
		roleID:     roleID,
		client:     &http.Client{Timeout: DefaultTimeout},
		logger:     logger.With().Str("component", "discord").Logger(),
		metrics:    m,
		now:        time.Now,
	}

	if webhookURL == "" {
		d.logger.Warn().Msg("DISCORD_WEBHOOK_URL not set, notifications disabled")
	}

	return d
}

// Enabled reports whether a destination is configured
func (d *Discord) Enabled() bool {
	return d.webhookURL != ""
}

// Send formats the deposit and posts it once
func (d *Discord) Send(ctx context.Context, dep Deposit) error {
	if !d.Enabled() {
		d.logger.Info().
			Str("kind", dep.Kind).
			Int64("amount_sats", dep.Amount).
			Msg("Skipping notification, no webhook URL configured")
		d.metrics.Notification(metrics.OutcomeDisabled)
		return nil
	}

	if err := d.post(ctx, BuildMessage(dep, d.roleID, d.now())); err != nil {
		d.metrics.Notification(metrics.OutcomeFailed)
		return err
	}

	d.metrics.Notification(metrics.OutcomeSent)
	d.metrics.Deposit(dep.Kind, dep.Amount)
	d.logger.Info().
		Str("kind", dep.Kind).
		Int64("amount_sats", dep.Amount).
		Msg("Notification sent")
	return nil
}

func (d *Discord) post(ctx context.Context, msg WebhookMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal discord message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &DeliveryError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	return nil
}
