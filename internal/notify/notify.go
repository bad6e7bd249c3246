// Package notify posts one-line status messages to a Slack-compatible
// incoming webhook. Delivery is best effort: a dead webhook must never
// fail a sync run or a comment command.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultTimeout = 10 * time.Second

// Notifier posts messages to a webhook URL. The zero value is a no-op.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a Notifier. An empty URL disables notifications.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: defaultTimeout},
	}
}

// Notify sends text to the webhook. Failures are logged and swallowed.
func (n *Notifier) Notify(ctx context.Context, text string) {
	if n == nil || n.webhookURL == "" {
		return
	}
	if err := n.send(ctx, text); err != nil {
		log.Warn().Err(err).Msg("notification delivery failed")
	}
}

func (n *Notifier) send(ctx context.Context, text string) error {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
