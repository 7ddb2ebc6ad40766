// Package notify forwards wager events to an external webhook.
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

	"github.com/wager-royale/backend/internal/events"
	"go.uber.org/zap"
)

// WebhookClient posts notifications for wager participants.
type WebhookClient struct {
	url        string
	httpClient *http.Client
	log        *zap.Logger
}

func NewWebhookClient(url string, log *zap.Logger) *WebhookClient {
	return &WebhookClient{
		url: strings.TrimSpace(url),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type Notification struct {
	Type       string   `json:"type"`
	WagerID    any      `json:"wager_id"`
	Status     string   `json:"status,omitempty"`
	Recipients []string `json:"recipients"`
	Text       string   `json:"text"`
}

// Build turns an event into a notification. ok is false for events nobody
// needs to hear about.
func Build(event events.Event) (Notification, bool) {
	var recipients []string
	for _, key := range []string{"creator_id", "joiner_id"} {
		if id, _ := event.Payload[key].(string); id != "" {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return Notification{}, false
	}

	status, _ := event.Payload["status"].(string)
	n := Notification{
		Type:       event.Type,
		WagerID:    event.Payload["wager_id"],
		Status:     status,
		Recipients: recipients,
	}

	switch event.Type {
	case events.EventWagerJoined:
		n.Text = fmt.Sprintf("Wager %v has an opponent", n.WagerID)
	case events.EventWagerStatusChanged:
		n.Text = fmt.Sprintf("Wager %v is now %s", n.WagerID, status)
	case events.EventWagerSettled:
		sig, _ := event.Payload["onchain_signature"].(string)
		n.Text = fmt.Sprintf("Wager %v paid out on chain: %s", n.WagerID, sig)
	default:
		return Notification{}, false
	}
	return n, true
}

func (c *WebhookClient) Forward(ctx context.Context, event events.Event) error {
	n, ok := Build(event)
	if !ok {
		return nil
	}
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify webhook unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("notify webhook returned %d: %s", resp.StatusCode, string(b))
	}
	c.log.Debug("notification forwarded", zap.String("type", n.Type), zap.Any("wager_id", n.WagerID))
	return nil
}
