// Package webhook notifies campaign owners when an async campaign ends.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Campaign lifecycle events.
const (
	EventCampaignCompleted = "campaign.completed"
	EventCampaignFailed    = "campaign.failed"
)

// SignatureHeader carries "sha256=<hex>" of the body when a secret is set.
const SignatureHeader = "X-Leadscout-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type       string `json:"type"`
	CampaignID string `json:"campaign_id"`
	Timestamp  int64  `json:"timestamp"`
	Data       any    `json:"data"`
}

// Notifier delivers events with retries. The zero value is not usable;
// call New.
type Notifier struct {
	client *http.Client
	delays []time.Duration
	wg     sync.WaitGroup
}

// New creates a Notifier that retries after 1s, 5s and 30s.
func New() *Notifier {
	return &Notifier{
		client: &http.Client{Timeout: 10 * time.Second},
		delays: []time.Duration{0, time.Second, 5 * time.Second, 30 * time.Second},
	}
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Deliver posts event once.
func (n *Notifier) Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Leadscout-Webhook/1.0")
	if secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync sends event in the background, retrying on failure.
func (n *Notifier) DeliverAsync(url, secret string, event *Event) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for attempt, delay := range n.delays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := n.Deliver(ctx, url, secret, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered", "url", url, "event", event.Type,
					"campaign_id", event.CampaignID, "attempt", attempt+1)
				return
			}
			slog.Warn("webhook delivery failed", "url", url, "event", event.Type,
				"campaign_id", event.CampaignID, "attempt", attempt+1, "error", err)
		}
		slog.Error("webhook delivery exhausted all retries", "url", url, "event", event.Type,
			"campaign_id", event.CampaignID)
	}()
}

// Wait blocks until every pending async delivery has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}
