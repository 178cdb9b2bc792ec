package messenger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coal/gatetrap/internal/config"
)

// Slack posts notifications to an incoming webhook.
type Slack struct {
	webhookURL string
	client     *http.Client
}

// NewSlack builds a Slack messenger.
func NewSlack(cfg config.SlackConfig) *Slack {
	return &Slack{
		webhookURL: cfg.WebhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Name implements Messenger.
func (s *Slack) Name() string { return "slack" }

// Send implements Messenger.
func (s *Slack) Send(message string) error {
	payload, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return fmt.Errorf("encoding slack payload: %w", err)
	}

	resp, err := s.client.Post(s.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("posting to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack responded %s", resp.Status)
	}
	return nil
}
