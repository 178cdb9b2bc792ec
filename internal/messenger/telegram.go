package messenger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/coal/gatetrap/internal/config"
)

// Telegram posts notifications through the bot API sendMessage method.
type Telegram struct {
	token  string
	chatID string
	client *http.Client
}

// NewTelegram builds a Telegram messenger.
func NewTelegram(cfg config.TelegramConfig) *Telegram {
	return &Telegram{
		token:  cfg.Token,
		chatID: cfg.ChatID,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name implements Messenger.
func (t *Telegram) Name() string { return "telegram" }

// Send implements Messenger.
func (t *Telegram) Send(message string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id": t.chatID,
		"text":    message,
	})
	if err != nil {
		return fmt.Errorf("encoding telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.token)
	resp, err := t.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("posting to telegram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram responded %s", resp.Status)
	}
	return nil
}
