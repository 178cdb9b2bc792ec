// Package messenger delivers escalation notifications to third-party
// endpoints. Delivery failures are the caller's problem to swallow: the
// contract is an error return, never a panic or a retry loop.
package messenger

import (
	"github.com/rs/zerolog"

	"github.com/coal/gatetrap/internal/config"
)

// Messenger sends one plain-text notification.
type Messenger interface {
	Name() string
	Send(message string) error
}

// Build assembles the configured messengers.
func Build(cfg config.MessengersConfig, log zerolog.Logger) []Messenger {
	var out []Messenger
	if cfg.Telegram.Enabled {
		out = append(out, NewTelegram(cfg.Telegram))
	}
	if cfg.Slack.Enabled {
		out = append(out, NewSlack(cfg.Slack))
	}
	if cfg.AMQP.Enabled {
		out = append(out, NewAMQP(cfg.AMQP, log))
	}
	return out
}
