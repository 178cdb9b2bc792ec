package component

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/coal/gatetrap/internal/config"
	"github.com/coal/gatetrap/internal/policy"
	"github.com/coal/gatetrap/internal/visitor"
)

// TrustedBot verifies visitors claiming to be search engine crawlers.
// A user-agent signature marks a candidate; the candidate is genuine only
// when its reverse DNS name sits under one of the bot's domains AND that
// name resolves forward back to the visiting IP. A signature that fails
// verification is an impersonator and is denied outright.
type TrustedBot struct {
	bots     []config.TrustedBot
	resolver Resolver
	log      zerolog.Logger
}

// NewTrustedBot builds the component.
func NewTrustedBot(cfg config.TrustedBotConfig, resolver Resolver, log zerolog.Logger) *TrustedBot {
	return &TrustedBot{
		bots:     cfg.Bots,
		resolver: resolver,
		log:      log.With().Str("component", "trusted_bot").Logger(),
	}
}

// Name implements Component.
func (t *TrustedBot) Name() string { return "trusted_bot" }

// Check implements Component. Allowed results mean a verified crawler; the
// orchestrator pins an allow rule so future requests skip the lookups.
func (t *TrustedBot) Check(v *visitor.Visit) CheckResult {
	bot := t.match(v.UserAgent)
	if bot == nil {
		return CheckResult{}
	}

	if t.verify(v.IP, bot) {
		t.log.Debug().Str("ip", v.IP).Str("bot", bot.Name).Msg("verified crawler")
		return allow(allowReason(bot.Name))
	}

	t.log.Info().Str("ip", v.IP).Str("bot", bot.Name).Str("ua", v.UserAgent).
		Msg("fake crawler denied")
	return deny(policy.ReasonComponentTrustedRobot)
}

func (t *TrustedBot) match(ua string) *config.TrustedBot {
	for i := range t.bots {
		if strings.Contains(ua, t.bots[i].Agent) {
			return &t.bots[i]
		}
	}
	return nil
}

func (t *TrustedBot) verify(ip string, bot *config.TrustedBot) bool {
	names, err := t.resolver.LookupAddr(ip)
	if err != nil || len(names) == 0 {
		return false
	}

	for _, name := range names {
		host := strings.TrimSuffix(name, ".")
		if !suffixMatch(host, bot.Domains) {
			continue
		}
		addrs, err := t.resolver.LookupHost(host)
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if a == ip {
				return true
			}
		}
	}
	return false
}

func suffixMatch(host string, domains []string) bool {
	for _, d := range domains {
		if strings.HasSuffix(host, d) {
			return true
		}
	}
	return false
}

// allowReason keeps the engine-specific allow reasons for the big three.
func allowReason(bot string) policy.Reason {
	switch bot {
	case "google":
		return policy.ReasonIsGoogle
	case "bing":
		return policy.ReasonIsBing
	case "yahoo":
		return policy.ReasonIsYahoo
	default:
		return policy.ReasonIsSearchEngine
	}
}
