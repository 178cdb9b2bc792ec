package component

import (
	"strings"

	"github.com/coal/gatetrap/internal/config"
	"github.com/coal/gatetrap/internal/policy"
	"github.com/coal/gatetrap/internal/visitor"
)

// defaultDeniedAgents is the built-in junk-crawler list, applied when the
// component is enabled with no explicit deny list.
var defaultDeniedAgents = []string{
	"MJ12bot",
	"AhrefsBot",
	"SemrushBot",
	"DotBot",
	"Bytespider",
	"MauiBot",
	"python-requests",
	"curl/",
	"wget/",
	"scrapy",
}

// UserAgent denies requests whose user agent contains a listed substring,
// or carries no user agent at all.
type UserAgent struct {
	deny []string
}

// NewUserAgent builds the component.
func NewUserAgent(cfg config.UserAgentConfig) *UserAgent {
	deny := cfg.Deny
	if len(deny) == 0 {
		deny = defaultDeniedAgents
	}
	return &UserAgent{deny: deny}
}

// Name implements Component.
func (u *UserAgent) Name() string { return "user_agent" }

// Check implements Component.
func (u *UserAgent) Check(v *visitor.Visit) CheckResult {
	if v.UserAgent == "" {
		return deny(policy.ReasonComponentUserAgent)
	}
	ua := strings.ToLower(v.UserAgent)
	for _, s := range u.deny {
		if strings.Contains(ua, strings.ToLower(s)) {
			return deny(policy.ReasonComponentUserAgent)
		}
	}
	return CheckResult{}
}
