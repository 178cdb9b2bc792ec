package kernel

import "github.com/coal/gatetrap/internal/policy"

// Status is the read-only introspection surface exposed to dashboards and
// operator tooling.
type Status struct {
	Channel      string          `json:"channel"`
	Driver       string          `json:"driver"`
	Filters      map[string]bool `json:"filters"`
	Components   []string        `json:"components"`
	SessionLimit int             `json:"session_limit"`
	OnlineCount  int             `json:"online_count"`
}

// Status assembles the current snapshot. The online count is read from the
// session table and may lag by one expiry sweep.
func (k *Kernel) Status() Status {
	s := Status{
		Channel: k.cfg.Channel,
		Driver:  k.cfg.Driver.Type,
		Filters: map[string]bool{
			"frequency": k.cfg.Filters.Frequency.Enabled,
			"referer":   k.cfg.Filters.Referer.Enabled,
			"cookie":    k.cfg.Filters.Cookie.Enabled,
			"session":   k.cfg.Filters.Session.Enabled,
		},
		SessionLimit: k.sessions.Limit(),
	}

	if k.trusted != nil {
		s.Components = append(s.Components, k.trusted.Name())
	}
	if k.iplist != nil {
		s.Components = append(s.Components, k.iplist.Name())
	}
	for _, c := range k.components {
		s.Components = append(s.Components, c.Name())
	}

	if n, err := k.sessions.OnlineCount(); err == nil {
		s.OnlineCount = n
	}
	return s
}

// FilterEnabled reports one filter switch by name.
func (k *Kernel) FilterEnabled(name string) bool {
	return k.Status().Filters[name]
}

// CookieName returns the JS cookie name the HTTP layer must inject.
func (k *Kernel) CookieName() string {
	return k.cfg.Filters.Cookie.Name
}

// CookieEnabled reports whether the JS cookie filter runs.
func (k *Kernel) CookieEnabled() bool {
	return k.cfg.Filters.Cookie.Enabled
}

// CookieValue returns the value the injected script must set.
func (k *Kernel) CookieValue() string {
	return k.cfg.Filters.Cookie.Value
}

// Verdicts lists every terminal verdict, for dashboards.
func Verdicts() []policy.Verdict {
	return []policy.Verdict{
		policy.VerdictDeny,
		policy.VerdictAllow,
		policy.VerdictTempDeny,
		policy.VerdictLimitSession,
	}
}
