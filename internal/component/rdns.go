package component

import (
	"regexp"

	"github.com/rs/zerolog"

	"github.com/coal/gatetrap/internal/config"
	"github.com/coal/gatetrap/internal/policy"
	"github.com/coal/gatetrap/internal/visitor"
)

// RDNS denies visitors whose resolved hostname matches a configured
// pattern. In strict mode a visitor with no genuine reverse record (missing,
// or just the IP echoed back) is denied as well.
type RDNS struct {
	deny   []*regexp.Regexp
	strict bool
}

// NewRDNS builds the component; invalid patterns are skipped with a log
// line rather than failing startup.
func NewRDNS(cfg config.RDNSConfig, log zerolog.Logger) *RDNS {
	r := &RDNS{strict: cfg.Strict}
	for _, p := range cfg.Deny {
		re, err := regexp.Compile(p)
		if err != nil {
			log.Warn().Str("pattern", p).Err(err).Msg("skipping invalid rdns pattern")
			continue
		}
		r.deny = append(r.deny, re)
	}
	return r
}

// Name implements Component.
func (r *RDNS) Name() string { return "rdns" }

// Check implements Component. The hostname was resolved once by the
// orchestrator before components run.
func (r *RDNS) Check(v *visitor.Visit) CheckResult {
	if r.strict && (v.Hostname == "" || v.Hostname == v.IP) {
		return deny(policy.ReasonComponentRDNS)
	}
	if v.Hostname == "" {
		return CheckResult{}
	}
	for _, re := range r.deny {
		if re.MatchString(v.Hostname) {
			return deny(policy.ReasonComponentRDNS)
		}
	}
	return CheckResult{}
}
