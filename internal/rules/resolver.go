// Package rules resolves standing allow/deny/temp-deny rules and runs the
// escalation state machine that promotes repeat offenders.
package rules

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/coal/gatetrap/internal/config"
	"github.com/coal/gatetrap/internal/driver"
	"github.com/coal/gatetrap/internal/iptables"
	"github.com/coal/gatetrap/internal/policy"
)

// Outcome is the result of a rule table lookup. Found is false when no
// standing rule exists and the behavioral filters should run instead.
type Outcome struct {
	Found   bool
	Verdict policy.Verdict
	Reason  policy.Reason

	// Notify is non-nil when an escalation step asked for a messenger
	// dispatch.
	Notify *Notification
}

// Notification describes an escalation event for the messengers.
type Notification struct {
	IP       string
	Hostname string
	Reason   policy.Reason
	Handle   policy.HandleType
	Attempts int64
}

// Resolver looks up standing rules and drives escalation bookkeeping.
type Resolver struct {
	drv    driver.Driver
	events config.EventsConfig
	queue  *iptables.Queue
	log    zerolog.Logger
}

// NewResolver creates a rule resolver. queue may be nil when the system
// firewall event is disabled.
func NewResolver(drv driver.Driver, events config.EventsConfig, queue *iptables.Queue, log zerolog.Logger) *Resolver {
	return &Resolver{
		drv:    drv,
		events: events,
		queue:  queue,
		log:    log.With().Str("component", "rules").Logger(),
	}
}

// Allowed reports the visitor's standing allow rule, if any. Runs ahead of
// the component checks so a pinned crawler never repeats its DNS
// verification.
func (r *Resolver) Allowed(ip string) (policy.Reason, bool, error) {
	rec, found, err := driver.GetRule(r.drv, ip)
	if err != nil {
		return policy.ReasonNone, false, fmt.Errorf("loading rule record: %w", err)
	}
	if !found || rec.Type != policy.RuleAllow {
		return policy.ReasonNone, false, nil
	}
	return rec.Reason, true, nil
}

// Resolve returns the standing verdict for the visitor, if any. ALLOW rules
// short-circuit with no bookkeeping; TEMP_DENY and DENY rules accumulate
// attempt counters and may escalate.
func (r *Resolver) Resolve(ip string, now int64) (Outcome, error) {
	rec, found, err := driver.GetRule(r.drv, ip)
	if err != nil {
		return Outcome{}, fmt.Errorf("loading rule record: %w", err)
	}
	if !found {
		return Outcome{}, nil
	}

	out := Outcome{Found: true, Verdict: rec.Type.Verdict(), Reason: rec.Reason}
	if rec.Type == policy.RuleAllow {
		return out, nil
	}

	delta := now - rec.Time
	if delta <= r.events.RecordAttemptDetectionPeriod {
		rec.Attempts++
	}
	// Evaluated after the increment on purpose: with a misconfigured
	// reset window shorter than the detection period, the reset wins.
	if delta > r.events.ResetAttemptCounter {
		rec.Attempts = 0
	}

	var updateRule, notify bool
	var handle policy.HandleType

	switch rec.Type {
	case policy.RuleTempDeny:
		updateRule, notify, err = r.escalateToPermanent(rec)
		handle = policy.HandleDataCircle
	case policy.RuleDeny:
		updateRule, notify, err = r.escalateToSystemFirewall(rec)
		handle = policy.HandleSystemFirewall
	}
	if err != nil {
		return Outcome{}, err
	}

	if updateRule {
		rec.Time = now
		if err := driver.SaveRule(r.drv, rec); err != nil {
			return Outcome{}, fmt.Errorf("saving rule record: %w", err)
		}
	}
	if notify {
		out.Notify = &Notification{
			IP:       rec.IP,
			Hostname: rec.Hostname,
			Reason:   rec.Reason,
			Handle:   handle,
			Attempts: rec.Attempts,
		}
	}
	return out, nil
}

// escalateToPermanent flips a temporarily denied visitor to permanent denial
// once enough attempts accumulated inside the current data circle.
func (r *Resolver) escalateToPermanent(rec *driver.RuleRecord) (updateRule, notify bool, err error) {
	ev := r.events.BanDataCircle
	if !ev.Enabled {
		return false, false, nil
	}
	if rec.Attempts < ev.Buffer {
		return true, false, nil
	}

	rec.Type = policy.RuleDeny
	rec.Attempts = 0
	r.log.Warn().Str("ip", rec.IP).Msg("promoted to permanent deny")
	return true, ev.Messenger, nil
}

// escalateToSystemFirewall queues a permanently denied visitor for the OS
// packet filter bridge once enough attempts accumulated.
func (r *Resolver) escalateToSystemFirewall(rec *driver.RuleRecord) (updateRule, notify bool, err error) {
	ev := r.events.BanSystemFirewall
	if !ev.Enabled {
		return false, false, nil
	}
	if rec.Attempts < ev.Buffer {
		return true, false, nil
	}

	if r.queue == nil {
		return false, false, fmt.Errorf("system firewall event enabled but no queue configured")
	}
	ipv6 := strings.Contains(rec.IP, ":")
	if err := r.queue.Append(iptables.DenyIP(rec.IP, ipv6)); err != nil {
		return false, false, fmt.Errorf("queueing system firewall command: %w", err)
	}

	rec.Attempts = 0
	r.log.Warn().Str("ip", rec.IP).Str("queue", r.queue.Path()).Msg("queued for system firewall")
	return true, ev.Messenger, nil
}

// TempDeny inserts a filter-triggered temporary denial for the visitor.
func (r *Resolver) TempDeny(ip, hostname string, reason policy.Reason, now int64) error {
	return r.insert(ip, hostname, policy.RuleTempDeny, reason, now)
}

// Allow inserts a standing allow rule, used for verified search engine bots.
func (r *Resolver) Allow(ip, hostname string, reason policy.Reason, now int64) error {
	return r.insert(ip, hostname, policy.RuleAllow, reason, now)
}

// Ban inserts a permanent denial, the manual-admin path.
func (r *Resolver) Ban(ip, hostname string, now int64) error {
	return r.insert(ip, hostname, policy.RuleDeny, policy.ReasonManualBan, now)
}

// Unban removes the visitor's standing rule.
func (r *Resolver) Unban(ip string) error {
	return driver.DeleteRule(r.drv, ip)
}

func (r *Resolver) insert(ip, hostname string, t policy.RuleType, reason policy.Reason, now int64) error {
	rec := &driver.RuleRecord{
		IP:       ip,
		Hostname: hostname,
		Type:     t,
		Reason:   reason,
		Time:     now,
	}
	if err := driver.SaveRule(r.drv, rec); err != nil {
		return fmt.Errorf("inserting %s rule for %s: %w", t, ip, err)
	}
	return nil
}
