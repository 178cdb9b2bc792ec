// Package kernel sequences the component checks, the rule table, the
// behavioral filters, and session admission into one verdict per request.
package kernel

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/coal/gatetrap/internal/audit"
	"github.com/coal/gatetrap/internal/component"
	"github.com/coal/gatetrap/internal/config"
	"github.com/coal/gatetrap/internal/driver"
	"github.com/coal/gatetrap/internal/filter"
	"github.com/coal/gatetrap/internal/iptables"
	"github.com/coal/gatetrap/internal/messenger"
	"github.com/coal/gatetrap/internal/policy"
	"github.com/coal/gatetrap/internal/rules"
	"github.com/coal/gatetrap/internal/session"
	"github.com/coal/gatetrap/internal/visitor"
)

var requestCounter atomic.Uint64

// ErrNoDriver is returned when the kernel is built without a data driver.
var ErrNoDriver = errors.New("kernel: no data driver configured")

// Decision is the terminal outcome for one request.
type Decision struct {
	RequestID string
	Verdict   policy.Verdict
	Reason    policy.Reason
	// Component names the check that produced a short-circuit verdict.
	Component string
	// Directives for the HTTP layer (cookie clearing).
	Directives []visitor.Directive
	// QueueOrder is the 1-based waiting position for LIMIT_SESSION.
	QueueOrder int
}

// EventObserver receives one event per decision.
type EventObserver func(Event)

// Event is the observer's view of a decision.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	RequestID string         `json:"request_id"`
	IP        string         `json:"ip"`
	Hostname  string         `json:"hostname,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Verdict   policy.Verdict `json:"verdict"`
	VerdictS  string         `json:"verdict_text"`
	Reason    policy.Reason  `json:"reason"`
	ReasonS   string         `json:"reason_text,omitempty"`
	Component string         `json:"component,omitempty"`
	Blocked   bool           `json:"blocked"`
}

// Kernel holds one instance of the decision pipeline.
type Kernel struct {
	cfg *config.Config
	drv driver.Driver

	trusted    *component.TrustedBot
	iplist     *component.IPList
	components []component.Component

	engine     *filter.Engine
	resolver   *rules.Resolver
	sessions   *session.Controller
	messengers []messenger.Messenger
	dns        component.Resolver

	auditLogger *audit.Logger
	log         zerolog.Logger

	observerMu sync.RWMutex
	observers  []EventObserver

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// Option tweaks kernel construction.
type Option func(*Kernel)

// WithMessengers registers notification targets.
func WithMessengers(ms []messenger.Messenger) Option {
	return func(k *Kernel) { k.messengers = ms }
}

// WithResolver replaces the DNS resolver, used by tests.
func WithResolver(r component.Resolver) Option {
	return func(k *Kernel) { k.dns = r }
}

// WithClock replaces the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(k *Kernel) { k.now = now }
}

// New wires a kernel from config. The driver is mandatory: the pipeline
// refuses to run without one.
func New(cfg *config.Config, drv driver.Driver, auditLogger *audit.Logger, log zerolog.Logger, opts ...Option) (*Kernel, error) {
	if drv == nil {
		return nil, ErrNoDriver
	}
	if auditLogger == nil {
		auditLogger = audit.NopLogger()
	}
	drv.SetChannel(cfg.Channel)

	k := &Kernel{
		cfg:         cfg,
		drv:         drv,
		auditLogger: auditLogger,
		log:         log.With().Str("component", "kernel").Logger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}

	if k.dns == nil {
		if addr := cfg.Components.TrustedBot.Resolver; addr != "" {
			k.dns = component.NewDNSResolver(addr)
		} else {
			k.dns = component.NewSystemResolver()
		}
	}

	var queue *iptables.Queue
	if cfg.Events.BanSystemFirewall.Enabled {
		queue = iptables.NewQueue(cfg.Events.BanSystemFirewall.QueuePath)
	}

	k.engine = filter.NewEngine(drv, cfg.Filters, log)
	k.resolver = rules.NewResolver(drv, cfg.Events, queue, log)
	k.sessions = session.NewController(drv, cfg.Session, log)

	if cfg.Components.TrustedBot.Enabled {
		k.trusted = component.NewTrustedBot(cfg.Components.TrustedBot, k.dns, log)
	}
	if cfg.Components.IPList.Enabled {
		k.iplist = component.NewIPList(cfg.Components.IPList)
	}
	if cfg.Components.UserAgent.Enabled {
		k.components = append(k.components, component.NewUserAgent(cfg.Components.UserAgent))
	}
	if cfg.Components.Header.Enabled {
		k.components = append(k.components, component.NewHeader(cfg.Components.Header))
	}
	if cfg.Components.RDNS.Enabled {
		k.components = append(k.components, component.NewRDNS(cfg.Components.RDNS, log))
	}

	return k, nil
}

// Handle runs the full decision pipeline for one visit.
func (k *Kernel) Handle(v *visitor.Visit) (*Decision, error) {
	reqID := fmt.Sprintf("req-%d", requestCounter.Add(1))
	nowT := k.now()
	now := nowT.Unix()
	micro := nowT.UnixMicro()

	if v.Hostname == "" {
		v.Hostname = component.ReverseName(k.dns, v.IP)
	}

	d := &Decision{RequestID: reqID}

	// A standing allow rule wins outright. Checked before the components
	// so a pinned crawler never repeats its DNS verification and a
	// resolver hiccup cannot flip it to a fake-bot denial.
	if reason, pinned, err := k.resolver.Allowed(v.IP); err != nil {
		return nil, err
	} else if pinned {
		d.Reason = reason
		return k.admit(d, v, now, micro)
	}

	// Verified search engine bots are pinned with an allow rule so later
	// requests short-circuit above instead of re-resolving.
	if k.trusted != nil {
		if res := k.trusted.Check(v); res.Matched {
			d.Reason = res.Reason
			d.Component = k.trusted.Name()
			if res.Verdict == policy.VerdictAllow {
				if err := k.resolver.Allow(v.IP, v.Hostname, res.Reason, now); err != nil {
					return nil, err
				}
				return k.admit(d, v, now, micro)
			}
			d.Verdict = policy.VerdictDeny
			return k.finish(d, v), nil
		}
	}

	if k.iplist != nil {
		if res := k.iplist.Check(v); res.Matched {
			d.Reason = res.Reason
			d.Component = k.iplist.Name()
			if res.Verdict == policy.VerdictAllow {
				return k.admit(d, v, now, micro)
			}
			d.Verdict = policy.VerdictDeny
			return k.finish(d, v), nil
		}
	}

	for _, c := range k.components {
		if res := c.Check(v); res.Matched {
			d.Verdict = policy.VerdictDeny
			d.Reason = res.Reason
			d.Component = c.Name()
			return k.finish(d, v), nil
		}
	}

	out, err := k.resolver.Resolve(v.IP, now)
	if err != nil {
		return nil, err
	}
	if out.Found {
		if out.Notify != nil {
			k.dispatch(out.Notify, nowT)
		}
		d.Reason = out.Reason
		if out.Verdict == policy.VerdictAllow {
			return k.admit(d, v, now, micro)
		}
		d.Verdict = out.Verdict
		return k.finish(d, v), nil
	}

	res, err := k.engine.Evaluate(v, now)
	if err != nil {
		return nil, err
	}
	d.Directives = res.Directives
	if res.Verdict == policy.VerdictTempDeny {
		// The deny action: a filter rejection plants a temporary rule so
		// repeated attempts feed the escalation machine.
		if err := k.resolver.TempDeny(v.IP, v.Hostname, res.Reason, now); err != nil {
			return nil, err
		}
		d.Verdict = policy.VerdictTempDeny
		d.Reason = res.Reason
		return k.finish(d, v), nil
	}

	return k.admit(d, v, now, micro)
}

// admit runs session admission for a request that is otherwise allowed.
func (k *Kernel) admit(d *Decision, v *visitor.Visit, now, micro int64) (*Decision, error) {
	adm, err := k.sessions.Admit(v.IP, v.SessionID, now, micro)
	if err != nil {
		return nil, err
	}
	if adm.Verdict == policy.VerdictLimitSession {
		d.Verdict = policy.VerdictLimitSession
		// Queue is zero-based; the first visitor over the cap is number 1.
		d.QueueOrder = adm.Queue + 1
		return k.finish(d, v), nil
	}
	d.Verdict = policy.VerdictAllow
	return k.finish(d, v), nil
}

// finish writes the audit entry and fans the event out to observers.
func (k *Kernel) finish(d *Decision, v *visitor.Visit) *Decision {
	reasonText := ""
	if d.Reason != policy.ReasonNone {
		reasonText = d.Reason.Text()
	}

	k.auditLogger.Log(audit.Entry{
		RequestID:  d.RequestID,
		IP:         v.IP,
		Hostname:   v.Hostname,
		SessionID:  v.SessionID,
		UserAgent:  v.UserAgent,
		Verdict:    d.Verdict.String(),
		Reason:     int(d.Reason),
		ReasonText: reasonText,
		Component:  d.Component,
		QueueOrder: d.QueueOrder,
	})

	k.notify(Event{
		Timestamp: time.Now().UTC(),
		RequestID: d.RequestID,
		IP:        v.IP,
		Hostname:  v.Hostname,
		SessionID: v.SessionID,
		UserAgent: v.UserAgent,
		Verdict:   d.Verdict,
		VerdictS:  d.Verdict.String(),
		Reason:    d.Reason,
		ReasonS:   reasonText,
		Component: d.Component,
		Blocked:   d.Verdict == policy.VerdictDeny || d.Verdict == policy.VerdictTempDeny,
	})
	return d
}

// dispatch sends an escalation notification to every messenger. Third-party
// notification endpoints flake; a failed delivery is logged and swallowed.
func (k *Kernel) dispatch(n *rules.Notification, now time.Time) {
	if len(k.messengers) == 0 {
		return
	}
	msg := BuildMessage(n, now)
	for _, m := range k.messengers {
		if err := m.Send(msg); err != nil {
			k.log.Warn().Str("messenger", m.Name()).Err(err).Msg("notification delivery failed")
		}
	}
}

// AddObserver registers a callback invoked for every decision.
func (k *Kernel) AddObserver(fn EventObserver) {
	k.observerMu.Lock()
	defer k.observerMu.Unlock()
	k.observers = append(k.observers, fn)
}

func (k *Kernel) notify(event Event) {
	k.observerMu.RLock()
	observers := k.observers
	k.observerMu.RUnlock()

	for _, fn := range observers {
		fn(event)
	}
}

// Ban plants a permanent deny rule for the visitor, the manual admin path.
func (k *Kernel) Ban(ip string) error {
	return k.resolver.Ban(ip, component.ReverseName(k.dns, ip), k.now().Unix())
}

// Unban removes the visitor's standing rule.
func (k *Kernel) Unban(ip string) error {
	return k.resolver.Unban(ip)
}

// Rules returns every standing rule in the current channel, read-only.
func (k *Kernel) Rules() ([]*driver.RuleRecord, error) {
	return driver.GetAllRules(k.drv)
}
