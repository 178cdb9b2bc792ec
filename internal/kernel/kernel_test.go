package kernel

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/coal/gatetrap/internal/audit"
	"github.com/coal/gatetrap/internal/config"
	"github.com/coal/gatetrap/internal/driver"
	"github.com/coal/gatetrap/internal/policy"
	"github.com/coal/gatetrap/internal/visitor"
)

// fakeResolver serves canned PTR and forward lookups so no test touches the
// network. Setting err makes every lookup fail.
type fakeResolver struct {
	ptr     map[string][]string
	forward map[string][]string
	err     error
}

func (f *fakeResolver) LookupAddr(ip string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ptr[ip], nil
}

func (f *fakeResolver) LookupHost(host string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.forward[host], nil
}

func newTestKernel(t *testing.T, cfg *config.Config, res *fakeResolver) (*Kernel, driver.Driver) {
	t.Helper()
	drv, err := driver.NewFileDriver(filepath.Join(t.TempDir(), "data.json"))
	if err != nil {
		t.Fatalf("failed to open driver: %v", err)
	}
	t.Cleanup(func() { drv.Close() })

	if res == nil {
		res = &fakeResolver{}
	}
	fixed := time.Unix(1700000000, 0)
	k, err := New(cfg, drv, audit.NopLogger(), zerolog.Nop(),
		WithClock(func() time.Time { return fixed }),
		WithResolver(res))
	if err != nil {
		t.Fatalf("failed to build kernel: %v", err)
	}
	return k, drv
}

func handle(t *testing.T, k *Kernel, v *visitor.Visit) *Decision {
	t.Helper()
	d, err := k.Handle(v)
	if err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	return d
}

func TestNew_RequiresDriver(t *testing.T) {
	_, err := New(config.Default(), nil, audit.NopLogger(), zerolog.Nop())
	if err != ErrNoDriver {
		t.Errorf("got %v, want ErrNoDriver", err)
	}
}

func TestHandle_BenignVisitAllowed(t *testing.T) {
	cfg := config.Default()
	cfg.Filters.Frequency.Enabled = true
	k, _ := newTestKernel(t, cfg, nil)

	d := handle(t, k, &visitor.Visit{IP: "192.0.2.10", SessionID: "s1", UserAgent: "Mozilla/5.0"})
	if d.Verdict != policy.VerdictAllow {
		t.Errorf("verdict = %v, want ALLOW", d.Verdict)
	}
	if d.RequestID == "" {
		t.Error("missing request id")
	}
}

func TestHandle_FloodPlantsTempDenyRule(t *testing.T) {
	cfg := config.Default()
	cfg.Filters.Frequency.Enabled = true
	cfg.Filters.Frequency.QuotaS = 2
	k, drv := newTestKernel(t, cfg, nil)

	v := &visitor.Visit{IP: "192.0.2.20", SessionID: "s1", UserAgent: "Mozilla/5.0"}
	handle(t, k, v)
	handle(t, k, v)

	d := handle(t, k, v)
	if d.Verdict != policy.VerdictTempDeny {
		t.Fatalf("flood verdict = %v, want TEMP_DENY", d.Verdict)
	}
	if d.Reason != policy.ReasonReachSecondlyLimit {
		t.Errorf("reason = %d", d.Reason)
	}

	rec, ok, err := driver.GetRule(drv, "192.0.2.20")
	if err != nil || !ok {
		t.Fatalf("expected a planted rule, got ok=%v err=%v", ok, err)
	}
	if rec.Type != policy.RuleTempDeny {
		t.Errorf("rule type = %d", rec.Type)
	}

	// The next request short-circuits at the rule table.
	d = handle(t, k, v)
	if d.Verdict != policy.VerdictTempDeny {
		t.Errorf("follow-up verdict = %v, want TEMP_DENY", d.Verdict)
	}
}

func TestHandle_ComponentDenyPlantsNoRule(t *testing.T) {
	cfg := config.Default()
	cfg.Components.UserAgent.Enabled = true
	k, drv := newTestKernel(t, cfg, nil)

	d := handle(t, k, &visitor.Visit{IP: "192.0.2.30", SessionID: "s1", UserAgent: "python-requests/2.31"})
	if d.Verdict != policy.VerdictDeny {
		t.Fatalf("verdict = %v, want DENY", d.Verdict)
	}
	if d.Component != "user_agent" {
		t.Errorf("component = %q", d.Component)
	}

	if _, ok, _ := driver.GetRule(drv, "192.0.2.30"); ok {
		t.Error("component denial must not plant a rule")
	}
}

func TestHandle_IPListDeny(t *testing.T) {
	cfg := config.Default()
	cfg.Components.IPList.Enabled = true
	cfg.Components.IPList.Deny = []string{"198.51.100.0/24"}
	k, _ := newTestKernel(t, cfg, nil)

	d := handle(t, k, &visitor.Visit{IP: "198.51.100.7", SessionID: "s1", UserAgent: "Mozilla/5.0"})
	if d.Verdict != policy.VerdictDeny || d.Reason != policy.ReasonDenyIP {
		t.Errorf("got verdict=%v reason=%d", d.Verdict, d.Reason)
	}
}

func TestHandle_FakeCrawlerDenied(t *testing.T) {
	cfg := config.Default()
	cfg.Components.TrustedBot.Enabled = true
	cfg.Components.TrustedBot.Bots = config.DefaultTrustedBots()
	k, drv := newTestKernel(t, cfg, &fakeResolver{})

	d := handle(t, k, &visitor.Visit{IP: "203.0.113.9", SessionID: "s1", UserAgent: "Googlebot/2.1"})
	if d.Verdict != policy.VerdictDeny {
		t.Fatalf("verdict = %v, want DENY", d.Verdict)
	}
	if d.Reason != policy.ReasonComponentTrustedRobot {
		t.Errorf("reason = %d", d.Reason)
	}
	if _, ok, _ := driver.GetRule(drv, "203.0.113.9"); ok {
		t.Error("fake crawler denial must not plant a rule")
	}
}

func TestHandle_VerifiedCrawlerPinned(t *testing.T) {
	cfg := config.Default()
	cfg.Components.TrustedBot.Enabled = true
	cfg.Components.TrustedBot.Bots = config.DefaultTrustedBots()
	cfg.Filters.Frequency.Enabled = true
	cfg.Filters.Frequency.QuotaS = 1
	res := &fakeResolver{
		ptr:     map[string][]string{"66.249.66.1": {"crawl-66-249-66-1.googlebot.com."}},
		forward: map[string][]string{"crawl-66-249-66-1.googlebot.com": {"66.249.66.1"}},
	}
	k, drv := newTestKernel(t, cfg, res)

	v := &visitor.Visit{IP: "66.249.66.1", SessionID: "s1", UserAgent: "Mozilla/5.0 (compatible; Googlebot/2.1)"}
	d := handle(t, k, v)
	if d.Verdict != policy.VerdictAllow {
		t.Fatalf("verdict = %v, want ALLOW", d.Verdict)
	}

	rec, ok, _ := driver.GetRule(drv, "66.249.66.1")
	if !ok || rec.Type != policy.RuleAllow {
		t.Fatalf("expected a pinned allow rule, got ok=%v rec=%+v", ok, rec)
	}

	// Crawlers burst harder than any frequency quota and must stay allowed.
	for i := 0; i < 10; i++ {
		if d := handle(t, k, v); d.Verdict != policy.VerdictAllow {
			t.Fatalf("burst visit %d = %v, want ALLOW", i, d.Verdict)
		}
	}
}

func TestHandle_PinnedCrawlerSurvivesResolverOutage(t *testing.T) {
	cfg := config.Default()
	cfg.Components.TrustedBot.Enabled = true
	cfg.Components.TrustedBot.Bots = config.DefaultTrustedBots()
	res := &fakeResolver{
		ptr:     map[string][]string{"66.249.66.1": {"crawl-66-249-66-1.googlebot.com."}},
		forward: map[string][]string{"crawl-66-249-66-1.googlebot.com": {"66.249.66.1"}},
	}
	k, _ := newTestKernel(t, cfg, res)

	v := &visitor.Visit{IP: "66.249.66.1", SessionID: "s1", UserAgent: "Mozilla/5.0 (compatible; Googlebot/2.1)"}
	if d := handle(t, k, v); d.Verdict != policy.VerdictAllow {
		t.Fatalf("first visit = %v, want ALLOW", d.Verdict)
	}

	// Once pinned, the standing rule decides without touching DNS.
	res.err = errors.New("read udp: i/o timeout")
	d := handle(t, k, v)
	if d.Verdict != policy.VerdictAllow {
		t.Errorf("visit during resolver outage = %v reason=%d, want ALLOW", d.Verdict, d.Reason)
	}
}

func TestHandle_SessionCap(t *testing.T) {
	cfg := config.Default()
	cfg.Session.Count = 2
	cfg.Session.Period = 300
	k, _ := newTestKernel(t, cfg, nil)

	d := handle(t, k, &visitor.Visit{IP: "192.0.2.40", SessionID: "a", UserAgent: "Mozilla/5.0"})
	if d.Verdict != policy.VerdictAllow {
		t.Fatalf("session a = %v, want ALLOW", d.Verdict)
	}

	d = handle(t, k, &visitor.Visit{IP: "192.0.2.41", SessionID: "b", UserAgent: "Mozilla/5.0"})
	if d.Verdict != policy.VerdictLimitSession || d.QueueOrder != 1 {
		t.Errorf("session b = %v queue=%d, want LIMIT_SESSION queue=1", d.Verdict, d.QueueOrder)
	}

	d = handle(t, k, &visitor.Visit{IP: "192.0.2.42", SessionID: "c", UserAgent: "Mozilla/5.0"})
	if d.Verdict != policy.VerdictLimitSession || d.QueueOrder != 2 {
		t.Errorf("session c = %v queue=%d, want LIMIT_SESSION queue=2", d.Verdict, d.QueueOrder)
	}
}

func TestHandle_ObserverReceivesEvents(t *testing.T) {
	cfg := config.Default()
	k, _ := newTestKernel(t, cfg, nil)

	var events []Event
	k.AddObserver(func(e Event) { events = append(events, e) })

	handle(t, k, &visitor.Visit{IP: "192.0.2.50", SessionID: "s1", UserAgent: "Mozilla/5.0"})

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	e := events[0]
	if e.IP != "192.0.2.50" || e.VerdictS != "ALLOW" || e.Blocked {
		t.Errorf("unexpected event: %+v", e)
	}
	if e.RequestID == "" {
		t.Error("missing request id")
	}
}

func TestBanAndUnban(t *testing.T) {
	cfg := config.Default()
	k, _ := newTestKernel(t, cfg, nil)

	if err := k.Ban("192.0.2.60"); err != nil {
		t.Fatalf("ban failed: %v", err)
	}

	v := &visitor.Visit{IP: "192.0.2.60", SessionID: "s1", UserAgent: "Mozilla/5.0"}
	if d := handle(t, k, v); d.Verdict != policy.VerdictDeny {
		t.Fatalf("banned visitor = %v, want DENY", d.Verdict)
	}

	if err := k.Unban("192.0.2.60"); err != nil {
		t.Fatalf("unban failed: %v", err)
	}
	if d := handle(t, k, v); d.Verdict != policy.VerdictAllow {
		t.Errorf("unbanned visitor = %v, want ALLOW", d.Verdict)
	}
}

func TestRules_ListsStandingRules(t *testing.T) {
	cfg := config.Default()
	k, _ := newTestKernel(t, cfg, nil)

	if err := k.Ban("192.0.2.70"); err != nil {
		t.Fatalf("ban failed: %v", err)
	}
	if err := k.Ban("192.0.2.71"); err != nil {
		t.Fatalf("ban failed: %v", err)
	}

	recs, err := k.Rules()
	if err != nil {
		t.Fatalf("rules failed: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("got %d rules, want 2", len(recs))
	}
}
