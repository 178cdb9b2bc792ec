package component

import (
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"github.com/coal/gatetrap/internal/config"
	"github.com/coal/gatetrap/internal/policy"
	"github.com/coal/gatetrap/internal/visitor"
)

func TestIPList_DenyAddressAndPrefix(t *testing.T) {
	l := NewIPList(config.IPListConfig{
		Allow: []string{"192.0.2.1"},
		Deny:  []string{"198.51.100.0/24", "203.0.113.9"},
	})

	cases := []struct {
		ip      string
		matched bool
		verdict policy.Verdict
		reason  policy.Reason
	}{
		{"198.51.100.42", true, policy.VerdictDeny, policy.ReasonDenyIP},
		{"203.0.113.9", true, policy.VerdictDeny, policy.ReasonDenyIP},
		{"192.0.2.1", true, policy.VerdictAllow, policy.ReasonAllowIP},
		{"192.0.2.2", false, 0, 0},
		{"not-an-ip", true, policy.VerdictDeny, policy.ReasonInvalidIP},
	}
	for _, tc := range cases {
		res := l.Check(&visitor.Visit{IP: tc.ip})
		if res.Matched != tc.matched {
			t.Errorf("%s: matched = %v, want %v", tc.ip, res.Matched, tc.matched)
			continue
		}
		if tc.matched && (res.Verdict != tc.verdict || res.Reason != tc.reason) {
			t.Errorf("%s: got verdict=%v reason=%d", tc.ip, res.Verdict, res.Reason)
		}
	}
}

func TestIPList_DenyWinsOverAllow(t *testing.T) {
	l := NewIPList(config.IPListConfig{
		Allow: []string{"198.51.100.0/24"},
		Deny:  []string{"198.51.100.7"},
	})

	res := l.Check(&visitor.Visit{IP: "198.51.100.7"})
	if res.Verdict != policy.VerdictDeny {
		t.Errorf("listed in both: verdict = %v, want DENY", res.Verdict)
	}
}

func TestUserAgent_BuiltInList(t *testing.T) {
	u := NewUserAgent(config.UserAgentConfig{Enabled: true})

	if res := u.Check(&visitor.Visit{UserAgent: "Mozilla/5.0 (compatible; AhrefsBot/7.0)"}); !res.Matched {
		t.Error("expected junk crawler to match")
	}
	if res := u.Check(&visitor.Visit{UserAgent: ""}); !res.Matched {
		t.Error("expected empty user agent to match")
	}
	if res := u.Check(&visitor.Visit{UserAgent: "Mozilla/5.0 (X11; Linux x86_64)"}); res.Matched {
		t.Error("browser agent should pass")
	}
}

func TestUserAgent_CustomListCaseInsensitive(t *testing.T) {
	u := NewUserAgent(config.UserAgentConfig{Enabled: true, Deny: []string{"EvilBot"}})

	if res := u.Check(&visitor.Visit{UserAgent: "something evilbot/1.0"}); !res.Matched {
		t.Error("expected case-insensitive match")
	}
	if res := u.Check(&visitor.Visit{UserAgent: "curl/8.0"}); res.Matched {
		t.Error("custom list replaces the built-in one")
	}
}

func TestHeader_PresenceAndValue(t *testing.T) {
	h := NewHeader(config.HeaderConfig{Enabled: true, Deny: map[string]string{
		"X-Scanner": "",
		"X-Purpose": "preview",
	}})

	hdr := http.Header{}
	hdr.Set("X-Scanner", "anything")
	if res := h.Check(&visitor.Visit{Header: hdr}); !res.Matched {
		t.Error("presence entry should match any value")
	}

	hdr = http.Header{}
	hdr.Set("X-Purpose", "link preview")
	if res := h.Check(&visitor.Visit{Header: hdr}); !res.Matched {
		t.Error("value entry should match a containing header")
	}

	hdr = http.Header{}
	hdr.Set("X-Purpose", "navigation")
	if res := h.Check(&visitor.Visit{Header: hdr}); res.Matched {
		t.Error("value entry must not match a different value")
	}

	if res := h.Check(&visitor.Visit{}); res.Matched {
		t.Error("no headers, no match")
	}
}

func TestRDNS_PatternAndStrict(t *testing.T) {
	r := NewRDNS(config.RDNSConfig{Enabled: true, Deny: []string{`\.compute\.amazonaws\.com$`}}, zerolog.Nop())

	if res := r.Check(&visitor.Visit{IP: "203.0.113.9", Hostname: "ec2-203-0-113-9.compute.amazonaws.com"}); !res.Matched {
		t.Error("expected datacenter hostname to match")
	}
	if res := r.Check(&visitor.Visit{IP: "203.0.113.9", Hostname: "host.example.net"}); res.Matched {
		t.Error("unlisted hostname should pass")
	}
	if res := r.Check(&visitor.Visit{IP: "203.0.113.9", Hostname: ""}); res.Matched {
		t.Error("missing hostname passes outside strict mode")
	}

	strict := NewRDNS(config.RDNSConfig{Enabled: true, Strict: true}, zerolog.Nop())
	if res := strict.Check(&visitor.Visit{IP: "203.0.113.9", Hostname: ""}); !res.Matched {
		t.Error("strict mode denies a missing reverse record")
	}
	if res := strict.Check(&visitor.Visit{IP: "203.0.113.9", Hostname: "203.0.113.9"}); !res.Matched {
		t.Error("strict mode denies an IP echoed back")
	}
	if res := strict.Check(&visitor.Visit{IP: "203.0.113.9", Hostname: "host.example.net"}); res.Matched {
		t.Error("strict mode passes a genuine hostname")
	}
}

// fakeResolver serves canned PTR and forward lookups.
type fakeResolver struct {
	ptr     map[string][]string
	forward map[string][]string
}

func (f *fakeResolver) LookupAddr(ip string) ([]string, error) {
	return f.ptr[ip], nil
}

func (f *fakeResolver) LookupHost(host string) ([]string, error) {
	return f.forward[host], nil
}

func googlebotConfig() config.TrustedBotConfig {
	return config.TrustedBotConfig{
		Enabled: true,
		Bots: []config.TrustedBot{
			{Name: "google", Agent: "Googlebot", Domains: []string{".googlebot.com", ".google.com"}},
			{Name: "bing", Agent: "bingbot", Domains: []string{".search.msn.com"}},
		},
	}
}

func TestTrustedBot_VerifiedCrawler(t *testing.T) {
	res := &fakeResolver{
		ptr:     map[string][]string{"66.249.66.1": {"crawl-66-249-66-1.googlebot.com."}},
		forward: map[string][]string{"crawl-66-249-66-1.googlebot.com": {"66.249.66.1"}},
	}
	tb := NewTrustedBot(googlebotConfig(), res, zerolog.Nop())

	got := tb.Check(&visitor.Visit{IP: "66.249.66.1", UserAgent: "Mozilla/5.0 (compatible; Googlebot/2.1)"})
	if !got.Matched || got.Verdict != policy.VerdictAllow {
		t.Fatalf("got %+v, want verified allow", got)
	}
	if got.Reason != policy.ReasonIsGoogle {
		t.Errorf("reason = %d, want %d", got.Reason, policy.ReasonIsGoogle)
	}
}

func TestTrustedBot_ForwardConfirmMismatch(t *testing.T) {
	// The PTR name sits under googlebot.com but resolves to a different IP:
	// a spoofed reverse zone.
	res := &fakeResolver{
		ptr:     map[string][]string{"203.0.113.9": {"crawl-66-249-66-1.googlebot.com."}},
		forward: map[string][]string{"crawl-66-249-66-1.googlebot.com": {"66.249.66.1"}},
	}
	tb := NewTrustedBot(googlebotConfig(), res, zerolog.Nop())

	got := tb.Check(&visitor.Visit{IP: "203.0.113.9", UserAgent: "Googlebot/2.1"})
	if !got.Matched || got.Verdict != policy.VerdictDeny {
		t.Fatalf("got %+v, want deny", got)
	}
	if got.Reason != policy.ReasonComponentTrustedRobot {
		t.Errorf("reason = %d, want %d", got.Reason, policy.ReasonComponentTrustedRobot)
	}
}

func TestTrustedBot_NoReverseRecord(t *testing.T) {
	tb := NewTrustedBot(googlebotConfig(), &fakeResolver{}, zerolog.Nop())

	got := tb.Check(&visitor.Visit{IP: "203.0.113.9", UserAgent: "Googlebot/2.1"})
	if !got.Matched || got.Verdict != policy.VerdictDeny {
		t.Fatalf("got %+v, want deny", got)
	}
}

func TestTrustedBot_NonCandidatePassesThrough(t *testing.T) {
	tb := NewTrustedBot(googlebotConfig(), &fakeResolver{}, zerolog.Nop())

	got := tb.Check(&visitor.Visit{IP: "203.0.113.9", UserAgent: "Mozilla/5.0 (X11; Linux x86_64)"})
	if got.Matched {
		t.Error("plain browser must not be a candidate")
	}
}

func TestTrustedBot_GenericEngineReason(t *testing.T) {
	res := &fakeResolver{
		ptr:     map[string][]string{"40.77.167.1": {"msnbot-40-77-167-1.search.msn.com."}},
		forward: map[string][]string{"msnbot-40-77-167-1.search.msn.com": {"40.77.167.1"}},
	}
	tb := NewTrustedBot(googlebotConfig(), res, zerolog.Nop())

	got := tb.Check(&visitor.Visit{IP: "40.77.167.1", UserAgent: "Mozilla/5.0 (compatible; bingbot/2.0)"})
	if got.Reason != policy.ReasonIsBing {
		t.Errorf("reason = %d, want %d", got.Reason, policy.ReasonIsBing)
	}
}
