package config

import (
	"bytes"
	"strings"
	"testing"
)

func TestParse_FillsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("channel: mysite\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if cfg.Channel != "mysite" {
		t.Errorf("channel = %q", cfg.Channel)
	}
	if cfg.Driver.Type != "file" {
		t.Errorf("driver type = %q, want file", cfg.Driver.Type)
	}
	if cfg.Filters.Frequency.QuotaS != 2 || cfg.Filters.Frequency.QuotaD != 60 {
		t.Errorf("frequency quotas not defaulted: %+v", cfg.Filters.Frequency)
	}
	if cfg.Filters.TimeResetLimit != 3600 {
		t.Errorf("time_reset_limit = %d", cfg.Filters.TimeResetLimit)
	}
	if cfg.Filters.Cookie.Name != "ssjd" || cfg.Filters.Cookie.Value != "1" {
		t.Errorf("cookie defaults missing: %+v", cfg.Filters.Cookie)
	}
	if cfg.Events.RecordAttemptDetectionPeriod != 5 || cfg.Events.ResetAttemptCounter != 1800 {
		t.Errorf("event windows not defaulted: %+v", cfg.Events)
	}
	if cfg.Events.BanDataCircle.Buffer != 10 {
		t.Errorf("data circle buffer = %d", cfg.Events.BanDataCircle.Buffer)
	}
}

func TestParse_DefaultChannel(t *testing.T) {
	cfg, err := Parse([]byte("{}\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.Channel != "gatetrap" {
		t.Errorf("channel = %q, want gatetrap", cfg.Channel)
	}
}

func TestParse_RedisRequiresURL(t *testing.T) {
	_, err := Parse([]byte("driver:\n  type: redis\n"))
	if err == nil || !strings.Contains(err.Error(), "redis_url") {
		t.Errorf("expected redis_url error, got %v", err)
	}
}

func TestParse_UnknownDriver(t *testing.T) {
	_, err := Parse([]byte("driver:\n  type: cassandra\n"))
	if err == nil || !strings.Contains(err.Error(), "unknown driver.type") {
		t.Errorf("expected driver type error, got %v", err)
	}
}

func TestParse_FirewallEventRequiresQueuePath(t *testing.T) {
	_, err := Parse([]byte("events:\n  ban_system_firewall:\n    enabled: true\n"))
	if err == nil || !strings.Contains(err.Error(), "queue_path") {
		t.Errorf("expected queue_path error, got %v", err)
	}
}

func TestParse_MessengerCredentialChecks(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"telegram", "messengers:\n  telegram:\n    enabled: true\n", "telegram"},
		{"slack", "messengers:\n  slack:\n    enabled: true\n", "webhook_url"},
		{"amqp", "messengers:\n  amqp:\n    enabled: true\n", "amqp"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected %s error, got %v", tc.want, err)
			}
		})
	}
}

func TestParse_TrustedBotDefaults(t *testing.T) {
	cfg, err := Parse([]byte("components:\n  trusted_bot:\n    enabled: true\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(cfg.Components.TrustedBot.Bots) == 0 {
		t.Fatal("expected built-in bot signatures")
	}
	if cfg.Components.TrustedBot.Resolver != "" {
		t.Errorf("resolver = %q, want system fallback", cfg.Components.TrustedBot.Resolver)
	}
	found := false
	for _, b := range cfg.Components.TrustedBot.Bots {
		if b.Name == "google" && b.Agent == "Googlebot" {
			found = true
		}
	}
	if !found {
		t.Error("google signature missing from defaults")
	}
}

func TestParse_SessionPeriodDefault(t *testing.T) {
	cfg, err := Parse([]byte("session_limit:\n  count: 100\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cfg.Session.Period != 300 {
		t.Errorf("period = %d, want 300", cfg.Session.Period)
	}

	if _, err := Parse([]byte("session_limit:\n  count: -1\n")); err == nil {
		t.Error("expected error for negative count")
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Channel = "roundtrip"
	cfg.Filters.Frequency.Enabled = true
	cfg.Filters.Frequency.QuotaM = 42
	cfg.Events.BanDataCircle.Enabled = true
	cfg.Events.BanDataCircle.Buffer = 7
	cfg.Session.Count = 99
	cfg.Session.Period = 60
	cfg.Components.IPList.Enabled = true
	cfg.Components.IPList.Deny = []string{"198.51.100.0/24"}

	var buf bytes.Buffer
	if err := Export(cfg, &buf); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	got, err := Import(&buf)
	if err != nil {
		t.Fatalf("import failed: %v", err)
	}

	if got.Channel != "roundtrip" {
		t.Errorf("channel = %q", got.Channel)
	}
	if got.Filters.Frequency.QuotaM != 42 {
		t.Errorf("quota_m = %d", got.Filters.Frequency.QuotaM)
	}
	if !got.Events.BanDataCircle.Enabled || got.Events.BanDataCircle.Buffer != 7 {
		t.Errorf("data circle event lost: %+v", got.Events.BanDataCircle)
	}
	if got.Session.Count != 99 || got.Session.Period != 60 {
		t.Errorf("session limit lost: %+v", got.Session)
	}
	if len(got.Components.IPList.Deny) != 1 || got.Components.IPList.Deny[0] != "198.51.100.0/24" {
		t.Errorf("ip list lost: %+v", got.Components.IPList)
	}
}
