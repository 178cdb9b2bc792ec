// Package config holds the typed YAML configuration for the firewall kernel
// and its collaborators, with a validating loader and lossless
// export/import.
package config

// Config is the top-level configuration loaded from YAML.
type Config struct {
	// Channel names the data cycle; all three tables are namespaced by it.
	Channel string `yaml:"channel" json:"channel"`

	Driver     DriverConfig     `yaml:"driver" json:"driver"`
	Filters    FiltersConfig    `yaml:"filters" json:"filters"`
	Events     EventsConfig     `yaml:"events" json:"events"`
	Session    SessionConfig    `yaml:"session_limit" json:"session_limit"`
	Components ComponentsConfig `yaml:"components" json:"components"`
	Messengers MessengersConfig `yaml:"messengers" json:"messengers"`
	Proxy      ProxyConfig      `yaml:"proxy" json:"proxy"`
	Audit      AuditConfig      `yaml:"audit" json:"audit"`
}

// DriverConfig selects and parameterizes the data backend.
type DriverConfig struct {
	// Type is one of "file", "bolt", "redis".
	Type string `yaml:"type" json:"type"`
	// Path is the data file location for the file and bolt backends.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// RedisURL is the connection URL for the redis backend.
	RedisURL string `yaml:"redis_url,omitempty" json:"redis_url,omitempty"`
}

// FiltersConfig switches and tunes the four behavioral filters.
type FiltersConfig struct {
	Frequency FrequencyFilterConfig `yaml:"frequency" json:"frequency"`
	Referer   RefererFilterConfig   `yaml:"referer" json:"referer"`
	Cookie    CookieFilterConfig    `yaml:"cookie" json:"cookie"`
	Session   SessionFilterConfig   `yaml:"session" json:"session"`

	// TimeResetLimit is how long a raised behavior flag lives before all
	// flag counters get a fresh start, in seconds.
	TimeResetLimit int64 `yaml:"time_reset_limit" json:"time_reset_limit"`
}

// FrequencyFilterConfig holds the per-window pageview quotas.
type FrequencyFilterConfig struct {
	Enabled bool  `yaml:"enabled" json:"enabled"`
	QuotaS  int64 `yaml:"quota_s" json:"quota_s"`
	QuotaM  int64 `yaml:"quota_m" json:"quota_m"`
	QuotaH  int64 `yaml:"quota_h" json:"quota_h"`
	QuotaD  int64 `yaml:"quota_d" json:"quota_d"`
}

// RefererFilterConfig tunes the empty-referer check.
type RefererFilterConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// IntervalCheck skips the check when the previous visit was less than
	// this many seconds ago.
	IntervalCheck int64 `yaml:"interval_check" json:"interval_check"`
	Limit         int64 `yaml:"limit" json:"limit"`
}

// CookieFilterConfig tunes the JS-cookie check.
type CookieFilterConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Name    string `yaml:"name" json:"name"`
	Domain  string `yaml:"domain,omitempty" json:"domain,omitempty"`
	Value   string `yaml:"value" json:"value"`
	Limit   int64  `yaml:"limit" json:"limit"`
}

// SessionFilterConfig tunes the multi-session check.
type SessionFilterConfig struct {
	Enabled bool  `yaml:"enabled" json:"enabled"`
	Limit   int64 `yaml:"limit" json:"limit"`
}

// EventsConfig parameterizes the escalation state machine.
type EventsConfig struct {
	BanDataCircle     BanEventConfig      `yaml:"ban_data_circle" json:"ban_data_circle"`
	BanSystemFirewall FirewallEventConfig `yaml:"ban_system_firewall" json:"ban_system_firewall"`

	// RecordAttemptDetectionPeriod: a repeated denied request within this
	// many seconds of the last one counts as an attempt.
	RecordAttemptDetectionPeriod int64 `yaml:"record_attempt_detection_period" json:"record_attempt_detection_period"`
	// ResetAttemptCounter: a denied request after this many quiet seconds
	// zeroes the attempt counter instead.
	ResetAttemptCounter int64 `yaml:"reset_attempt_counter" json:"reset_attempt_counter"`
}

// BanEventConfig controls promotion from temporary to permanent denial.
type BanEventConfig struct {
	Enabled   bool  `yaml:"enabled" json:"enabled"`
	Buffer    int64 `yaml:"buffer" json:"buffer"`
	Messenger bool  `yaml:"messenger" json:"messenger"`
}

// FirewallEventConfig controls queueing permanently denied visitors for the
// system firewall bridge.
type FirewallEventConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Buffer    int64  `yaml:"buffer" json:"buffer"`
	Messenger bool   `yaml:"messenger" json:"messenger"`
	QueuePath string `yaml:"queue_path" json:"queue_path"`
}

// SessionConfig caps concurrent online sessions. Count 0 disables the cap.
type SessionConfig struct {
	Count  int   `yaml:"count" json:"count"`
	Period int64 `yaml:"period" json:"period"`
}

// ComponentsConfig parameterizes the pluggable pre-filter checks.
type ComponentsConfig struct {
	IPList     IPListConfig     `yaml:"ip_list" json:"ip_list"`
	TrustedBot TrustedBotConfig `yaml:"trusted_bot" json:"trusted_bot"`
	UserAgent  UserAgentConfig  `yaml:"user_agent" json:"user_agent"`
	Header     HeaderConfig     `yaml:"header" json:"header"`
	RDNS       RDNSConfig       `yaml:"rdns" json:"rdns"`
}

// IPListConfig holds standing allow/deny entries, literal IPs or CIDRs.
type IPListConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Allow   []string `yaml:"allow,omitempty" json:"allow,omitempty"`
	Deny    []string `yaml:"deny,omitempty" json:"deny,omitempty"`
}

// TrustedBotConfig configures search-engine bot verification.
type TrustedBotConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Resolver is the DNS server ("host:port") used for PTR and
	// forward-confirm lookups. Empty means the system resolver.
	Resolver string       `yaml:"resolver" json:"resolver"`
	Bots     []TrustedBot `yaml:"bots,omitempty" json:"bots,omitempty"`
}

// TrustedBot is one known search-engine bot signature.
type TrustedBot struct {
	Name string `yaml:"name" json:"name"`
	// Agent is the user-agent substring that marks a candidate.
	Agent string `yaml:"agent" json:"agent"`
	// Domains are the reverse-DNS suffixes a genuine bot resolves under.
	Domains []string `yaml:"domains" json:"domains"`
}

// UserAgentConfig denies user agents containing any listed substring.
type UserAgentConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Deny    []string `yaml:"deny,omitempty" json:"deny,omitempty"`
}

// HeaderConfig denies requests carrying a listed header; an entry with a
// value denies only when the header contains that value.
type HeaderConfig struct {
	Enabled bool              `yaml:"enabled" json:"enabled"`
	Deny    map[string]string `yaml:"deny,omitempty" json:"deny,omitempty"`
}

// RDNSConfig denies visitors whose resolved hostname matches a pattern, and
// optionally those with no genuine reverse record at all.
type RDNSConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Deny    []string `yaml:"deny,omitempty" json:"deny,omitempty"`
	// Strict denies visitors whose reverse record is missing or is just the
	// IP echoed back.
	Strict bool `yaml:"strict" json:"strict"`
}

// MessengersConfig wires notification endpoints.
type MessengersConfig struct {
	Telegram TelegramConfig `yaml:"telegram" json:"telegram"`
	Slack    SlackConfig    `yaml:"slack" json:"slack"`
	AMQP     AMQPConfig     `yaml:"amqp" json:"amqp"`
}

// TelegramConfig is a Telegram bot API target.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Token   string `yaml:"token,omitempty" json:"token,omitempty"`
	ChatID  string `yaml:"chat_id,omitempty" json:"chat_id,omitempty"`
}

// SlackConfig is a Slack incoming-webhook target.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	WebhookURL string `yaml:"webhook_url,omitempty" json:"webhook_url,omitempty"`
}

// AMQPConfig publishes notifications to a durable queue.
type AMQPConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	URL     string `yaml:"url,omitempty" json:"url,omitempty"`
	Queue   string `yaml:"queue,omitempty" json:"queue,omitempty"`
}

// ProxyConfig tunes the guarding reverse proxy front end.
type ProxyConfig struct {
	Listen  string `yaml:"listen" json:"listen"`
	Backend string `yaml:"backend" json:"backend"`
	// SessionCookie is the cookie carrying the minted session token.
	SessionCookie string `yaml:"session_cookie" json:"session_cookie"`
	// TrustForwardedFor takes the visitor IP from X-Forwarded-For when the
	// proxy itself sits behind a load balancer.
	TrustForwardedFor bool `yaml:"trust_forwarded_for" json:"trust_forwarded_for"`
	// Dashboard enables the live dashboard under /_gatetrap/.
	Dashboard bool `yaml:"dashboard" json:"dashboard"`
}

// AuditConfig selects the audit log sink.
type AuditConfig struct {
	// Path of the JSONL audit log; empty logs to stderr.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// MaxSizeMB rotates the file once it exceeds this size.
	MaxSizeMB int `yaml:"max_size_mb,omitempty" json:"max_size_mb,omitempty"`
	// MaxBackups limits how many rotated files are kept.
	MaxBackups int `yaml:"max_backups,omitempty" json:"max_backups,omitempty"`
}
