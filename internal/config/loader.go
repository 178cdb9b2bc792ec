package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFromFile loads a configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := validate(&c); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &c, nil
}

// Export writes the full configuration as YAML. Export followed by Import
// reproduces an identical configuration; no field is dropped.
func Export(c *Config, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}

// Import reads a previously exported configuration.
func Import(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Default returns the configuration used when no file is given: file driver,
// all filters on with moderate quotas, escalation enabled, no session cap.
func Default() *Config {
	c := &Config{}
	// validate fills every default on an empty config and cannot fail.
	_ = validate(c)
	return c
}

// validate checks config integrity and fills defaults in place.
func validate(c *Config) error {
	if c.Channel == "" {
		c.Channel = "gatetrap"
	}

	if c.Driver.Type == "" {
		c.Driver.Type = "file"
	}
	switch c.Driver.Type {
	case "file", "bolt":
		if c.Driver.Path == "" {
			c.Driver.Path = "gatetrap_data.db"
		}
	case "redis":
		if c.Driver.RedisURL == "" {
			return fmt.Errorf("driver.redis_url is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown driver.type %q (want file, bolt, or redis)", c.Driver.Type)
	}

	f := &c.Filters
	if f.TimeResetLimit <= 0 {
		f.TimeResetLimit = 3600
	}
	if f.Frequency.QuotaS <= 0 {
		f.Frequency.QuotaS = 2
	}
	if f.Frequency.QuotaM <= 0 {
		f.Frequency.QuotaM = 10
	}
	if f.Frequency.QuotaH <= 0 {
		f.Frequency.QuotaH = 30
	}
	if f.Frequency.QuotaD <= 0 {
		f.Frequency.QuotaD = 60
	}
	if f.Referer.IntervalCheck <= 0 {
		f.Referer.IntervalCheck = 5
	}
	if f.Referer.Limit <= 0 {
		f.Referer.Limit = 3
	}
	if f.Cookie.Name == "" {
		f.Cookie.Name = "ssjd"
	}
	if f.Cookie.Value == "" {
		f.Cookie.Value = "1"
	}
	if f.Cookie.Limit <= 0 {
		f.Cookie.Limit = 5
	}
	if f.Session.Limit <= 0 {
		f.Session.Limit = 5
	}

	e := &c.Events
	if e.RecordAttemptDetectionPeriod <= 0 {
		e.RecordAttemptDetectionPeriod = 5
	}
	if e.ResetAttemptCounter <= 0 {
		e.ResetAttemptCounter = 1800
	}
	if e.BanDataCircle.Buffer <= 0 {
		e.BanDataCircle.Buffer = 10
	}
	if e.BanSystemFirewall.Buffer <= 0 {
		e.BanSystemFirewall.Buffer = 10
	}
	if e.BanSystemFirewall.Enabled && e.BanSystemFirewall.QueuePath == "" {
		return fmt.Errorf("events.ban_system_firewall.queue_path is required when the event is enabled")
	}

	if c.Session.Count < 0 {
		return fmt.Errorf("session_limit.count must not be negative")
	}
	if c.Session.Count > 0 && c.Session.Period <= 0 {
		c.Session.Period = 300
	}

	// An empty resolver address is valid: the kernel falls back to the
	// system stub resolver.
	if c.Components.TrustedBot.Enabled && len(c.Components.TrustedBot.Bots) == 0 {
		c.Components.TrustedBot.Bots = DefaultTrustedBots()
	}

	if c.Messengers.Telegram.Enabled && (c.Messengers.Telegram.Token == "" || c.Messengers.Telegram.ChatID == "") {
		return fmt.Errorf("messengers.telegram needs token and chat_id")
	}
	if c.Messengers.Slack.Enabled && c.Messengers.Slack.WebhookURL == "" {
		return fmt.Errorf("messengers.slack needs webhook_url")
	}
	if c.Messengers.AMQP.Enabled {
		if c.Messengers.AMQP.URL == "" {
			return fmt.Errorf("messengers.amqp needs url")
		}
		if c.Messengers.AMQP.Queue == "" {
			c.Messengers.AMQP.Queue = "gatetrap_events"
		}
	}

	if c.Proxy.Listen == "" {
		c.Proxy.Listen = ":8080"
	}
	if c.Proxy.Backend == "" {
		c.Proxy.Backend = "http://localhost:3000"
	}
	if c.Proxy.SessionCookie == "" {
		c.Proxy.SessionCookie = "gt_session"
	}

	if c.Audit.MaxSizeMB <= 0 {
		c.Audit.MaxSizeMB = 50
	}
	if c.Audit.MaxBackups <= 0 {
		c.Audit.MaxBackups = 5
	}

	return nil
}

// DefaultTrustedBots returns the built-in search engine bot signatures.
func DefaultTrustedBots() []TrustedBot {
	return []TrustedBot{
		{
			Name:    "google",
			Agent:   "Googlebot",
			Domains: []string{".googlebot.com", ".google.com"},
		},
		{
			Name:    "bing",
			Agent:   "bingbot",
			Domains: []string{".search.msn.com"},
		},
		{
			Name:    "yahoo",
			Agent:   "Slurp",
			Domains: []string{".crawl.yahoo.net", ".yse.yahoo.com"},
		},
		{
			Name:    "yandex",
			Agent:   "YandexBot",
			Domains: []string{".yandex.com", ".yandex.net", ".yandex.ru"},
		},
		{
			Name:    "duckduckgo",
			Agent:   "DuckDuckBot",
			Domains: []string{".duckduckgo.com"},
		},
	}
}
