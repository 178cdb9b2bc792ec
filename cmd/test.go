package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coal/gatetrap/internal/audit"
	"github.com/coal/gatetrap/internal/config"
	"github.com/coal/gatetrap/internal/driver"
	"github.com/coal/gatetrap/internal/kernel"
	"github.com/coal/gatetrap/internal/visitor"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run built-in traffic scenarios against the pipeline",
	Long:  "Replay canned visitor scenarios (flood, junk crawler, normal browsing) against a throwaway data cycle to verify pipeline behavior.",
	RunE:  runTest,
}

type scenario struct {
	name     string
	visits   []visitor.Visit
	expected string // verdict of the final visit
}

var scenarios = []scenario{
	{
		name: "normal_browsing",
		visits: []visitor.Visit{
			{IP: "192.0.2.10", SessionID: "s1", UserAgent: "Mozilla/5.0", Referer: "https://example.com/"},
		},
		expected: "ALLOW",
	},
	{
		name: "secondly_flood",
		visits: []visitor.Visit{
			{IP: "192.0.2.20", SessionID: "s2", UserAgent: "Mozilla/5.0"},
			{IP: "192.0.2.20", SessionID: "s2", UserAgent: "Mozilla/5.0"},
			{IP: "192.0.2.20", SessionID: "s2", UserAgent: "Mozilla/5.0"},
			{IP: "192.0.2.20", SessionID: "s2", UserAgent: "Mozilla/5.0"},
		},
		expected: "TEMP_DENY",
	},
	{
		name: "junk_crawler",
		visits: []visitor.Visit{
			{IP: "192.0.2.30", SessionID: "s3", UserAgent: "Mozilla/5.0 (compatible; AhrefsBot/7.0)"},
		},
		expected: "DENY",
	},
	{
		name: "missing_user_agent",
		visits: []visitor.Visit{
			{IP: "192.0.2.40", SessionID: "s4"},
		},
		expected: "DENY",
	},
	{
		name: "denied_by_ip_list",
		visits: []visitor.Visit{
			{IP: "198.51.100.99", SessionID: "s5", UserAgent: "Mozilla/5.0"},
		},
		expected: "DENY",
	},
}

func runTest(cmd *cobra.Command, args []string) error {
	dir, err := os.MkdirTemp("", "gatetrap-test-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)

	cfg := config.Default()
	cfg.Driver.Path = filepath.Join(dir, "data.json")
	cfg.Filters.Frequency.Enabled = true
	cfg.Filters.Frequency.QuotaS = 2
	cfg.Components.UserAgent.Enabled = true
	cfg.Components.IPList.Enabled = true
	cfg.Components.IPList.Deny = []string{"198.51.100.0/24"}

	drv, err := driver.NewFileDriver(cfg.Driver.Path)
	if err != nil {
		return err
	}
	defer drv.Close()

	logger := zerolog.Nop()
	now := time.Now()
	kern, err := kernel.New(cfg, drv, audit.NopLogger(), logger,
		kernel.WithClock(func() time.Time { return now }),
		kernel.WithResolver(nopResolver{}))
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n=== Gatetrap pipeline scenarios ===\n\n")

	passed := 0
	failed := 0

	for _, sc := range scenarios {
		var last string
		for i := range sc.visits {
			d, err := kern.Handle(&sc.visits[i])
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.name, err)
			}
			last = d.Verdict.String()
		}

		status := "PASS"
		if last != sc.expected {
			status = "FAIL"
			failed++
		} else {
			passed++
		}
		fmt.Fprintf(os.Stderr, "  [%s] %-24s expected=%-12s got=%-12s\n",
			status, sc.name, sc.expected, last)
	}

	fmt.Fprintf(os.Stderr, "\n  Results: %d passed, %d failed, %d total\n\n",
		passed, failed, len(scenarios))

	if failed > 0 {
		return fmt.Errorf("%d scenario(s) failed", failed)
	}
	return nil
}

// nopResolver keeps scenarios offline.
type nopResolver struct{}

func (nopResolver) LookupAddr(string) ([]string, error) { return nil, nil }

func (nopResolver) LookupHost(string) ([]string, error) { return nil, nil }
