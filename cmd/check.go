package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coal/gatetrap/internal/audit"
	"github.com/coal/gatetrap/internal/config"
	"github.com/coal/gatetrap/internal/driver"
	"github.com/coal/gatetrap/internal/kernel"
	"github.com/coal/gatetrap/internal/visitor"
)

var (
	checkConfigFile string
	checkUserAgent  string
	checkReferer    string
	checkSession    string
	checkCookie     string
)

var checkCmd = &cobra.Command{
	Use:   "check [ip]",
	Short: "Run a single visit through the pipeline and show the verdict",
	Long:  "Simulate one visit from the given IP against the persisted state and display the decision, reason, and current standing rules.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkConfigFile, "config", "configs/default.yaml", "Path to config YAML file")
	checkCmd.Flags().StringVar(&checkUserAgent, "ua", "Mozilla/5.0", "User agent to simulate")
	checkCmd.Flags().StringVar(&checkReferer, "referer", "", "Referer header to simulate")
	checkCmd.Flags().StringVar(&checkSession, "session", "check-session", "Session id to simulate")
	checkCmd.Flags().StringVar(&checkCookie, "cookie", "", "JS cookie value to simulate (empty means absent)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ip := args[0]

	cfg, err := config.LoadFromFile(checkConfigFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	drv, err := driver.Open(context.Background(), cfg.Driver.Type, cfg.Driver.Path, cfg.Driver.RedisURL)
	if err != nil {
		return fmt.Errorf("opening driver: %w", err)
	}
	defer drv.Close()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	kern, err := kernel.New(cfg, drv, audit.NopLogger(), logger)
	if err != nil {
		return fmt.Errorf("building kernel: %w", err)
	}

	v := &visitor.Visit{
		IP:          ip,
		SessionID:   checkSession,
		UserAgent:   checkUserAgent,
		Referer:     checkReferer,
		CookieValue: checkCookie,
		HasCookie:   checkCookie != "",
	}
	decision, err := kern.Handle(v)
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\n=== Decision ===\n\n")
	fmt.Fprintf(os.Stderr, "  Verdict: %s\n", decision.Verdict)
	if decision.Reason != 0 {
		fmt.Fprintf(os.Stderr, "  Reason:  %d (%s)\n", int(decision.Reason), decision.Reason.Text())
	}
	if decision.Component != "" {
		fmt.Fprintf(os.Stderr, "  Source:  %s component\n", decision.Component)
	}
	fmt.Fprintln(os.Stderr)

	rules, err := kern.Rules()
	if err != nil {
		return fmt.Errorf("reading rule table: %w", err)
	}
	if len(rules) > 0 {
		fmt.Fprintf(os.Stderr, "=== Standing rules ===\n\n")
		out, _ := json.MarshalIndent(rules, "", "  ")
		fmt.Fprintf(os.Stdout, "%s\n", out)
	}

	return nil
}
