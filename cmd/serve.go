package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coal/gatetrap/internal/audit"
	"github.com/coal/gatetrap/internal/config"
	"github.com/coal/gatetrap/internal/dashboard"
	"github.com/coal/gatetrap/internal/driver"
	"github.com/coal/gatetrap/internal/kernel"
	"github.com/coal/gatetrap/internal/messenger"
	"github.com/coal/gatetrap/internal/proxy"
)

var (
	configFile  string
	listenAddr  string
	backendURL  string
	noDashboard bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the guarding reverse proxy",
	Long:  "Start the HTTP reverse proxy that runs every request through the firewall pipeline before forwarding it to the backend.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&configFile, "config", "configs/default.yaml", "Path to config YAML file")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Address to listen on (overrides config)")
	serveCmd.Flags().StringVar(&backendURL, "backend", "", "Protected backend URL (overrides config)")
	serveCmd.Flags().BoolVar(&noDashboard, "no-dashboard", false, "Disable the real-time dashboard")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Str("component", "gatetrap").Logger()

	cfg, err := config.LoadFromFile(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if listenAddr != "" {
		cfg.Proxy.Listen = listenAddr
	}
	if backendURL != "" {
		cfg.Proxy.Backend = backendURL
	}

	drv, err := driver.Open(context.Background(), cfg.Driver.Type, cfg.Driver.Path, cfg.Driver.RedisURL)
	if err != nil {
		return fmt.Errorf("opening driver: %w", err)
	}
	defer drv.Close()
	logger.Info().
		Str("driver", cfg.Driver.Type).
		Str("channel", cfg.Channel).
		Msg("driver ready")

	var auditLogger *audit.Logger
	if cfg.Audit.Path != "" {
		auditLogger = audit.NewFileLogger(cfg.Audit.Path, cfg.Audit.MaxSizeMB, cfg.Audit.MaxBackups)
		logger.Info().Str("path", cfg.Audit.Path).Msg("audit log enabled")
	} else {
		auditLogger = audit.NewStderrLogger()
	}

	messengers := messenger.Build(cfg.Messengers, logger)
	for _, m := range messengers {
		logger.Info().Str("messenger", m.Name()).Msg("messenger registered")
	}

	kern, err := kernel.New(cfg, drv, auditLogger, logger, kernel.WithMessengers(messengers))
	if err != nil {
		return fmt.Errorf("building kernel: %w", err)
	}

	guardProxy, err := proxy.New(kern, cfg.Proxy, logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}

	// Set up the HTTP handler — either with dashboard mux or proxy-only
	var handler http.Handler = guardProxy

	if cfg.Proxy.Dashboard && !noDashboard {
		hub := dashboard.NewHub(kern)
		kern.AddObserver(hub.OnEvent)
		dashboard.Run(context.Background(), hub)

		dashHandler := dashboard.Handler(hub)
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/_gatetrap") {
				dashHandler.ServeHTTP(w, r)
				return
			}
			guardProxy.ServeHTTP(w, r)
		})
	}

	logger.Info().
		Str("listen", cfg.Proxy.Listen).
		Str("backend", cfg.Proxy.Backend).
		Msg("starting gatetrap proxy")

	fmt.Fprintf(os.Stderr, "\n  Gatetrap v%s\n", Version)
	fmt.Fprintf(os.Stderr, "  Channel: %s (%s driver)\n", cfg.Channel, cfg.Driver.Type)
	fmt.Fprintf(os.Stderr, "  Listen:  %s\n", cfg.Proxy.Listen)
	fmt.Fprintf(os.Stderr, "  Backend: %s\n", cfg.Proxy.Backend)
	if cfg.Proxy.Dashboard && !noDashboard {
		dashAddr := cfg.Proxy.Listen
		if strings.HasPrefix(dashAddr, ":") {
			dashAddr = "localhost" + dashAddr
		}
		fmt.Fprintf(os.Stderr, "  Dashboard: http://%s/_gatetrap/\n", dashAddr)
	}
	fmt.Fprintln(os.Stderr)

	return http.ListenAndServe(cfg.Proxy.Listen, handler)
}
