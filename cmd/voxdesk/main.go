// Command voxdesk is the main entry point for the Voxdesk voice assistant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxdesk/voxdesk/internal/config"
	"github.com/voxdesk/voxdesk/internal/health"
	"github.com/voxdesk/voxdesk/internal/host"
	"github.com/voxdesk/voxdesk/internal/observe"
	"github.com/voxdesk/voxdesk/internal/session"
	"github.com/voxdesk/voxdesk/pkg/audio/capture"
	"github.com/voxdesk/voxdesk/pkg/audio/playback"
	"github.com/voxdesk/voxdesk/pkg/live"
	"github.com/voxdesk/voxdesk/pkg/live/gemini"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxdesk: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxdesk: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.Slog(),
	}))
	slog.SetDefault(logger)

	slog.Info("voxdesk starting",
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
		"apps", len(cfg.Apps),
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "voxdesk",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// metricsSrv is created later, once the session manager exists for the
	// readiness check.
	var metricsSrv *http.Server

	// ── Host capabilities ─────────────────────────────────────────────────────
	apps := host.NewRegistry(cfg.Apps,
		host.WithOpenHook(func(name string) {
			slog.Info("host opened application", "app", name)
		}),
		host.WithCloseHook(func(name string) {
			slog.Info("host closed application", "app", name)
		}),
	)

	// ── Agent provider ────────────────────────────────────────────────────────
	var opts []gemini.Option
	if cfg.Agent.Model != "" {
		opts = append(opts, gemini.WithModel(cfg.Agent.Model))
	}
	if cfg.Agent.BaseURL != "" {
		opts = append(opts, gemini.WithBaseURL(cfg.Agent.BaseURL))
	}
	provider := gemini.New(cfg.Agent.APIKey, opts...)

	// ── Session manager ───────────────────────────────────────────────────────
	mgr := session.NewManager(session.Config{
		Provider: provider,
		Agent: live.SessionConfig{
			Instructions: cfg.Agent.Instructions,
			Voice:        cfg.Agent.Voice,
		},
		Host: apps,
		OpenCapture: func() (session.CaptureSource, error) {
			mic, err := capture.Open(capture.Config{
				FrameSize: cfg.Audio.FrameSize,
				OnDrop: func() {
					metrics.RecordDroppedFrames(context.Background(), 1)
				},
			})
			if err != nil {
				return nil, err
			}
			return mic, nil
		},
		NewSink: func() (playback.Sink, error) {
			dev, err := playback.OpenDevice()
			if err != nil {
				return nil, err
			}
			return dev, nil
		},
		OnTranscript: logTranscript,
		Metrics:      metrics,
	})

	printStartupSummary(cfg)

	// ── Run ───────────────────────────────────────────────────────────────────
	// The metrics server and the session supervisor run as a group: a fatal
	// error in either tears the whole process down.
	sup := session.NewSupervisor(session.SupervisorConfig{Manager: mgr})
	slog.Info("starting session — press Ctrl+C to shut down")

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Server.MetricsAddr != "" {
		metricsSrv = newMetricsServer(cfg.Server.MetricsAddr, metrics, mgr)
		g.Go(func() error {
			slog.Info("metrics endpoint listening", "addr", cfg.Server.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsSrv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return sup.Run(gctx)
	})

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	exitCode := 0
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		exitCode = 1
	}
	sup.Stop()

	slog.Info("goodbye")
	return exitCode
}

// newMetricsServer serves the Prometheus scrape endpoint plus liveness and
// readiness probes, all wrapped in the observability middleware.
func newMetricsServer(addr string, metrics *observe.Metrics, mgr *session.Manager) *http.Server {
	mw := observe.Middleware(metrics)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", health.Healthz())
	mux.HandleFunc("GET /readyz", health.Readyz(
		health.Checker{
			Name: "session",
			Check: func(context.Context) error {
				if mgr.State() == session.StateIdle {
					return errors.New("no session active")
				}
				return nil
			},
		},
	))

	return &http.Server{
		Addr:              addr,
		Handler:           mw(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// logTranscript writes each finalized conversation turn to the log.
func logTranscript(entries []session.Entry) {
	for _, e := range entries {
		slog.Info("transcript", "speaker", e.Speaker, "text", e.Text)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Voxdesk — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Model", valueOr(cfg.Agent.Model, "(default)"))
	printField("Voice", valueOr(cfg.Agent.Voice, "(default)"))
	printField("Apps", fmt.Sprintf("%d", len(cfg.Apps)))
	printField("Metrics", valueOr(cfg.Server.MetricsAddr, "(disabled)"))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(name, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", name, value)
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
