package cmd

import (
	"context"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/privd/privd/internal/adapter/inbound/reactor"
	"github.com/privd/privd/internal/adapter/outbound/audit"
	"github.com/privd/privd/internal/adapter/outbound/storage"
	"github.com/privd/privd/internal/config"
	"github.com/privd/privd/internal/domain/evaluator"
	"github.com/privd/privd/internal/domain/monitor"
	"github.com/privd/privd/internal/domain/plugin"
	"github.com/privd/privd/internal/metrics"
	"github.com/privd/privd/internal/plugin/celplugin"
	"github.com/privd/privd/internal/service"
)

var devMode bool

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon",
	Long: `Start privd: bind the client, admin, and agent sockets and serve CHECK
requests against the on-disk policy store.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "relax socket/storage paths to the current directory")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	if devMode {
		viper.Set("dev_mode", true)
	}
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logLevel := parseLogLevel(cfg.Log.Level)
	var handler slog.Handler
	if cfg.Log.JSON {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	}
	logger := slog.New(handler)

	if file := config.ConfigFileUsed(); file != "" {
		logger.Info("loaded config", "file", file)
	}

	return run(cmd.Context(), cfg, logger)
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT)
	defer stop()

	storageLayer, err := storage.Open(cfg.Storage.Dir, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() { _ = storageLayer.Close() }()

	store, err := storageLayer.Load()
	if err != nil {
		return fmt.Errorf("load policy store: %w", err)
	}
	logger.Info("policy store loaded", "buckets", len(store.BucketIDs()))

	plugins := plugin.NewRegistry()
	celHandler, err := celplugin.New()
	if err != nil {
		return fmt.Errorf("build CEL plugin: %w", err)
	}
	if err := plugins.Register(celplugin.DefaultType, celplugin.Name, celHandler); err != nil {
		return fmt.Errorf("register CEL plugin: %w", err)
	}

	eval := evaluator.New(store, plugins)
	hub := monitor.NewHub(cfg.Monitor.RingCapacity)
	agents := service.NewAgentRegistry()
	pending := service.NewPendingTable(cfg.Cache.Capacity)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	router := service.NewRouter(logger, store, eval, plugins, storageLayer, hub, agents, pending, m)

	if cfg.Metrics.Enabled {
		mux := stdhttp.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &stdhttp.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("metrics listening", "addr", cfg.Metrics.Addr)
	}

	if cfg.Audit.Enabled {
		sink, err := audit.NewFileSink(audit.Config{
			Dir:           cfg.Audit.Dir,
			RetentionDays: cfg.Audit.RetentionDays,
			MaxFileSizeMB: cfg.Audit.MaxFileSizeMB,
		}, logger)
		if err != nil {
			return fmt.Errorf("open audit sink: %w", err)
		}
		defer func() { _ = sink.Close() }()

		interval, perr := time.ParseDuration(cfg.Audit.FlushInterval)
		if perr != nil {
			interval = time.Second
		}
		tailCtx, tailCancel := context.WithCancel(context.Background())
		defer tailCancel()
		go sink.TailHub(tailCtx, hub, interval)
		logger.Info("audit sink enabled", "dir", cfg.Audit.Dir)
	}

	rc := reactor.Config{
		ClientPath:       cfg.Sockets.Client.Path,
		AdminPath:        cfg.Sockets.Admin.Path,
		AgentPath:        cfg.Sockets.Agent.Path,
		CacheCapacity:    cfg.Cache.Capacity,
		LauncherFDEnvVar: config.RuntimeFDEnvVar,
	}
	reac, err := reactor.New(rc, router, logger, m)
	if err != nil {
		return fmt.Errorf("build reactor: %w", err)
	}

	go func() {
		<-ctx.Done()
		reac.Stop()
	}()

	logger.Info("privd starting",
		"client", rc.ClientPath,
		"admin", rc.AdminPath,
		"agent", rc.AgentPath,
		"dev_mode", cfg.DevMode,
	)

	if err := reac.Run(); err != nil {
		return fmt.Errorf("reactor run: %w", err)
	}
	logger.Info("privd stopped")
	return nil
}

// parseLogLevel converts a string log level to slog.Level, defaulting to
// info for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
