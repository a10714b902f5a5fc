// Package commands wires the aegis CLI.
package commands

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/holst/aegis/internal/agent/provider"
	"github.com/holst/aegis/internal/agent/tools"
	"github.com/holst/aegis/internal/audit"
	"github.com/holst/aegis/internal/checkpoint"
	"github.com/holst/aegis/internal/config"
	"github.com/holst/aegis/internal/metrics"
	"github.com/holst/aegis/internal/workflow"
)

const Version = "0.1.0"

var (
	configPath string
	modelFlag  string
	auditFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "Aegis - multi-agent cybersecurity advisory",
	Long: `Aegis answers security questions by routing them to a team of
specialist agents (incident response, prevention, threat intelligence,
compliance) that investigate with live threat-intel tools and merge their
analyses into a single advisory.`,
	Version: Version,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "aegis.yaml",
		"Path to the YAML configuration file (missing file falls back to defaults)")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "",
		"Model identifier, overriding config and AEGIS_MODEL")
	rootCmd.PersistentFlags().StringVar(&auditFlag, "audit-log", "",
		"Path to write turn audit log (JSONL). Empty disables audit logging.")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(rolesCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig assembles the effective configuration honoring .env, the
// config file, environment variables, and CLI flags, in rising priority.
func loadConfig() (*config.Config, error) {
	// A local .env is a developer convenience, absence is fine.
	_ = godotenv.Load()

	cfg, err := config.LoadOptional(configPath)
	if err != nil {
		return nil, err
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if auditFlag != "" {
		cfg.AuditLogPath = auditFlag
	}
	return cfg, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// buildEngine assembles the full pipeline from configuration.
func buildEngine(cfg *config.Config, logger *slog.Logger) (*workflow.Engine, *audit.Logger, error) {
	providerCfg := provider.DefaultConfig()
	providerCfg.Model = cfg.Model
	p, err := provider.NewAnthropicProviderWithKey(cfg.AnthropicAPIKey, providerCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create provider: %w", err)
	}

	registry := tools.NewRegistry(tools.Dependencies{
		VirusTotalKey: cfg.Tools.VirusTotalKey,
		OTXKey:        cfg.Tools.OTXKey,
		NVDKey:        cfg.Tools.NVDKey,
		TavilyKey:     cfg.Tools.TavilyKey,
		KnowledgeURL:  cfg.Tools.KnowledgeURL,
		Logger:        logger,
	})

	var store checkpoint.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		store = checkpoint.NewRedisStore(rdb, cfg.Redis.TTL)
		logger.Info("thread state persisted to redis", "addr", cfg.Redis.Addr)
	} else {
		store = checkpoint.NewMemoryStore()
	}

	var auditor *audit.Logger
	if cfg.AuditLogPath != "" {
		auditor, err = audit.NewLogger(cfg.AuditLogPath, uuid.NewString())
		if err != nil {
			return nil, nil, fmt.Errorf("open audit log: %w", err)
		}
		auditor.LogSessionStart(cfg.Model)
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		m = metrics.NewMetrics(reg)
		go serveMetrics(cfg.MetricsAddr, reg, logger)
	}

	engine, err := workflow.New(workflow.Config{
		Provider:     p,
		Registry:     registry,
		Store:        store,
		Roles:        cfg.RoleConfigs(),
		QualityGates: cfg.QualityGates,
		Logger:       logger,
		Metrics:      m,
		Auditor:      auditor,
	})
	if err != nil {
		return nil, nil, err
	}
	return engine, auditor, nil
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	logger.Info("metrics endpoint listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics endpoint failed", "error", err)
	}
}
