package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/spf13/cobra"

	httptransport "github.com/ridgeline-io/datagate/internal/adapter/inbound/http"
	"github.com/ridgeline-io/datagate/internal/adapter/outbound/dataset"
	"github.com/ridgeline-io/datagate/internal/adapter/outbound/memory"
	"github.com/ridgeline-io/datagate/internal/adapter/outbound/rediskv"
	"github.com/ridgeline-io/datagate/internal/adapter/outbound/sqlpolicy"
	"github.com/ridgeline-io/datagate/internal/config"
	"github.com/ridgeline-io/datagate/internal/domain/auth"
	"github.com/ridgeline-io/datagate/internal/domain/ratelimit"
	"github.com/ridgeline-io/datagate/internal/service"
)

var devMode bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway HTTP server",
	Long: `Start the gateway: connects to the data store, the policy database,
and the shared Redis counter store, then serves the gated dataset
surface, login, health, and metrics over HTTP until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&devMode, "dev", false, "enable development mode (local DSN defaults, seeded admin/admin login, debug logging)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}
	logger.Info("suprema-gate stopped")
	return nil
}

// run wires every component and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	dbTimeout, err := time.ParseDuration(cfg.DBConnectionTimeout)
	if err != nil {
		return fmt.Errorf("parse db_connection_timeout: %w", err)
	}

	dataGW, err := openDataset(ctx, cfg, dbTimeout)
	if err != nil {
		return err
	}
	defer func() { _ = dataGW.Close() }()

	policyGW, err := sqlpolicy.Open(ctx, cfg.PolicyDatabaseURL)
	if err != nil {
		return fmt.Errorf("open policy database: %w", err)
	}
	defer func() { _ = policyGW.Close() }()

	counters, closeCounters, err := openCounters(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCounters()

	var credentials auth.CredentialStore = policyGW
	if cfg.DevMode {
		if err := seedDevAdmin(ctx, policyGW, logger); err != nil {
			return fmt.Errorf("seed dev admin user: %w", err)
		}
	}

	sessionStore := memory.NewSessionStore()
	sessionStore.StartCleanup(ctx)
	defer sessionStore.Stop()

	conditions, err := ratelimit.NewConditionEvaluator()
	if err != nil {
		return fmt.Errorf("create condition evaluator: %w", err)
	}

	auditService := service.NewAuditService(policyGW, logger, service.WithQueueSize(cfg.AuditQueueSize))
	auditService.Start(ctx)
	defer auditService.Stop()

	fallback := ratelimit.FallbackPolicy{
		Enabled:   cfg.UserRateLimitEnabled,
		WindowSec: cfg.UserRateLimitWindowSec,
		MaxCalls:  cfg.UserRateLimitMaxCalls,
		BlockSec:  cfg.UserRateLimitBlockSec,
	}
	cache := service.NewPolicyCache(policyGW, time.Minute, logger)

	var engineOpts []service.DecisionEngineOption
	engineOpts = append(engineOpts, service.WithSamplingRate(cfg.RateEventSampling))
	if strings.EqualFold(cfg.RateLimitDegradedMode, "allow") {
		engineOpts = append(engineOpts, service.WithDegradedModeAllow())
	}
	engine := service.NewDecisionEngine(policyGW, cache, counters, conditions, auditService, fallback, logger, engineOpts...)

	sessionService := service.NewSessionService(credentials, sessionStore, logger)

	handler := httptransport.NewHandler(Version, sessionService, dataGW, logger)
	healthChecker := httptransport.NewHealthChecker(sessionStore, auditService, dataGW, Version)

	transport := httptransport.NewHTTPTransport(handler, sessionService, engine,
		httptransport.WithAddr(cfg.HTTPAddr),
		httptransport.WithLogger(logger),
		httptransport.WithHealthChecker(healthChecker),
	)

	return transport.Start(ctx)
}

func openDataset(ctx context.Context, cfg *config.Config, timeout time.Duration) (*dataset.Gateway, error) {
	openCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	gw, err := dataset.Open(openCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open dataset gateway: %w", err)
	}
	return gw, nil
}

func openCounters(ctx context.Context, cfg *config.Config) (ratelimit.CounterStore, func(), error) {
	gw, err := rediskv.Open(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open redis counter store: %w", err)
	}
	return gw, func() { _ = gw.Close() }, nil
}

// seedDevAdmin inserts a well-known admin/admin credential so the
// gateway is immediately usable with --dev and no external setup.
func seedDevAdmin(ctx context.Context, gw *sqlpolicy.Gateway, logger *slog.Logger) error {
	hash, err := argon2id.CreateHash("admin", argon2id.DefaultParams)
	if err != nil {
		return err
	}
	if err := gw.SeedAdminUser(ctx, "admin", hash, auth.RoleAdmin); err != nil {
		return err
	}
	logger.Warn("dev mode: seeded default admin/admin credential, do not use in production")
	return nil
}

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
