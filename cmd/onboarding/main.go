package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/DhruvSingla03/query-automation/internal/config"
	"github.com/DhruvSingla03/query-automation/internal/core"
	"github.com/DhruvSingla03/query-automation/internal/intake"
	"github.com/DhruvSingla03/query-automation/internal/logging"
	"github.com/DhruvSingla03/query-automation/internal/product"
	"github.com/DhruvSingla03/query-automation/internal/store"
	"github.com/DhruvSingla03/query-automation/internal/vault"
	"github.com/DhruvSingla03/query-automation/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"env", cfg.Env,
		"intake_root", cfg.Intake.Root,
		"scan_interval", cfg.Intake.ScanInterval,
		"ops_enabled", cfg.Ops.Enabled,
	)

	ctx := context.Background()

	// Resolve database credentials: Vault when configured, direct URL otherwise
	dbURL := cfg.Database.URL
	if cfg.Vault.Enabled() {
		vc, err := vault.New(cfg.Vault.Addr, cfg.Vault.Token, cfg.Vault.SecretPath)
		if err != nil {
			slog.Error("failed to create vault client", "error", err)
			os.Exit(1)
		}
		dbURL, err = vc.DatabaseURL(ctx)
		if err != nil {
			slog.Error("failed to read database credentials from vault", "error", err)
			os.Exit(1)
		}
		slog.Info("database credentials resolved from vault", "path", cfg.Vault.SecretPath)
	}

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	// Connect to database
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Log which database we connected to
	if u, err := url.Parse(dbURL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	// Wire the processing pipeline: one coordinator per registered product,
	// all sharing the store and audit trail.
	pg := store.NewPostgres(pool, store.WithTimestamps("created_ts", "modified_ts"))
	audit := core.NewAuditLog(pool, cfg.Audit.ExportLimit)
	catalog := product.NewCatalog()

	processors := make(map[string]intake.Processor, len(catalog.Codes()))
	for _, code := range catalog.Codes() {
		adapter, ok := catalog.ByCode(code)
		if !ok {
			slog.Error("unknown product in catalog", "product", code)
			os.Exit(1)
		}
		processors[code] = core.NewCoordinator(pg, adapter, audit, slog.Default().With("product", code))
	}
	slog.Info("products registered", "count", len(processors), "codes", catalog.Codes())

	runner := intake.NewRunner(cfg.Intake.Root, cfg.Env, cfg.Intake.AllowedSubmitters, processors, slog.Default())
	if err := runner.EnsureLayout(); err != nil {
		slog.Error("failed to prepare intake directories", "error", err)
		os.Exit(1)
	}

	// Cancellable context tied to SIGINT/SIGTERM
	runCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Optional read-only ops surface alongside the intake loop
	var opsServer *web.Server
	if cfg.Ops.Enabled {
		opsServer = web.NewServer(audit, catalog)
		go func() {
			if err := opsServer.Start(cfg.Ops.Addr(), cfg.Ops.ReadTimeout, cfg.Ops.WriteTimeout); err != nil {
				slog.Info("ops server stopped", "error", err)
			}
		}()
	}

	exitCode := 0
	if err := runIntake(runCtx, runner, cfg.Intake.ScanInterval); err != nil {
		slog.Error("intake run failed", "error", err)
		exitCode = 1
	}

	if opsServer != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Ops.ShutdownTimeout)
		defer cancelShutdown()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("ops server shutdown error", "error", err)
		}
	}

	os.Exit(exitCode)
}

// runIntake performs a single inbox scan, or keeps rescanning on a timer
// when an interval is configured. A zero interval matches the cron-driven
// one-shot deployment mode.
func runIntake(ctx context.Context, runner *intake.Runner, interval time.Duration) error {
	if interval <= 0 {
		results, err := runner.ScanOnce(ctx)
		logScan(results)
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		results, err := runner.ScanOnce(ctx)
		if err != nil {
			slog.Error("inbox scan failed", "error", err)
		}
		logScan(results)
		select {
		case <-ctx.Done():
			slog.Info("shutting down...")
			return nil
		case <-ticker.C:
		}
	}
}

// logScan summarizes the files handled by one inbox pass.
func logScan(results []intake.FileResult) {
	for _, res := range results {
		slog.Info("file handled",
			"file", res.File,
			"product", res.Product,
			"batch_id", res.BatchID,
			"status", res.Status,
			"rows", res.TotalRows,
			"succeeded", len(res.Succeeded),
			"failed", len(res.Failed),
		)
	}
}
