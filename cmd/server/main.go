package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/me/goaps/internal/adjust"
	"github.com/me/goaps/internal/config"
	"github.com/me/goaps/internal/engine"
	"github.com/me/goaps/internal/lifecycle"
	"github.com/me/goaps/internal/logging"
	"github.com/me/goaps/internal/monitor"
	"github.com/me/goaps/internal/publish"
	"github.com/me/goaps/internal/result"
	"github.com/me/goaps/internal/server"
	"github.com/me/goaps/internal/setup"
	"github.com/me/goaps/internal/store"
)

func main() {
	cfg := config.DefaultServerConfig()

	configFile := flag.String("config", "", "Path to server config YAML")
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Database path (default ~/.goaps/goaps.db)")
	flag.StringVar(&cfg.Engine.URL, "engine-url", cfg.Engine.URL, "JSON-RPC endpoint of the optimization engine")
	flag.DurationVar(&cfg.Engine.CallTimeout, "engine-timeout", cfg.Engine.CallTimeout, "Per-call engine deadline")
	flag.DurationVar(&cfg.Monitor.StatusInterval, "status-interval", cfg.Monitor.StatusInterval, "Running-job status sweep interval")
	flag.DurationVar(&cfg.Monitor.TimeoutInterval, "timeout-interval", cfg.Monitor.TimeoutInterval, "Stale-job reclaim sweep interval")
	flag.DurationVar(&cfg.Monitor.JobTimeout, "job-timeout", cfg.Monitor.JobTimeout, "Fail RUNNING jobs older than this")
	flag.StringVar(&cfg.SetupTablePath, "setup-table", cfg.SetupTablePath, "Path to setup-compatibility YAML (empty uses built-in heuristic)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	// Flags applied after the file win, so re-parse on top of the merge.
	if *configFile != "" {
		if err := config.LoadFile(*configFile, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		flag.Parse()
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	// Resolve database path.
	dbPath := cfg.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot determine home directory: %v\n", err)
			os.Exit(1)
		}
		dir := filepath.Join(home, ".goaps")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", dir, err)
			os.Exit(1)
		}
		dbPath = filepath.Join(dir, "goaps.db")
	}

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", dbPath)

	// Engine adapter over JSON-RPC.
	rpc := engine.NewHTTPRPCCaller(engine.ClientConfig{URL: cfg.Engine.URL}, logger)
	eng := engine.NewClient(rpc, engine.Config{
		CallTimeout: cfg.Engine.CallTimeout,
		PingTimeout: cfg.Engine.PingTimeout,
	}, logger)

	// Setup-compatibility lookup.
	var lookup adjust.SetupLookup
	if cfg.SetupTablePath != "" {
		table, err := setup.Load(cfg.SetupTablePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load setup table: %v\n", err)
			os.Exit(1)
		}
		logger.Info("setup table loaded", "path", cfg.SetupTablePath)
		lookup = table
	} else {
		lookup = setup.Default()
	}

	results := result.NewProcessor(st, lookup, logger)
	jobs := lifecycle.NewManager(st, eng, results, lifecycle.SolverDefaults{
		Algorithm:    cfg.Solver.Algorithm,
		TimeBudgetMS: cfg.Solver.TimeBudgetMS,
		Seed:         cfg.Solver.Seed,
		LineCapacity: cfg.LineCapacity,
	}, logger)
	adjuster := adjust.NewEngine(st, lookup, cfg.LineCapacity, logger)
	publisher := publish.NewCoordinator(st, publish.NewLogEmitter(logger), logger)

	mon := monitor.NewMonitor(st, eng, results, monitor.Config{
		StatusInterval:  cfg.Monitor.StatusInterval,
		TimeoutInterval: cfg.Monitor.TimeoutInterval,
		HealthInterval:  cfg.Monitor.HealthInterval,
		JobTimeout:      cfg.Monitor.JobTimeout,
	}, logger)

	srv := server.New(cfg, st, jobs, adjuster, publisher, eng, logger,
		server.WithHealthReporter(mon))

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := mon.Start(ctx); err != nil && err != context.Canceled {
			logger.Error("monitor failed", "error", err)
		}
	}()

	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "engine", cfg.Engine.URL)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}

	// Let in-flight async submissions and engine cancels settle.
	jobs.Wait()
	logger.Info("server stopped")
}
