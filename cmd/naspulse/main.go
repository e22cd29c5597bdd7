package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/naspulse/internal/aggregate"
	"github.com/HerbHall/naspulse/internal/auth"
	"github.com/HerbHall/naspulse/internal/command"
	"github.com/HerbHall/naspulse/internal/config"
	"github.com/HerbHall/naspulse/internal/dsm"
	"github.com/HerbHall/naspulse/internal/event"
	"github.com/HerbHall/naspulse/internal/history"
	"github.com/HerbHall/naspulse/internal/sched"
	"github.com/HerbHall/naspulse/internal/server"
	"github.com/HerbHall/naspulse/internal/source"
	"github.com/HerbHall/naspulse/internal/store"
	"github.com/HerbHall/naspulse/internal/version"
	"github.com/HerbHall/naspulse/internal/ws"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "hash-key":
			runHashKey(os.Args[2:])
			return
		case "version":
			fmt.Println("naspulse", version.Short())
			return
		}
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("naspulse", version.Short())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("NASPulse starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("source", f))
	} else {
		logger.Warn("no configuration file found, using defaults")
	}

	// Appliance client.
	dsmCfg := dsm.DefaultConfig()
	if err := viperCfg.UnmarshalKey("dsm", &dsmCfg); err != nil {
		logger.Fatal("invalid dsm configuration", zap.Error(err))
	}
	if dsmCfg.Host == "" {
		logger.Fatal("dsm.host is required (set NASPULSE_DSM_HOST or dsm.host in config)")
	}
	client := dsm.NewClient(dsmCfg, logger.Named("dsm"))

	// Sources.
	srcCfg := source.DefaultConfig()
	if err := viperCfg.UnmarshalKey("sources", &srcCfg); err != nil {
		logger.Fatal("invalid sources configuration", zap.Error(err))
	}
	pollers := source.Build(client, dsmCfg.Host, srcCfg)
	if len(pollers) == 0 {
		logger.Fatal("all sources are disabled")
	}
	defs := make([]source.Definition, len(pollers))
	for i, p := range pollers {
		defs[i] = p.Definition()
	}
	logger.Info("sources built", zap.Int("count", len(pollers)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := event.NewBus(logger.Named("event"))

	agg := aggregate.New(defs, viperCfg.GetInt("aggregate.failure_threshold"), bus, logger)

	// Poll history, persisted in SQLite.
	var (
		hist *history.Store
		db   *store.Store
	)
	if viperCfg.GetBool("history.enabled") {
		dbPath := viperCfg.GetString("history.path")
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				logger.Fatal("failed to create data directory", zap.Error(err))
			}
		}
		db, err = store.Open(dbPath)
		if err != nil {
			logger.Fatal("failed to open database", zap.Error(err))
		}
		defer db.Close()

		histCfg := history.DefaultConfig()
		if err := viperCfg.UnmarshalKey("history", &histCfg); err != nil {
			logger.Fatal("invalid history configuration", zap.Error(err))
		}
		hist, err = history.New(ctx, db, histCfg, logger)
		if err != nil {
			logger.Fatal("failed to initialize history", zap.Error(err))
		}
		stopRecording := hist.Record(ctx, bus)
		defer stopRecording()
		logger.Info("history initialized",
			zap.String("path", dbPath),
			zap.Duration("retention", histCfg.Retention),
		)
	}

	// Auth: API key exchange for short-lived JWTs.
	authCfg := auth.DefaultConfig()
	if err := viperCfg.UnmarshalKey("auth", &authCfg); err != nil {
		logger.Fatal("invalid auth configuration", zap.Error(err))
	}
	if authCfg.JWTSecret == "" {
		// Generate an ephemeral secret -- tokens won't survive restarts.
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			logger.Fatal("failed to generate JWT secret", zap.Error(err))
		}
		authCfg.JWTSecret = hex.EncodeToString(b)
		logger.Info("using auto-generated JWT secret (set auth.jwt_secret in config to persist sessions across restarts)")
	}
	if authCfg.APIKeyHash == "" {
		logger.Warn("auth.api_key_hash is not set; token exchange will reject every key (run `naspulse hash-key` to create one)")
	}
	authService, err := auth.NewService(authCfg)
	if err != nil {
		logger.Fatal("failed to initialize auth service", zap.Error(err))
	}

	// Scheduler.
	schedCfg := sched.DefaultConfig()
	if err := viperCfg.UnmarshalKey("sched", &schedCfg); err != nil {
		logger.Fatal("invalid sched configuration", zap.Error(err))
	}
	scheduler := sched.New(pollers, schedCfg, agg, logger)

	// WebSocket stream. Connected clients mark the engine as observed.
	wsHandler := ws.NewHandler(authService.Tokens(), bus, agg.Snapshot, func(n int) {
		scheduler.SetObserved(n > 0)
	}, logger.Named("ws"))

	// HTTP API.
	exec := command.NewExecutor(client, logger)
	api := server.NewAPI(agg, hist, exec, scheduler, logger)

	srvCfg := server.DefaultConfig()
	if err := viperCfg.UnmarshalKey("server", &srvCfg); err != nil {
		logger.Fatal("invalid server configuration", zap.Error(err))
	}

	ready := server.ReadinessChecker(func(ctx context.Context) error {
		if db != nil {
			return db.DB().PingContext(ctx)
		}
		return nil
	})

	tokenRoute := server.RouteFunc(func(mux *http.ServeMux) {
		mux.HandleFunc("POST /api/v1/auth/token", auth.TokenHandler(authService, logger.Named("auth")))
	})

	srv := server.New(srvCfg, logger, ready,
		auth.Middleware(authService.Tokens()),
		api, wsHandler, tokenRoute,
	)

	scheduler.Start(ctx)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("NASPulse ready", zap.String("addr", srvCfg.Addr()))

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	scheduler.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	client.Logout(shutdownCtx)

	logger.Info("NASPulse stopped")
}

// runHashKey prints the bcrypt hash of an API key, for auth.api_key_hash.
func runHashKey(args []string) {
	fs := flag.NewFlagSet("hash-key", flag.ExitOnError)
	fs.Parse(args)

	key := fs.Arg(0)
	if key == "" {
		fmt.Fprintln(os.Stderr, "usage: naspulse hash-key <api-key>")
		os.Exit(2)
	}

	hash, err := auth.HashAPIKey(key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash key: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
