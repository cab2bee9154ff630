package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crashengine/api"
	"crashengine/config"
	"crashengine/db"
	"crashengine/engine"
	"crashengine/events"
	"crashengine/logger"
	"crashengine/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("❌ Invalid configuration", "error", err)
	}
	log := logger.Init(logger.Options{Level: logger.ParseLevel(cfg.Server.LogLevel)})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := map[string]api.HealthCheck{}

	store, closeStore, err := openStore(ctx, cfg.Server, checks)
	if err != nil {
		logger.Fatal("❌ Failed to open store", "store", cfg.Server.Store, "error", err)
	}
	defer closeStore()

	var sinks []engine.ResultSink

	// The archive and the event bus are optional; the game runs without them.
	var archive api.Archive
	if cfg.Server.DatabaseURL != "" {
		a, err := db.NewArchive(ctx, cfg.Server.DatabaseURL)
		if err != nil {
			log.Warn("⚠️  PostgreSQL initialization failed, round archive disabled", "error", err)
		} else {
			defer a.Close()
			archive = a
			sinks = append(sinks, a)
			checks["postgres"] = a.HealthCheck
		}
	}

	if cfg.Server.NATSURL != "" {
		emitter, err := events.NewEmitter(cfg.Server.NATSURL, cfg.Server.NATSSubject)
		if err != nil {
			log.Warn("⚠️  NATS connection failed, round events disabled", "error", err)
		} else {
			defer emitter.Close()
			sinks = append(sinks, emitter)
			log.Info("✅ Publishing rounds to NATS", "subject", cfg.Server.NATSSubject)
		}
	}

	hub := ws.NewHub(log)
	game := engine.New(cfg.Game, engine.Options{
		Scheduler: engine.RealScheduler{},
		Store:     store,
		Display:   hub,
		Sinks:     sinks,
		Logger:    log,
	})
	hub.Attach(game)
	go hub.Run(ctx)

	if err := game.Start(ctx); err != nil {
		logger.Fatal("❌ Failed to start engine", "error", err)
	}
	defer game.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	api.NewHandler(game, archive, checks, log).Register(mux)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("🚀 Server starting", "addr", cfg.Server.Addr)
		log.Info("📡 WebSocket: /ws (place_bet, cash_out, subscribe, sync)")
		log.Info("🔌 API: GET /api/crash, GET /api/crash/{id}, POST /api/verify, GET /api/state, POST /api/bet, POST /api/cashout, GET /api/health")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("❌ Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("❌ Server shutdown failed", "error", err)
	}
}

func openStore(ctx context.Context, cfg config.Server, checks map[string]api.HealthCheck) (engine.Store, func(), error) {
	switch cfg.Store {
	case "", "memory":
		slog.Warn("⚠️  Using in-memory store, balance resets on restart")
		return db.NewMemoryStore(), func() {}, nil

	case "badger":
		s, err := db.NewBadgerStore(cfg.BadgerPath, "crash")
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case "redis":
		s, err := db.NewRedisStore(ctx, db.RedisOptions{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "crash",
		})
		if err != nil {
			return nil, nil, err
		}
		checks["redis"] = s.HealthCheck
		return s, func() { _ = s.Close() }, nil

	default:
		return nil, nil, errors.New("unknown store " + cfg.Store)
	}
}
