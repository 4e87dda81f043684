package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fantasyrpg/server/api"
	"fantasyrpg/server/asset"
	"fantasyrpg/server/asset/sqlite"
	"fantasyrpg/server/auth"
	"fantasyrpg/server/cache"
	"fantasyrpg/server/combat"
	"fantasyrpg/server/config"
	"fantasyrpg/server/history"
	"fantasyrpg/server/leaderboard"
	"fantasyrpg/server/progression"
	"fantasyrpg/server/session"
	"fantasyrpg/server/srv"
	"fantasyrpg/server/telemetry"
)

func openStore(cfg config.Config) (asset.Store, func() error, error) {
	if cfg.Store == config.StoreSQLite {
		s, err := sqlite.Open(cfg.SQLitePath(), asset.DefaultCollection)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	s, err := asset.NewFileStore(filepath.Join(cfg.DataDir, "assets"), asset.DefaultCollection)
	if err != nil {
		return nil, nil, err
	}
	return s, func() error { return nil }, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Exitf("config: %v", err)
	}
	expMode, err := combat.ParseExpMode(cfg.ExpMode)
	if err != nil {
		config.Exitf("config: %v", err)
	}
	order, err := leaderboard.ParseOrdering(cfg.LeaderboardOrder)
	if err != nil {
		config.Exitf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.ServiceName, cfg.OTelEndpoint, cfg.OTelEnabled)
	if err != nil {
		log.Printf("[main] tracing disabled: %v", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		config.Exitf("store: %v", err)
	}
	defer func() { _ = closeStore() }()

	fileCache, err := cache.NewFile(filepath.Join(cfg.DataDir, "cache"))
	if err != nil {
		config.Exitf("cache: %v", err)
	}
	hist := history.NewStore(fileCache, cfg.HistoryTTL)
	table := &progression.FileSource{Path: cfg.ExpTable}
	if _, err := table.Load(); err != nil {
		log.Printf("[main] experience table %q: %v", cfg.ExpTable, err)
	}
	rng, err := combat.NewRoller()
	if err != nil {
		config.Exitf("rng: %v", err)
	}
	pacer := session.NewTimerPacer(cfg.AttackDelay)

	board := leaderboard.NewService(store, cache.NewMemory(), cfg.CacheTTL, table, order)
	hub := srv.NewHub(func() *session.Session {
		return session.New(session.Deps{
			Store:   store,
			History: hist,
			Table:   table,
			Rand:    rng,
			Pacer:   pacer,
			ExpMode: expMode,
		})
	}, board)

	a, err := auth.NewAuth(cfg.DataDir, cfg.TokenTTL)
	if err != nil {
		config.Exitf("auth: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", a.HandleRegister)
	mux.HandleFunc("/api/login", a.HandleLogin)
	(&api.Handlers{Board: board, Table: table, Store: store}).Register(mux, a.RequireAuth)
	mux.HandleFunc("/ws", hub.Handler(a.ParseToken))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })

	s := &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	log.Printf("[main] listening on %s (store=%s, exp=%s, order=%s)", cfg.Addr, cfg.Store, expMode, order)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
