package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"git.sr.ht/~jakintosh/sso/internal/api"
	"git.sr.ht/~jakintosh/sso/internal/clients"
	"git.sr.ht/~jakintosh/sso/internal/config"
	"git.sr.ht/~jakintosh/sso/internal/database"
	"git.sr.ht/~jakintosh/sso/internal/provider"
	"git.sr.ht/~jakintosh/sso/internal/tokenstore"
	"git.sr.ht/~jakintosh/sso/pkg/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	log.SetLevel(cfg.LogLevel)

	db, err := database.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	var tokens provider.TokenStore = db.TokenStore()
	if cfg.RedisURL != "" {
		redisStore, err := tokenstore.NewRedisStore(tokenstore.Config{URL: cfg.RedisURL})
		if err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		defer redisStore.Close()
		tokens = redisStore
		log.Info("using redis token store")
	}

	registry, err := clients.Load(cfg.ClientsDir, clients.WithLogger(log))
	if err != nil {
		log.Fatalf("failed to load clients: %v", err)
	}
	if err := registry.Watch(); err != nil {
		log.Fatalf("failed to watch clients directory: %v", err)
	}
	defer registry.Close()

	p := provider.New(
		db.IdentityStore(),
		tokens,
		db.ContextStore(),
		registry,
		provider.ParsePasswordMode(cfg.PasswordMode),
		log,
	)
	srv := server.New(
		provider.Build(p, cfg.LoginURL, cfg.RegisterURL),
		server.WithLogger(log),
	)
	log.WithField("calls", srv.EnabledCalls()).Info("sso server configured")

	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a := api.New(srv, api.WithLogger(log), api.WithRegistry(metrics))

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      a.Router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Addr).Info("starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, stopping server")
	case err := <-serverErr:
		log.WithError(err).Error("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
	log.Info("server stopped")
}
