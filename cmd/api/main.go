package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calebross/markethub/internal/cache"
	"github.com/calebross/markethub/internal/config"
	"github.com/calebross/markethub/internal/datastore"
	"github.com/calebross/markethub/internal/db"
	httpx "github.com/calebross/markethub/internal/http"
	"github.com/calebross/markethub/internal/identity"
	"github.com/calebross/markethub/internal/observability"
	"github.com/calebross/markethub/internal/validate"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	validate.RegisterBindings()

	// tracing is opt-in via the OTLP endpoint
	if cfg.OTelEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(context.Background(), "markethub", cfg.OTelEndpoint)

		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}

		defer func() {
			ctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(ctx)
		}()
	}

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	// identity provider
	var provider identity.Provider

	switch cfg.IdentityProvider {
	case "local":
		provider = identity.NewLocal(cfg.SecretKey, time.Hour)
	default:
		provider = identity.NewHosted(cfg.AuthDomain, cfg.APIKey, cfg.SecretKey)
	}

	// data store
	var store datastore.Store
	var ping func() error

	switch cfg.DatastoreBackend {
	case "postgres":
		pool, err := db.NewPool(cfg.PostgresURL)

		if err != nil {
			log.Error("postgres pool init failed", "err", err)
			os.Exit(1)
		}

		defer pool.Close()

		store = datastore.NewPostgres(pool, prom)
		ping = func() error {
			ctx, cancel := config.WithTimeout(1 * time.Second)
			defer cancel()
			return pool.Ping(ctx)
		}
	case "memory":
		store = datastore.NewMemory()
	default:
		store = datastore.NewREST(cfg.DBURL)
	}

	// response cache
	var respCache cache.Cache

	switch cfg.CacheBackend {
	case "redis":
		rc := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

		defer rc.Close()

		respCache = rc
	default:
		respCache = cache.NewMemory()
	}

	// set up the router with everything injected
	router := httpx.NewRouter(cfg, provider, store, respCache, prom, ping)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// start server using a concurrent go-routine driven anonymous function.

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)

		defer cancel()

		err := srv.Shutdown(ctx)

		if err != nil {
			log.Error("graceful shutdown failed", "err", err)

			return
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
