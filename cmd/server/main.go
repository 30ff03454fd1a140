package main

import (
	"context"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"foodcourt/internal/api"
	"foodcourt/internal/auth"
	"foodcourt/internal/config"
	"foodcourt/internal/db"
	"foodcourt/internal/event"
	"foodcourt/internal/logger"
	"foodcourt/internal/memstore"
	"foodcourt/internal/metrics"
	"foodcourt/internal/order"
)

// storage is everything the process needs from a backing store.
type storage interface {
	api.Store
	auth.Store
}

// Main entry point: builds the whole object graph explicitly and serves.
func main() {
	ctx := context.Background()
	cfg := config.Load()
	log := logger.New()

	var store storage
	if cfg.InMem {
		log.Info("using in-memory store")
		store = memstore.New()
	} else {
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("connect to database", "err", err)
			os.Exit(1)
		}
		defer database.Close()
		store = database
	}

	hub := event.NewHub()
	estimator := order.NewEstimator(store)
	coordinator := event.NewCoordinator(store, estimator, hub, log)
	machine := order.NewMachine(store, coordinator)
	authService := auth.NewService(store, cfg.JWTSecret)
	handler := api.NewHandler(store, machine, estimator, hub, authService, log)

	metrics.Init(hub.ListenerCount)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(api.RequestLogger(log))

	handler.Routes(r)
	r.Handle("/metrics", promhttp.Handler())

	log.Info("starting server", "addr", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, r); err != nil {
		log.Error("server failed", "err", err)
		os.Exit(1)
	}
}
