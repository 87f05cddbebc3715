package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	configapi "peer_valuation/pkg/api/config"
	valuationapi "peer_valuation/pkg/api/valuation"
	"peer_valuation/pkg/core/app"
	"peer_valuation/pkg/core/config"
	"peer_valuation/pkg/core/logger"
)

var (
	configPath = flag.String("config", config.DefaultPath, "Configuration file path")
	addr       = flag.String("addr", "", "Listen address (overrides config)")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	// Load environment variables
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	level := cfg.Logging.Level
	if *verbose {
		level = "debug"
	}
	log := logger.Init(level)

	application, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer application.Close()

	router, err := newRouter(application)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid request defaults")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("address", cfg.Server.Addr).Msg("API server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Interrupt signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	log.Info().Msg("Server stopped")
}

func newRouter(a *app.App) (*mux.Router, error) {
	defaults, err := app.RequestDefaults(a.Config)
	if err != nil {
		return nil, err
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}).Methods(http.MethodGet)

	configapi.NewHandler(a.Agents).RegisterRoutes(r)

	var results valuationapi.ResultReader
	if a.Results != nil {
		results = a.Results
	}
	valuationapi.NewHandler(a.Orchestrator, results, defaults, a.Logger).RegisterRoutes(r)
	return r, nil
}
