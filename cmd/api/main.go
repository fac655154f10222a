package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jamesbond008/mungers-mind/internal/advisor"
	"github.com/jamesbond008/mungers-mind/internal/config"
	"github.com/jamesbond008/mungers-mind/internal/kv"
	"github.com/jamesbond008/mungers-mind/internal/server"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx := context.Background()

	var store kv.Store
	if cfg.DatabaseURL != "" {
		pg, err := kv.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres connect failed: %v", err)
		}
		store = pg
	} else {
		lite, err := kv.OpenSQLite(cfg.StateDir)
		if err != nil {
			log.Fatalf("sqlite open failed: %v", err)
		}
		store = lite
	}
	defer store.Close()

	var advisorClient advisor.Client
	if cfg.AdvisorUseMock {
		log.Printf("advisor running in mock mode")
		advisorClient = advisor.MockClient{}
	} else {
		gemini, err := advisor.NewGeminiClient(ctx, cfg)
		if err != nil {
			log.Fatalf("gemini client init failed: %v", err)
		}
		advisorClient = gemini
	}

	app := server.New(cfg, store, advisorClient)
	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("mungers-mind api listening on http://localhost:%s", cfg.AppPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
