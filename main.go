package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/neocomx/CommentQueueService/api"
	"github.com/neocomx/CommentQueueService/config"
	"github.com/neocomx/CommentQueueService/metrics"
	"github.com/neocomx/CommentQueueService/reddit"
	"github.com/neocomx/CommentQueueService/task"
	"github.com/neocomx/CommentQueueService/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("no .env file found, using system environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	store := task.NewStore(cfg.HistoryLimit)
	store.SetSession(task.Session{MinWait: cfg.DefaultMinWait, MaxWait: cfg.DefaultMaxWait})

	executor := reddit.NewClient(cfg.RequestTimeout)
	w := worker.New(store, executor, worker.NewUniformDelay(), cfg.IdleGrace)

	if _, err := metrics.NewExporter("commentqueue", store, prometheus.DefaultRegisterer); err != nil {
		log.Fatal().Err(err).Msg("failed to register metrics")
	}

	server := api.NewServer(store, w, cfg.DefaultMinWait, cfg.DefaultMaxWait)
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: mux,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-quit
	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	// State is volatile: queued and in-flight comments are abandoned here.
}
