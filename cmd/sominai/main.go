// Command sominai runs the keyword crawl pipeline: the HTTP submission
// surface, the task-queue worker and the result reconciler. By default all
// three roles run in one process; -role splits them across processes.
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

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ViNN280801/SominAI-task/internal/alert"
	"github.com/ViNN280801/SominAI-task/internal/api"
	"github.com/ViNN280801/SominAI-task/internal/broker"
	"github.com/ViNN280801/SominAI-task/internal/config"
	"github.com/ViNN280801/SominAI-task/internal/extract"
	"github.com/ViNN280801/SominAI-task/internal/logging"
	"github.com/ViNN280801/SominAI-task/internal/reconciler"
	"github.com/ViNN280801/SominAI-task/internal/store"
	"github.com/ViNN280801/SominAI-task/internal/task"
	"github.com/ViNN280801/SominAI-task/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	role := flag.String("role", "all", "which roles to run: all, api, worker, reconciler")
	flag.Parse()

	if err := run(*configPath, *role); err != nil {
		fmt.Fprintf(os.Stderr, "sominai: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, role string) error {
	runAPI := role == "all" || role == "api"
	runWorker := role == "all" || role == "worker"
	runReconciler := role == "all" || role == "reconciler"
	if !runAPI && !runWorker && !runReconciler {
		return fmt.Errorf("unknown role %q", role)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Server.LogLevel)
	logger.Info("configuration loaded", "role", role, "port", cfg.Server.Port, "redis", cfg.Redis.Addr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared, long-lived connections: one Redis client for the status store,
	// one broker publisher. Both are opened here, verified, and closed on
	// shutdown; nothing connects lazily on first use.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	statusStore := store.New(rdb, logger.With("component", "store"))
	if err := statusStore.Ping(ctx); err != nil {
		return err
	}
	defer func() {
		if err := statusStore.Close(); err != nil {
			logger.Error("closing status store", "error", err)
		}
	}()
	logger.Info("connected to redis", "addr", cfg.Redis.Addr)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	pub := broker.NewPublisher(redisOpt, logger.With("component", "broker"))
	defer func() {
		if err := pub.Close(); err != nil {
			logger.Error("closing publisher", "error", err)
		}
	}()

	coordinator := task.NewCoordinator(statusStore, pub, task.CoordinatorConfig{
		TaskQueue:     cfg.Broker.TaskQueue,
		DefaultRegion: cfg.Crawler.DefaultRegion,
	}, logger.With("component", "coordinator"))

	errCh := make(chan error, 3)

	var workerConsumer *broker.Consumer
	if runWorker {
		engine := extract.NewAdLibrary(extract.Options{
			PageSize: cfg.Crawler.PageSize,
			MaxPages: cfg.Crawler.MaxPages,
		}, logger.With("component", "extract"))
		w := worker.New(engine, pub, coordinator, cfg.Broker.ResultQueue, logger.With("component", "worker"))

		workerConsumer = broker.NewConsumer(redisOpt, cfg.Broker.TaskQueue, cfg.Broker.Concurrency, logger.With("component", "worker"))
		workerConsumer.Handle(task.TypeCrawlTask, w.Handle)
		go func() { errCh <- workerConsumer.Run() }()
	}

	var resultConsumer *broker.Consumer
	if runReconciler {
		notifier := alert.NewNotifier(alert.Config{
			TelegramBotToken: cfg.Alerts.TelegramBotToken,
			TelegramChatID:   cfg.Alerts.TelegramChatID,
			MonitoringURL:    cfg.Alerts.MonitoringURL,
		}, logger.With("component", "alert"))
		rec := reconciler.New(coordinator, notifier, logger.With("component", "reconciler"))

		// The result queue has a single logical consumer, processed serially.
		resultConsumer = broker.NewConsumer(redisOpt, cfg.Broker.ResultQueue, 1, logger.With("component", "reconciler"))
		resultConsumer.Handle(task.TypeCrawlResult, rec.Handle)
		go func() { errCh <- resultConsumer.Run() }()
	}

	var httpServer *http.Server
	if runAPI {
		handler := api.NewHandler(coordinator, logger.With("component", "api"))
		httpServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: handler.Router(),
		}
		go func() {
			logger.Info("http server listening", "addr", httpServer.Addr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("component failed, shutting down", "error", err)
		}
	}

	if httpServer != nil {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(sctx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}
	if workerConsumer != nil {
		workerConsumer.Shutdown()
	}
	if resultConsumer != nil {
		resultConsumer.Shutdown()
	}

	logger.Info("shutdown complete")
	return nil
}
