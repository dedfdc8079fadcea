package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ViNN280801/SominAI-task/internal/alert"
	"github.com/ViNN280801/SominAI-task/internal/broker"
	"github.com/ViNN280801/SominAI-task/internal/reconciler"
	"github.com/ViNN280801/SominAI-task/internal/store"
	"github.com/ViNN280801/SominAI-task/internal/task"
	"github.com/ViNN280801/SominAI-task/internal/worker"
)

type scriptedEngine struct {
	ads map[string][]map[string]any
	err error
}

func (e *scriptedEngine) Search(_ context.Context, keyword, _ string) ([]map[string]any, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.ads[keyword], nil
}

type pipeline struct {
	coordinator *task.Coordinator
}

func startPipeline(t *testing.T, engine *scriptedEngine) *pipeline {
	t.Helper()

	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run: %v", err)
	}
	t.Cleanup(s.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	redisOpt := asynq.RedisClientOpt{Addr: s.Addr()}

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	statusStore := store.New(rdb, logger)
	t.Cleanup(func() { _ = statusStore.Close() })

	pub := broker.NewPublisher(redisOpt, logger)
	t.Cleanup(func() { _ = pub.Close() })

	coordinator := task.NewCoordinator(statusStore, pub, task.CoordinatorConfig{
		TaskQueue:     "crawler_tasks",
		DefaultRegion: "BE",
	}, logger)

	w := worker.New(engine, pub, coordinator, "crawler_results", logger)
	workerConsumer := broker.NewConsumer(redisOpt, "crawler_tasks", 2, logger)
	workerConsumer.Handle(task.TypeCrawlTask, w.Handle)
	go func() { _ = workerConsumer.Run() }()
	t.Cleanup(workerConsumer.Shutdown)

	notifier := alert.NewNotifier(alert.Config{}, logger)
	rec := reconciler.New(coordinator, notifier, logger)
	resultConsumer := broker.NewConsumer(redisOpt, "crawler_results", 1, logger)
	resultConsumer.Handle(task.TypeCrawlResult, rec.Handle)
	go func() { _ = resultConsumer.Run() }()
	t.Cleanup(resultConsumer.Shutdown)

	return &pipeline{coordinator: coordinator}
}

func pollUntil(t *testing.T, timeout time.Duration, f func() (bool, error)) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		ok, err := f()
		if err != nil {
			t.Fatalf("poll: %v", err)
		}
		if ok {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestPipeline_RoundTripCompleted(t *testing.T) {
	engine := &scriptedEngine{ads: map[string][]map[string]any{
		"acme": {{"title": "ad one"}, {"title": "ad two"}},
	}}
	p := startPipeline(t, engine)
	ctx := context.Background()

	id, err := p.coordinator.Create(ctx, "acme", "US")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Immediately after submission the record must already exist as queued
	// or have moved further along; never "not found".
	if _, err := p.coordinator.Status(ctx, id); err != nil {
		t.Fatalf("status right after create: %v", err)
	}

	pollUntil(t, 5*time.Second, func() (bool, error) {
		rec, err := p.coordinator.Status(ctx, id)
		if err != nil {
			return false, err
		}
		return rec.Status == task.StatusCompleted, nil
	})

	rec, err := p.coordinator.Status(ctx, id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	ads, ok := rec.Result.([]any)
	if !ok {
		t.Fatalf("result is not a list: %#v", rec.Result)
	}
	if len(ads) != 2 {
		t.Fatalf("want 2 ads, got %d", len(ads))
	}
	if rec.Error != "" {
		t.Fatalf("unexpected error on completed task: %q", rec.Error)
	}
}

func TestPipeline_RoundTripFailed(t *testing.T) {
	engine := &scriptedEngine{err: errors.New("scrape blocked")}
	p := startPipeline(t, engine)
	ctx := context.Background()

	id, err := p.coordinator.Create(ctx, "acme", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	pollUntil(t, 5*time.Second, func() (bool, error) {
		rec, err := p.coordinator.Status(ctx, id)
		if err != nil {
			return false, err
		}
		return rec.Status == task.StatusFailed, nil
	})

	rec, err := p.coordinator.Status(ctx, id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if rec.Error != "scrape blocked" {
		t.Fatalf("want engine error text, got %q", rec.Error)
	}
	if rec.Result != nil {
		t.Fatalf("failed task must not carry a result: %#v", rec.Result)
	}
	if rec.Region != "BE" {
		t.Fatalf("default region not applied: %q", rec.Region)
	}
}

func TestPipeline_ManySubmissionsStayIsolated(t *testing.T) {
	engine := &scriptedEngine{ads: map[string][]map[string]any{}}
	for _, kw := range []string{"alpha", "beta", "gamma", "delta"} {
		engine.ads[kw] = []map[string]any{{"title": "ad for " + kw}}
	}
	p := startPipeline(t, engine)
	ctx := context.Background()

	ids := map[string]string{}
	for kw := range engine.ads {
		id, err := p.coordinator.Create(ctx, kw, "US")
		if err != nil {
			t.Fatalf("create %s: %v", kw, err)
		}
		ids[kw] = id
	}

	for kw, id := range ids {
		pollUntil(t, 5*time.Second, func() (bool, error) {
			rec, err := p.coordinator.Status(ctx, id)
			if err != nil {
				return false, err
			}
			return rec.Status == task.StatusCompleted, nil
		})
		rec, err := p.coordinator.Status(ctx, id)
		if err != nil {
			t.Fatalf("status %s: %v", kw, err)
		}
		if rec.Keyword != kw {
			t.Fatalf("cross-task bleed: id %s keyword %q want %q", id, rec.Keyword, kw)
		}
	}
}
