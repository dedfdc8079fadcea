// Package broker wraps asynq with the two guarantees the pipeline depends
// on: messages are durable in Redis until acknowledged, and a message is
// acknowledged only when its handler returns nil. A process crash mid-handler
// leaves the message unacked and it is redelivered (at-least-once);
// application-level errors are converted to failure results by the handlers
// themselves and never bubble up, so poison messages are not redelivered.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

var (
	// ErrConnection marks an unreachable broker. Fatal at the operation
	// boundary; reconnection is the transport client's own concern.
	ErrConnection = errors.New("broker connection failure")

	// ErrMessage marks a serialization or enqueue failure. The caller must
	// treat the message as not delivered.
	ErrMessage = errors.New("broker message failure")
)

// Handler processes one raw message body. Returning nil acknowledges the
// message; returning an error leaves it for redelivery.
type Handler func(ctx context.Context, payload []byte) error

// Publisher enqueues durable messages. It is opened once at process start
// and closed on shutdown.
type Publisher struct {
	client *asynq.Client
	logger *slog.Logger
}

func NewPublisher(redisOpt asynq.RedisClientOpt, logger *slog.Logger) *Publisher {
	return &Publisher{client: asynq.NewClient(redisOpt), logger: logger}
}

// Publish JSON-encodes payload and enqueues it on the named queue. There is
// no partial-success state: on error the message was not delivered.
func (p *Publisher) Publish(ctx context.Context, queue, taskType string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrMessage, taskType, err)
	}
	info, err := p.client.EnqueueContext(ctx, asynq.NewTask(taskType, b), asynq.Queue(queue))
	if err != nil {
		p.logger.Error("publish failed", "queue", queue, "type", taskType, "error", err)
		return fmt.Errorf("%w: publish %s to %q: %v", ErrMessage, taskType, queue, err)
	}
	p.logger.Debug("message published", "queue", info.Queue, "type", taskType, "id", info.ID)
	return nil
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

// Consumer serves exactly one queue. Each registered Handler receives the
// raw message body; messages on the queue with an unregistered type fail and
// stay with the broker.
type Consumer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	queue  string
	logger *slog.Logger
}

// NewConsumer builds a consumer bound to queue. Concurrency is the number of
// messages processed in parallel; 1 preserves per-connection serial
// processing.
func NewConsumer(redisOpt asynq.RedisClientOpt, queue string, concurrency int, logger *slog.Logger) *Consumer {
	if concurrency <= 0 {
		concurrency = 1
	}
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
		Logger:      slogAdapter{logger.With("queue", queue)},
	})
	return &Consumer{
		server: server,
		mux:    asynq.NewServeMux(),
		queue:  queue,
		logger: logger,
	}
}

// Handle registers h for messages of the given type. Must be called before
// Run.
func (c *Consumer) Handle(taskType string, h Handler) {
	c.mux.HandleFunc(taskType, func(ctx context.Context, t *asynq.Task) error {
		return h(ctx, t.Payload())
	})
}

// Run consumes the queue until Shutdown is called. It blocks; run it on its
// own goroutine.
func (c *Consumer) Run() error {
	c.logger.Info("consuming queue", "queue", c.queue)
	if err := c.server.Run(c.mux); err != nil {
		return fmt.Errorf("%w: consume %q: %v", ErrConnection, c.queue, err)
	}
	return nil
}

// Shutdown waits for in-flight handlers and stops the consumer.
func (c *Consumer) Shutdown() {
	c.server.Shutdown()
}

// slogAdapter satisfies asynq.Logger so the broker's internal chatter lands
// in the same structured log as everything else.
type slogAdapter struct {
	l *slog.Logger
}

func (a slogAdapter) Debug(args ...any) { a.l.Debug(fmt.Sprint(args...)) }
func (a slogAdapter) Info(args ...any)  { a.l.Info(fmt.Sprint(args...)) }
func (a slogAdapter) Warn(args ...any)  { a.l.Warn(fmt.Sprint(args...)) }
func (a slogAdapter) Error(args ...any) { a.l.Error(fmt.Sprint(args...)) }
func (a slogAdapter) Fatal(args ...any) { a.l.Error(fmt.Sprint(args...)) }
