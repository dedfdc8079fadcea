package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ViNN280801/SominAI-task/internal/task"
)

type fakeEngine struct {
	mu    sync.Mutex
	ads   []map[string]any
	err   error
	calls int
}

func (e *fakeEngine) Search(_ context.Context, _, _ string) ([]map[string]any, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return e.ads, e.err
}

type capturedPublish struct {
	queue    string
	taskType string
	result   task.Result
}

type fakePublisher struct {
	mu        sync.Mutex
	published []capturedPublish
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, queue, taskType string, payload any) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, capturedPublish{queue, taskType, payload.(task.Result)})
	return nil
}

type claim struct {
	id     string
	status task.Status
}

type fakeClaimer struct {
	mu     sync.Mutex
	claims []claim
	err    error
}

func (c *fakeClaimer) Update(_ context.Context, id string, status task.Status, _ any, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claims = append(c.claims, claim{id, status})
	return c.err
}

func newTestWorker(engine *fakeEngine, pub *fakePublisher, claimer *fakeClaimer) *Worker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(engine, pub, claimer, "crawler_results", logger)
}

func mustPayload(t *testing.T, msg task.Message) []byte {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	return b
}

func TestHandle_Success(t *testing.T) {
	engine := &fakeEngine{ads: []map[string]any{{"title": "ad one"}, {"title": "ad two"}}}
	pub := &fakePublisher{}
	claimer := &fakeClaimer{}
	w := newTestWorker(engine, pub, claimer)

	err := w.Handle(context.Background(), mustPayload(t, task.Message{
		TaskID: "t1", Keyword: "acme", Region: "US",
	}))
	require.NoError(t, err)

	require.Len(t, claimer.claims, 1)
	assert.Equal(t, claim{"t1", task.StatusInProgress}, claimer.claims[0])

	require.Len(t, pub.published, 1)
	got := pub.published[0]
	assert.Equal(t, "crawler_results", got.queue)
	assert.Equal(t, task.TypeCrawlResult, got.taskType)
	assert.Equal(t, "t1", got.result.TaskID)
	assert.Equal(t, task.StatusCompleted, got.result.Status)
	assert.Equal(t, engine.ads, got.result.Result)
	assert.Empty(t, got.result.Error)
}

func TestHandle_EngineFailureBecomesFailedResult(t *testing.T) {
	engine := &fakeEngine{err: errors.New("fetch exploded")}
	pub := &fakePublisher{}
	w := newTestWorker(engine, pub, &fakeClaimer{})

	err := w.Handle(context.Background(), mustPayload(t, task.Message{TaskID: "t1", Keyword: "acme"}))
	require.NoError(t, err)

	require.Len(t, pub.published, 1)
	got := pub.published[0].result
	assert.Equal(t, "t1", got.TaskID)
	assert.Equal(t, task.StatusFailed, got.Status)
	assert.Equal(t, "fetch exploded", got.Error)
	assert.Nil(t, got.Result)
}

func TestHandle_MissingKeywordNeverReachesEngine(t *testing.T) {
	engine := &fakeEngine{}
	pub := &fakePublisher{}
	claimer := &fakeClaimer{}
	w := newTestWorker(engine, pub, claimer)

	err := w.Handle(context.Background(), mustPayload(t, task.Message{TaskID: "t1"}))
	require.NoError(t, err)

	assert.Zero(t, engine.calls)
	assert.Empty(t, claimer.claims)
	require.Len(t, pub.published, 1)
	got := pub.published[0].result
	assert.Equal(t, "t1", got.TaskID)
	assert.Equal(t, task.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "invalid message format")
}

func TestHandle_MissingTaskIDUsesUnknownSentinel(t *testing.T) {
	engine := &fakeEngine{}
	pub := &fakePublisher{}
	w := newTestWorker(engine, pub, &fakeClaimer{})

	err := w.Handle(context.Background(), mustPayload(t, task.Message{Keyword: "acme"}))
	require.NoError(t, err)

	assert.Zero(t, engine.calls)
	require.Len(t, pub.published, 1)
	assert.Equal(t, task.UnknownTaskID, pub.published[0].result.TaskID)
	assert.Equal(t, task.StatusFailed, pub.published[0].result.Status)
}

func TestHandle_GarbagePayload(t *testing.T) {
	engine := &fakeEngine{}
	pub := &fakePublisher{}
	w := newTestWorker(engine, pub, &fakeClaimer{})

	err := w.Handle(context.Background(), []byte("{not json"))
	require.NoError(t, err)

	assert.Zero(t, engine.calls)
	require.Len(t, pub.published, 1)
	assert.Equal(t, task.UnknownTaskID, pub.published[0].result.TaskID)
}

func TestHandle_ClaimFailureIsNotFatal(t *testing.T) {
	engine := &fakeEngine{ads: []map[string]any{{"title": "ad one"}}}
	pub := &fakePublisher{}
	claimer := &fakeClaimer{err: errors.New("store down")}
	w := newTestWorker(engine, pub, claimer)

	err := w.Handle(context.Background(), mustPayload(t, task.Message{TaskID: "t1", Keyword: "acme"}))
	require.NoError(t, err)

	require.Len(t, pub.published, 1)
	assert.Equal(t, task.StatusCompleted, pub.published[0].result.Status)
}

func TestHandle_PublishFailureStillAcks(t *testing.T) {
	engine := &fakeEngine{ads: []map[string]any{{"title": "ad one"}}}
	pub := &fakePublisher{err: errors.New("broker down")}
	w := newTestWorker(engine, pub, &fakeClaimer{})

	// The worker's contract is one ack per delivery even when the result
	// could not be published; the error is logged, never returned.
	err := w.Handle(context.Background(), mustPayload(t, task.Message{TaskID: "t1", Keyword: "acme"}))
	require.NoError(t, err)
	assert.Empty(t, pub.published)
}
