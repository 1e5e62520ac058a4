package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/tgdl-core/internal/analytics"
	"github.com/veranemoloko/tgdl-core/internal/cdn"
	"github.com/veranemoloko/tgdl-core/internal/domain"
	errpkg "github.com/veranemoloko/tgdl-core/internal/errors"
	"github.com/veranemoloko/tgdl-core/internal/repository"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeCDN struct {
	mu            sync.Mutex
	collections   []cdn.CollectionRequest
	collectionErr error
	missing       map[string]bool
	noURL         map[string]bool
}

func (f *fakeCDN) GetFileURL(_ context.Context, path, principalID string, _ time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.noURL[path] {
		return "", nil
	}
	return "https://cdn.test/files/" + path + "?token=" + principalID, nil
}

func (f *fakeCDN) CheckAvailability(_ context.Context, paths []string, _ string) []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(paths))
	for i, p := range paths {
		out[i] = !f.missing[p]
	}
	return out
}

func (f *fakeCDN) CreateCollection(_ context.Context, req cdn.CollectionRequest) (*cdn.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections = append(f.collections, req)
	if f.collectionErr != nil {
		return nil, f.collectionErr
	}
	id := fmt.Sprintf("col-%d", len(f.collections))
	return &cdn.Collection{ID: id, Name: req.Name, URL: "https://cdn.test/c/" + id, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeCDN) HealthCheck(context.Context) (*cdn.HealthStatus, error) {
	return &cdn.HealthStatus{Status: "ok"}, nil
}

func (f *fakeCDN) collectionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.collections)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []analytics.Event
}

func (r *recordingEmitter) Emit(e analytics.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingEmitter) ofType(t analytics.EventType) []analytics.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []analytics.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc    *BatchService
	cdn    *fakeCDN
	events *recordingEmitter
	clock  *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := repository.NewFileStore("")
	require.NoError(t, err)

	f := &fixture{
		cdn:    &fakeCDN{missing: map[string]bool{}, noURL: map[string]bool{}},
		events: &recordingEmitter{},
		clock:  &clock{now: time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)},
	}
	f.svc = NewBatchService(store, f.cdn, f.events, Options{Now: f.clock.Now}, newTestLogger())
	return f
}

func (f *fixture) createBatch(t *testing.T, n int, archive bool) *domain.BatchResponse {
	t.Helper()
	req := domain.CreateBatchRequest{UserID: "1001", Tier: domain.TierPremium, ArchiveDelivery: archive}
	for i := 1; i <= n; i++ {
		req.Items = append(req.Items, domain.TaskSpec{URL: fmt.Sprintf("https://www.youtube.com/watch?v=u%d", i)})
	}
	resp, err := f.svc.CreateBatch(context.Background(), req)
	require.NoError(t, err)
	return resp
}

func (f *fixture) complete(t *testing.T, id uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.StartTask(ctx, id)
	require.NoError(t, err)
	_, err = f.svc.CompleteTask(ctx, id, domain.TaskResult{
		File: domain.FileMetadata{Name: id.String() + ".mp4", Size: 100, CDNPath: "videos/" + id.String() + ".mp4"},
	})
	require.NoError(t, err)
}

func (f *fixture) fail(t *testing.T, id uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	_, err := f.svc.StartTask(ctx, id)
	require.NoError(t, err)
	_, err = f.svc.FailTask(ctx, id, "extractor error")
	require.NoError(t, err)
}

func TestBatchService_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created := f.createBatch(t, 5, false)
	assert.Equal(t, domain.BatchStatusPending, created.Batch.Status)
	require.Len(t, created.Tasks, 5)
	for _, task := range created.Tasks {
		assert.Equal(t, domain.TaskStatusPending, task.Status)
		assert.Equal(t, "youtube", task.Platform)
	}

	for _, task := range created.Tasks[:4] {
		f.complete(t, task.ID)
	}
	got, err := f.svc.GetBatch(ctx, created.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusProcessing, got.Batch.Status)

	f.fail(t, created.Tasks[4].ID)

	got, err = f.svc.GetBatch(ctx, created.Batch.ID)
	require.NoError(t, err)
	b := got.Batch
	assert.Equal(t, 4, b.CompletedCount)
	assert.Equal(t, 1, b.FailedCount)
	assert.Equal(t, domain.BatchStatusCompleted, b.Status)
	assert.Equal(t, domain.DeliveryCollection, b.DeliveryMethod)
	assert.True(t, b.DeliveryResolved)
	require.NotNil(t, b.Collection)
	require.Equal(t, 1, f.cdn.collectionCount())
	assert.Len(t, f.cdn.collections[0].Files, 4)
	assert.Equal(t, domain.TierPremium, f.cdn.collections[0].Tier)

	payload, err := f.svc.GetDeliveryPayload(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryCollection, payload.DeliveryMethod)
	assert.Equal(t, b.Collection.ID, payload.Collection.ID)

	retried, err := f.svc.RetryBatch(ctx, b.ID, domain.RetryBatchRequest{RetryFailedOnly: true}, "admin")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusProcessing, retried.Batch.Status)
	assert.Nil(t, retried.Batch.CompletedAt)
	assert.False(t, retried.Batch.DeliveryResolved)
	for i, task := range retried.Tasks {
		if i == 4 {
			assert.Equal(t, domain.TaskStatusPending, task.Status)
			assert.Equal(t, 1, task.RetryCount)
			assert.Empty(t, task.ErrorMessage)
			continue
		}
		assert.Equal(t, domain.TaskStatusCompleted, task.Status)
		assert.Equal(t, 0, task.RetryCount)
	}

	assert.Len(t, f.events.ofType(analytics.EventBatchTerminal), 1)
	assert.Len(t, f.events.ofType(analytics.EventBatchRetried), 1)
}

func TestBatchService_CollectionFallback(t *testing.T) {
	f := newFixture(t)
	f.cdn.collectionErr = errpkg.ErrCDNUnavailable
	ctx := context.Background()

	created := f.createBatch(t, 4, true)
	for _, task := range created.Tasks {
		f.complete(t, task.ID)
	}

	got, err := f.svc.GetBatch(ctx, created.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryIndividual, got.Batch.DeliveryMethod)
	assert.Nil(t, got.Batch.Collection)
	assert.Equal(t, domain.DeliveryArchive, domain.DeliveryMethod(f.events.ofType(analytics.EventDeliveryReady)[0].From))

	missing := created.Tasks[1]
	noURL := created.Tasks[2]
	f.cdn.missing["videos/"+missing.ID.String()+".mp4"] = true
	f.cdn.noURL["videos/"+noURL.ID.String()+".mp4"] = true

	payload, err := f.svc.GetDeliveryPayload(ctx, created.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryIndividual, payload.DeliveryMethod)
	require.Len(t, payload.Files, 2)
	assert.Equal(t, created.Tasks[0].ID, payload.Files[0].TaskID)
	assert.Equal(t, created.Tasks[3].ID, payload.Files[1].TaskID)
	assert.Contains(t, payload.Files[0].URL, "token=1001")
	assert.ElementsMatch(t, []uuid.UUID{missing.ID, noURL.ID}, payload.Unresolved)
}

func TestBatchService_SmallBatchDeliversIndividually(t *testing.T) {
	f := newFixture(t)
	created := f.createBatch(t, 2, false)
	f.complete(t, created.Tasks[0].ID)
	f.complete(t, created.Tasks[1].ID)

	payload, err := f.svc.GetDeliveryPayload(context.Background(), created.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryIndividual, payload.DeliveryMethod)
	assert.Len(t, payload.Files, 2)
	assert.Zero(t, f.cdn.collectionCount())
}

func TestBatchService_ConcurrentCompletions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createBatch(t, 20, false)

	var wg sync.WaitGroup
	for i, task := range created.Tasks {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.StartTask(ctx, id)
			assert.NoError(t, err)
			if i%4 == 0 {
				_, err = f.svc.FailTask(ctx, id, "boom")
			} else {
				_, err = f.svc.CompleteTask(ctx, id, domain.TaskResult{File: domain.FileMetadata{Size: 1, CDNPath: id.String()}})
			}
			assert.NoError(t, err)
		}(i, task.ID)
	}
	wg.Wait()

	got, err := f.svc.GetBatch(ctx, created.Batch.ID)
	require.NoError(t, err)
	b := got.Batch
	assert.Equal(t, 15, b.CompletedCount)
	assert.Equal(t, 5, b.FailedCount)
	assert.Equal(t, b.TotalTasks, b.CompletedCount+b.FailedCount+b.SkippedCount)
	assert.Equal(t, domain.BatchStatusCompleted, b.Status)
	assert.Equal(t, 1, f.cdn.collectionCount())

	// recomputing a finished batch changes nothing
	again, err := f.svc.RecomputeBatch(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, again.Batch.CompletedCount)
	assert.Equal(t, 1, f.cdn.collectionCount())
}

func TestBatchService_CancelBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createBatch(t, 3, false)
	done, running, waiting := created.Tasks[0], created.Tasks[1], created.Tasks[2]

	f.complete(t, done.ID)
	_, err := f.svc.StartTask(ctx, running.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.CancelBatch(ctx, created.Batch.ID, "42")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCancelled, cancelled.Batch.Status)
	assert.Equal(t, "42", cancelled.Batch.CancelledBy)
	assert.Equal(t, 1, cancelled.Batch.CompletedCount)
	assert.Equal(t, 2, cancelled.Batch.SkippedCount)

	byID := map[uuid.UUID]*domain.Task{}
	for _, task := range cancelled.Tasks {
		byID[task.ID] = task
	}
	assert.Equal(t, domain.TaskStatusCompleted, byID[done.ID].Status)
	for _, id := range []uuid.UUID{running.ID, waiting.ID} {
		assert.Equal(t, domain.TaskStatusCancelled, byID[id].Status)
		assert.Equal(t, "42", byID[id].CancelledBy)
		assert.Equal(t, "cancelled by 42", byID[id].ErrorMessage)
	}

	history, err := f.svc.TaskHistory(ctx, running.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, domain.AuditCancel, history[0].Action)
	assert.Equal(t, "processing", history[0].FromStatus)

	_, err = f.svc.CancelBatch(ctx, created.Batch.ID, "42")
	assert.ErrorIs(t, err, errpkg.ErrInvalidState)

	_, err = f.svc.RetryBatch(ctx, created.Batch.ID, domain.RetryBatchRequest{RetryFailedOnly: true}, "42")
	assert.ErrorIs(t, err, errpkg.ErrNoRetryableTasks)

	reopened, err := f.svc.RetryBatch(ctx, created.Batch.ID, domain.RetryBatchRequest{}, "42")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusProcessing, reopened.Batch.Status)
	assert.Empty(t, reopened.Batch.CancelledBy)

	batchHistory, err := f.svc.BatchHistory(ctx, created.Batch.ID)
	require.NoError(t, err)
	assert.Len(t, batchHistory, 6)
}

func TestBatchService_TaskRetryLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.svc.CreateTask(ctx, domain.TaskSpec{URL: "https://vimeo.com/1"})
	require.NoError(t, err)
	assert.Nil(t, task.BatchID)
	assert.Equal(t, "vimeo", task.Platform)

	for i := 1; i <= domain.MaxRetries; i++ {
		f.fail(t, task.ID)
		retried, err := f.svc.RetryTask(ctx, task.ID, domain.RetryOptions{Quality: "480p"}, "user")
		require.NoError(t, err)
		assert.Equal(t, i, retried.RetryCount)
		assert.Zero(t, retried.ProgressPercent)
		assert.Equal(t, "480p", retried.RequestedQuality)
	}

	f.fail(t, task.ID)
	_, err = f.svc.RetryTask(ctx, task.ID, domain.RetryOptions{}, "user")
	assert.ErrorIs(t, err, errpkg.ErrRetryLimitExceeded)

	history, err := f.svc.TaskHistory(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, history, domain.MaxRetries)
}

func TestBatchService_StateDenials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createBatch(t, 2, false)
	id := created.Tasks[0].ID

	_, err := f.svc.CompleteTask(ctx, id, domain.TaskResult{})
	assert.ErrorIs(t, err, errpkg.ErrInvalidState)
	_, err = f.svc.ReportProgress(ctx, id, 10)
	assert.ErrorIs(t, err, errpkg.ErrInvalidState)
	_, err = f.svc.RetryTask(ctx, id, domain.RetryOptions{}, "u")
	assert.ErrorIs(t, err, errpkg.ErrInvalidState)

	started, err := f.svc.StartTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusProcessing, started.Status)

	batch, err := f.svc.GetBatch(ctx, created.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusProcessing, batch.Batch.Status)
	assert.NotNil(t, batch.Batch.StartedAt)

	progressed, err := f.svc.ReportProgress(ctx, id, 150)
	require.NoError(t, err)
	assert.Equal(t, 100, progressed.ProgressPercent)

	_, err = f.svc.GetDeliveryPayload(ctx, created.Batch.ID)
	assert.ErrorIs(t, err, errpkg.ErrInvalidState)

	_, err = f.svc.GetTask(ctx, uuid.New())
	assert.ErrorIs(t, err, errpkg.ErrTaskNotFound)
	_, err = f.svc.GetBatch(ctx, id)
	assert.ErrorIs(t, err, errpkg.ErrBatchNotFound)
}

func TestBatchService_CreateBatchValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBatch(ctx, domain.CreateBatchRequest{
		UserID: "1",
		Items:  []domain.TaskSpec{{URL: "http://10.0.0.1/video"}},
	})
	assert.ErrorIs(t, err, errpkg.ErrValidation)

	f.svc.opts.MaxURLsPerBatch = 2
	_, err = f.svc.CreateBatch(ctx, domain.CreateBatchRequest{
		UserID: "1",
		Items: []domain.TaskSpec{
			{URL: "https://youtu.be/a"}, {URL: "https://youtu.be/b"}, {URL: "https://youtu.be/c"},
		},
	})
	assert.ErrorIs(t, err, errpkg.ErrValidation)

	f.svc.opts.MaxURLsPerBatch = 80
	req := domain.CreateBatchRequest{UserID: "1"}
	for i := 0; i < 60; i++ {
		req.Items = append(req.Items, domain.TaskSpec{URL: fmt.Sprintf("https://vimeo.com/%d", i)})
	}
	resp, err := f.svc.CreateBatch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 60, resp.Batch.TotalTasks)
}

func TestBatchService_ReportProgressClamps(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, err := f.svc.CreateTask(ctx, domain.TaskSpec{URL: "https://vimeo.com/1"})
	require.NoError(t, err)
	_, err = f.svc.StartTask(ctx, task.ID)
	require.NoError(t, err)

	got, err := f.svc.ReportProgress(ctx, task.ID, 150)
	require.NoError(t, err)
	assert.Equal(t, 100, got.ProgressPercent)

	got, err = f.svc.ReportProgress(ctx, task.ID, -5)
	require.NoError(t, err)
	assert.Equal(t, 0, got.ProgressPercent)
}

func TestBatchService_CleanupExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	finished := f.createBatch(t, 1, false)
	f.complete(t, finished.Tasks[0].ID)
	open := f.createBatch(t, 1, false)

	n, err := f.svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(domain.DefaultRetentionPolicy().Window(domain.TierPremium))
	n, err = f.svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.svc.GetBatch(ctx, finished.Batch.ID)
	assert.ErrorIs(t, err, errpkg.ErrBatchNotFound)
	_, err = f.svc.GetTask(ctx, finished.Tasks[0].ID)
	assert.ErrorIs(t, err, errpkg.ErrTaskNotFound)
	_, err = f.svc.GetBatch(ctx, open.Batch.ID)
	assert.NoError(t, err)
}

func TestBatchService_TransitionEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task, err := f.svc.CreateTask(ctx, domain.TaskSpec{URL: "https://tiktok.com/@a/video/1"})
	require.NoError(t, err)

	_, err = f.svc.StartTask(ctx, task.ID)
	require.NoError(t, err)
	_, err = f.svc.CancelTask(ctx, task.ID, "7")
	require.NoError(t, err)

	transitions := f.events.ofType(analytics.EventTaskTransition)
	require.Len(t, transitions, 2)
	assert.Equal(t, "pending", transitions[0].From)
	assert.Equal(t, "processing", transitions[0].To)
	assert.Equal(t, "cancelled", transitions[1].To)
	assert.Equal(t, "7", transitions[1].Actor)

	got, err := f.svc.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.ExpiresAt)
	assert.NoError(t, f.svc.Health(ctx))
}

func TestBatchService_BatchCascadeTransitionEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createBatch(t, 3, false)
	_, err := f.svc.StartTask(ctx, created.Tasks[0].ID)
	require.NoError(t, err)
	before := len(f.events.ofType(analytics.EventTaskTransition))

	_, err = f.svc.CancelBatch(ctx, created.Batch.ID, "9")
	require.NoError(t, err)

	cancelled := f.events.ofType(analytics.EventTaskTransition)[before:]
	require.Len(t, cancelled, 3)
	seen := map[uuid.UUID]bool{}
	for _, e := range cancelled {
		require.NotNil(t, e.TaskID)
		seen[*e.TaskID] = true
		assert.Equal(t, "cancelled", e.To)
		assert.Equal(t, "9", e.Actor)
		require.NotNil(t, e.BatchID)
		assert.Equal(t, created.Batch.ID, *e.BatchID)
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, "processing", cancelled[0].From)
	assert.Equal(t, "pending", cancelled[1].From)

	_, err = f.svc.RetryBatch(ctx, created.Batch.ID, domain.RetryBatchRequest{}, "9")
	require.NoError(t, err)

	retried := f.events.ofType(analytics.EventTaskTransition)[before+3:]
	require.Len(t, retried, 3)
	for _, e := range retried {
		assert.Equal(t, "cancelled", e.From)
		assert.Equal(t, "pending", e.To)
		assert.Equal(t, "9", e.Actor)
	}
}

func TestBatchService_CancelBatchWithoutActor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.createBatch(t, 2, false)

	resp, err := f.svc.CancelBatch(ctx, created.Batch.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCancelled, resp.Batch.Status)
	assert.Equal(t, 2, resp.Batch.SkippedCount)

	mixed := f.createBatch(t, 2, false)
	f.complete(t, mixed.Tasks[0].ID)
	resp, err = f.svc.CancelBatch(ctx, mixed.Batch.ID, "")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCancelled, resp.Batch.Status)

	reopened, err := f.svc.RetryTask(ctx, mixed.Tasks[1].ID, domain.RetryOptions{}, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TaskStatusPending, reopened.Status)
	f.fail(t, mixed.Tasks[1].ID)

	got, err := f.svc.GetBatch(ctx, mixed.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusCompleted, got.Batch.Status)
	assert.False(t, got.Batch.Cancelled)
}

// retryBeforeDelete re-opens an aggregate between the expiry listing and
// the delete.
type retryBeforeDelete struct {
	repository.AggregateStore
	before func()
}

func (s *retryBeforeDelete) DeleteExpired(ctx context.Context, rootID uuid.UUID, now time.Time) (bool, error) {
	if s.before != nil {
		s.before()
		s.before = nil
	}
	return s.AggregateStore.DeleteExpired(ctx, rootID, now)
}

func TestBatchService_CleanupSkipsReopenedBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inner, err := repository.NewFileStore("")
	require.NoError(t, err)
	store := &retryBeforeDelete{AggregateStore: inner}
	f.svc = NewBatchService(store, f.cdn, f.events, Options{Now: f.clock.Now}, newTestLogger())

	created := f.createBatch(t, 1, false)
	taskID := created.Tasks[0].ID
	f.fail(t, taskID)

	store.before = func() {
		_, err := f.svc.RetryTask(ctx, taskID, domain.RetryOptions{}, "1001")
		require.NoError(t, err)
	}
	f.clock.Advance(domain.DefaultRetentionPolicy().Window(domain.TierPremium))

	n, err := f.svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := f.svc.GetBatch(ctx, created.Batch.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusProcessing, got.Batch.Status)
}
