package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/veranemoloko/tgdl-core/internal/analytics"
	"github.com/veranemoloko/tgdl-core/internal/cdn"
	"github.com/veranemoloko/tgdl-core/internal/domain"
	errpkg "github.com/veranemoloko/tgdl-core/internal/errors"
	"github.com/veranemoloko/tgdl-core/internal/metrics"
	"github.com/veranemoloko/tgdl-core/internal/repository"
	"github.com/veranemoloko/tgdl-core/internal/validation"
)

// DeliveryClient is the CDN surface the service relies on.
type DeliveryClient interface {
	GetFileURL(ctx context.Context, path, principalID string, ttl time.Duration) (string, error)
	CheckAvailability(ctx context.Context, paths []string, principalID string) []bool
	CreateCollection(ctx context.Context, req cdn.CollectionRequest) (*cdn.Collection, error)
	HealthCheck(ctx context.Context) (*cdn.HealthStatus, error)
}

// EventEmitter receives lifecycle events after they are committed.
type EventEmitter interface {
	Emit(e analytics.Event)
}

type Options struct {
	Retention           domain.RetentionPolicy
	MaxURLsPerBatch     int
	DeliveryConcurrency int
	DeliveryURLTimeout  time.Duration
	URLTTL              time.Duration
	Now                 func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Retention == nil {
		o.Retention = domain.DefaultRetentionPolicy()
	}
	if o.MaxURLsPerBatch <= 0 {
		o.MaxURLsPerBatch = 50
	}
	if o.DeliveryConcurrency <= 0 {
		o.DeliveryConcurrency = 8
	}
	if o.DeliveryURLTimeout <= 0 {
		o.DeliveryURLTimeout = 10 * time.Second
	}
	if o.URLTTL <= 0 {
		o.URLTTL = cdn.DefaultURLTTL
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// BatchService owns the task and batch lifecycle. Every state change runs
// as one atomic store update that also recomputes the owning batch.
type BatchService struct {
	store  repository.AggregateStore
	cdn    DeliveryClient
	events EventEmitter
	opts   Options
	logger *slog.Logger
}

func NewBatchService(store repository.AggregateStore, delivery DeliveryClient, events EventEmitter, opts Options, logger *slog.Logger) *BatchService {
	return &BatchService{
		store:  store,
		cdn:    delivery,
		events: events,
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// CreateBatch stores a pending batch with one pending task per item.
func (s *BatchService) CreateBatch(ctx context.Context, req domain.CreateBatchRequest) (*domain.BatchResponse, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if len(req.Items) > s.opts.MaxURLsPerBatch {
		return nil, fmt.Errorf("%w: batch has %d URLs, limit is %d", errpkg.ErrValidation, len(req.Items), s.opts.MaxURLsPerBatch)
	}

	urls := make([]string, len(req.Items))
	for i, item := range req.Items {
		urls[i] = item.URL
	}

	agg, err := domain.NewBatchAggregate(req, validation.DetectPlatforms(urls), s.opts.Now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, agg); err != nil {
		return nil, fmt.Errorf("failed to store batch: %w", err)
	}

	metrics.BatchesCreated.Inc()
	metrics.TasksCreated.Add(float64(len(agg.Tasks)))
	s.emit(analytics.Event{Type: analytics.EventBatchCreated, BatchID: &agg.ID, To: string(agg.Batch.Status), Actor: req.UserID})

	s.logger.Info("batch created",
		"batch_id", agg.ID,
		"user_id", req.UserID,
		"tasks_count", len(agg.Tasks),
	)
	return batchResponse(agg), nil
}

// CreateTask stores a standalone pending task.
func (s *BatchService) CreateTask(ctx context.Context, spec domain.TaskSpec) (*domain.Task, error) {
	if err := validation.Struct(spec); err != nil {
		return nil, err
	}

	task := domain.NewTask(spec, validation.DetectPlatform(spec.URL), nil, s.opts.Now())
	if err := s.store.Create(ctx, domain.NewStandaloneAggregate(task)); err != nil {
		return nil, fmt.Errorf("failed to store task: %w", err)
	}

	metrics.TasksCreated.Inc()
	s.emit(analytics.Event{Type: analytics.EventTaskCreated, TaskID: &task.ID, To: string(task.Status)})

	s.logger.Info("task created", "task_id", task.ID, "platform", task.Platform)
	return task, nil
}

func (s *BatchService) GetBatch(ctx context.Context, batchID uuid.UUID) (*domain.BatchResponse, error) {
	agg, err := s.loadBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return batchResponse(agg), nil
}

func (s *BatchService) GetTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	agg, err := s.loadByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return agg.Task(taskID), nil
}

// TaskHistory returns the audit trail of a task.
func (s *BatchService) TaskHistory(ctx context.Context, taskID uuid.UUID) ([]domain.AuditEntry, error) {
	agg, err := s.loadByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return agg.HistoryOf(taskID), nil
}

// BatchHistory returns the audit trail of a batch and its members.
func (s *BatchService) BatchHistory(ctx context.Context, batchID uuid.UUID) ([]domain.AuditEntry, error) {
	agg, err := s.loadBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return agg.History, nil
}

// Health probes the CDN.
func (s *BatchService) Health(ctx context.Context) error {
	if _, err := s.cdn.HealthCheck(ctx); err != nil {
		return err
	}
	return nil
}

func (s *BatchService) loadBatch(ctx context.Context, batchID uuid.UUID) (*domain.BatchAggregate, error) {
	agg, err := s.store.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if agg.Batch == nil {
		return nil, errpkg.ErrBatchNotFound
	}
	return agg, nil
}

func (s *BatchService) loadByTask(ctx context.Context, taskID uuid.UUID) (*domain.BatchAggregate, error) {
	root, err := s.store.RootOf(ctx, taskID)
	if err != nil {
		return nil, err
	}
	agg, err := s.store.Get(ctx, root)
	if err != nil {
		return nil, err
	}
	if agg.Task(taskID) == nil {
		return nil, errpkg.ErrTaskNotFound
	}
	return agg, nil
}

func (s *BatchService) emit(e analytics.Event) {
	if s.events == nil {
		return
	}
	if e.At.IsZero() {
		e.At = s.opts.Now()
	}
	s.events.Emit(e)
}

func batchResponse(agg *domain.BatchAggregate) *domain.BatchResponse {
	return &domain.BatchResponse{Batch: agg.Batch, Tasks: agg.Tasks}
}
