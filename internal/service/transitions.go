package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/veranemoloko/tgdl-core/internal/analytics"
	"github.com/veranemoloko/tgdl-core/internal/domain"
	errpkg "github.com/veranemoloko/tgdl-core/internal/errors"
	"github.com/veranemoloko/tgdl-core/internal/metrics"
)

type taskMutation func(agg *domain.BatchAggregate, t *domain.Task) error

// taskChange is one member transition made by a batch-wide operation.
type taskChange struct {
	id       uuid.UUID
	from, to domain.TaskStatus
}

// StartTask is the worker signal that a download began.
func (s *BatchService) StartTask(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	return s.mutateTask(ctx, taskID, "start", "", func(agg *domain.BatchAggregate, t *domain.Task) error {
		if err := t.Start(s.opts.Now()); err != nil {
			return err
		}
		agg.MarkStarted(s.opts.Now())
		return nil
	})
}

func (s *BatchService) ReportProgress(ctx context.Context, taskID uuid.UUID, percent int) (*domain.Task, error) {
	return s.mutateTask(ctx, taskID, "progress", "", func(_ *domain.BatchAggregate, t *domain.Task) error {
		return t.ReportProgress(percent, s.opts.Now())
	})
}

func (s *BatchService) CompleteTask(ctx context.Context, taskID uuid.UUID, result domain.TaskResult) (*domain.Task, error) {
	return s.mutateTask(ctx, taskID, "complete", "", func(_ *domain.BatchAggregate, t *domain.Task) error {
		return t.Complete(result, s.opts.Now())
	})
}

func (s *BatchService) FailTask(ctx context.Context, taskID uuid.UUID, message string) (*domain.Task, error) {
	return s.mutateTask(ctx, taskID, "fail", "", func(_ *domain.BatchAggregate, t *domain.Task) error {
		return t.Fail(message, s.opts.Now())
	})
}

// RetryTask re-opens a failed or cancelled task. Retrying a member of a
// cancelled batch re-opens the batch as well.
func (s *BatchService) RetryTask(ctx context.Context, taskID uuid.UUID, opts domain.RetryOptions, actor string) (*domain.Task, error) {
	return s.mutateTask(ctx, taskID, "retry", actor, func(agg *domain.BatchAggregate, t *domain.Task) error {
		now := s.opts.Now()
		from := t.Status
		if err := t.Retry(opts, now); err != nil {
			return err
		}
		agg.Record(domain.SubjectTask, t.ID, domain.AuditRetry, actor, string(from), string(t.Status), now)
		agg.ClearCancellation()
		return nil
	})
}

// CancelTask stops a pending or processing task on behalf of actor.
func (s *BatchService) CancelTask(ctx context.Context, taskID uuid.UUID, actor string) (*domain.Task, error) {
	return s.mutateTask(ctx, taskID, "cancel", actor, func(agg *domain.BatchAggregate, t *domain.Task) error {
		now := s.opts.Now()
		from := t.Status
		if err := t.Cancel(actor, now); err != nil {
			return err
		}
		agg.Record(domain.SubjectTask, t.ID, domain.AuditCancel, actor, string(from), string(t.Status), now)
		return nil
	})
}

// mutateTask applies fn to a task and recomputes its batch in the same
// atomic update, then publishes the outcome.
func (s *BatchService) mutateTask(ctx context.Context, taskID uuid.UUID, op, actor string, fn taskMutation) (*domain.Task, error) {
	root, err := s.store.RootOf(ctx, taskID)
	if err != nil {
		return nil, err
	}

	var (
		from     domain.TaskStatus
		terminal bool
	)
	agg, err := s.store.Update(ctx, root, func(agg *domain.BatchAggregate) error {
		t := agg.Task(taskID)
		if t == nil {
			return errpkg.ErrTaskNotFound
		}
		from = t.Status
		if err := fn(agg, t); err != nil {
			return err
		}
		terminal = agg.Recompute(s.opts.Now(), s.opts.Retention)
		return nil
	})
	if err != nil {
		if errpkg.IsStateDenial(err) {
			metrics.StateDenials.WithLabelValues(op).Inc()
			s.logger.Info("task operation denied", "task_id", taskID, "operation", op, "reason", err)
		}
		return nil, fmt.Errorf("%s task %s: %w", op, taskID, err)
	}

	t := agg.Task(taskID)
	if t.Status != from {
		s.emitTransitions(t.BatchID, actor, taskChange{id: t.ID, from: from, to: t.Status})
	}

	if terminal {
		s.onTerminal(ctx, agg)
		if refreshed, err := s.store.Get(ctx, root); err == nil {
			return refreshed.Task(taskID), nil
		}
	}
	return t, nil
}

// RecomputeBatch re-derives a batch from its tasks. Safe to call any number
// of times.
func (s *BatchService) RecomputeBatch(ctx context.Context, batchID uuid.UUID) (*domain.BatchResponse, error) {
	var terminal bool
	agg, err := s.store.Update(ctx, batchID, func(agg *domain.BatchAggregate) error {
		if agg.Batch == nil {
			return errpkg.ErrBatchNotFound
		}
		terminal = agg.Recompute(s.opts.Now(), s.opts.Retention)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if terminal {
		s.onTerminal(ctx, agg)
		return s.GetBatch(ctx, batchID)
	}
	return batchResponse(agg), nil
}

// RetryBatch re-opens the eligible members of a batch: failed ones, plus
// cancelled ones unless failedOnly is set. Members at the retry limit are
// skipped. Fails with ErrNoRetryableTasks when nothing qualifies.
func (s *BatchService) RetryBatch(ctx context.Context, batchID uuid.UUID, req domain.RetryBatchRequest, actor string) (*domain.BatchResponse, error) {
	var (
		from    domain.BatchStatus
		retried []taskChange
	)
	agg, err := s.store.Update(ctx, batchID, func(agg *domain.BatchAggregate) error {
		if agg.Batch == nil {
			return errpkg.ErrBatchNotFound
		}
		now := s.opts.Now()
		from = agg.Batch.Status
		retried = retried[:0]

		candidates := agg.RetryCandidates(req.RetryFailedOnly)
		if len(candidates) == 0 {
			return fmt.Errorf("%w: batch %s has no failed or cancelled tasks under the retry limit",
				errpkg.ErrNoRetryableTasks, batchID)
		}
		for _, t := range candidates {
			taskFrom := t.Status
			if err := t.Retry(domain.RetryOptions{Quality: req.Quality}, now); err != nil {
				return err
			}
			agg.Record(domain.SubjectTask, t.ID, domain.AuditRetry, actor, string(taskFrom), string(t.Status), now)
			retried = append(retried, taskChange{id: t.ID, from: taskFrom, to: t.Status})
		}

		agg.ClearCancellation()
		agg.MarkStarted(now)
		agg.Recompute(now, s.opts.Retention)
		agg.Record(domain.SubjectBatch, agg.ID, domain.AuditRetry, actor, string(from), string(agg.Batch.Status), now)
		return nil
	})
	if err != nil {
		if errpkg.IsStateDenial(err) {
			metrics.StateDenials.WithLabelValues("retry_batch").Inc()
		}
		return nil, err
	}

	s.emitTransitions(&agg.ID, actor, retried...)
	s.emit(analytics.Event{Type: analytics.EventBatchRetried, BatchID: &agg.ID, From: string(from), To: string(agg.Batch.Status), Actor: actor})

	s.logger.Info("batch retried",
		"batch_id", batchID,
		"retried_tasks", len(retried),
		"failed_only", req.RetryFailedOnly,
	)
	return batchResponse(agg), nil
}

// CancelBatch cancels every non-terminal member and marks the batch
// cancelled. Completed and failed members are left as they are.
func (s *BatchService) CancelBatch(ctx context.Context, batchID uuid.UUID, actor string) (*domain.BatchResponse, error) {
	var (
		from      domain.BatchStatus
		cancelled []taskChange
		terminal  bool
	)
	agg, err := s.store.Update(ctx, batchID, func(agg *domain.BatchAggregate) error {
		if agg.Batch == nil {
			return errpkg.ErrBatchNotFound
		}
		from = agg.Batch.Status
		if from.IsTerminal() {
			return fmt.Errorf("%w: cannot cancel batch %s in status %s", errpkg.ErrInvalidState, batchID, from)
		}

		now := s.opts.Now()
		cancelled = cancelled[:0]
		for _, t := range agg.Tasks {
			if t.Status.IsTerminal() {
				continue
			}
			taskFrom := t.Status
			if err := t.Cancel(actor, now); err != nil {
				return err
			}
			agg.Record(domain.SubjectTask, t.ID, domain.AuditCancel, actor, string(taskFrom), string(t.Status), now)
			cancelled = append(cancelled, taskChange{id: t.ID, from: taskFrom, to: t.Status})
		}

		agg.MarkCancelled(actor)
		terminal = agg.Recompute(now, s.opts.Retention)
		agg.Record(domain.SubjectBatch, agg.ID, domain.AuditCancel, actor, string(from), string(agg.Batch.Status), now)
		return nil
	})
	if err != nil {
		if errpkg.IsStateDenial(err) {
			metrics.StateDenials.WithLabelValues("cancel_batch").Inc()
		}
		return nil, err
	}

	s.emitTransitions(&agg.ID, actor, cancelled...)
	s.emit(analytics.Event{Type: analytics.EventBatchCancelled, BatchID: &agg.ID, From: string(from), To: string(agg.Batch.Status), Actor: actor})
	s.logger.Info("batch cancelled", "batch_id", batchID, "actor", actor, "cancelled_tasks", len(cancelled))

	if terminal {
		s.onTerminal(ctx, agg)
		return s.GetBatch(ctx, batchID)
	}
	return batchResponse(agg), nil
}

// emitTransitions counts and publishes committed task transitions.
func (s *BatchService) emitTransitions(batchID *uuid.UUID, actor string, changes ...taskChange) {
	for _, c := range changes {
		id := c.id
		metrics.TaskTransitions.WithLabelValues(string(c.to)).Inc()
		s.emit(analytics.Event{
			Type:    analytics.EventTaskTransition,
			TaskID:  &id,
			BatchID: batchID,
			From:    string(c.from),
			To:      string(c.to),
			Actor:   actor,
		})
		s.logger.Debug("task transition", "task_id", id, "from", c.from, "to", c.to)
	}
}
