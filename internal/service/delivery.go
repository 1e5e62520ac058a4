package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/veranemoloko/tgdl-core/internal/analytics"
	"github.com/veranemoloko/tgdl-core/internal/cdn"
	"github.com/veranemoloko/tgdl-core/internal/domain"
	errpkg "github.com/veranemoloko/tgdl-core/internal/errors"
	"github.com/veranemoloko/tgdl-core/internal/metrics"
)

// errStaleDelivery marks a delivery resolution that lost a race with a
// retry or with another resolver.
var errStaleDelivery = errors.New("stale delivery resolution")

// onTerminal runs once per transition of an aggregate into a terminal
// state, after the transition is committed.
func (s *BatchService) onTerminal(ctx context.Context, agg *domain.BatchAggregate) {
	if agg.Batch == nil {
		t := agg.Tasks[0]
		s.logger.Info("standalone task finished", "task_id", t.ID, "status", t.Status)
		return
	}

	b := agg.Batch
	metrics.BatchesTerminal.WithLabelValues(string(b.Status)).Inc()
	s.emit(analytics.Event{Type: analytics.EventBatchTerminal, BatchID: &b.ID, To: string(b.Status), Actor: b.CancelledBy})
	s.logger.Info("batch finished",
		"batch_id", b.ID,
		"status", b.Status,
		"completed", b.CompletedCount,
		"failed", b.FailedCount,
		"skipped", b.SkippedCount,
		"delivery_method", b.DeliveryMethod,
	)

	if err := s.resolveDelivery(context.WithoutCancel(ctx), agg); err != nil {
		s.logger.Error("failed to resolve delivery", "batch_id", b.ID, "error", err)
	}
}

// resolveDelivery builds the CDN collection of a terminal batch when its
// delivery method asks for one. A failed collection falls back to
// individual links. The CDN call happens outside the store update.
func (s *BatchService) resolveDelivery(ctx context.Context, agg *domain.BatchAggregate) error {
	b := agg.Batch
	if b == nil || b.DeliveryResolved || !b.Status.IsTerminal() {
		return nil
	}

	method := b.DeliveryMethod
	var (
		col    *cdn.Collection
		colErr error
	)
	if method.UsesCollection() {
		files := completedPaths(agg)
		if len(files) == 0 {
			colErr = errors.New("no completed files to bundle")
		} else {
			col, colErr = s.cdn.CreateCollection(ctx, cdn.CollectionRequest{
				Files:       files,
				PrincipalID: b.UserID,
				Tier:        b.Tier,
				Name:        "batch-" + b.ID.String(),
			})
		}
	}

	completedAt := b.CompletedAt
	var fellBack bool
	committed, err := s.store.Update(ctx, b.ID, func(a *domain.BatchAggregate) error {
		cur := a.Batch
		fellBack = false
		if cur == nil || !cur.Status.IsTerminal() || cur.DeliveryResolved || !sameTime(cur.CompletedAt, completedAt) {
			return errStaleDelivery
		}
		if method.UsesCollection() {
			if colErr != nil {
				cur.DeliveryMethod = domain.DeliveryIndividual
				fellBack = true
			} else {
				cur.Collection = &domain.CollectionRef{
					ID:        col.ID,
					Name:      col.Name,
					URL:       col.URL,
					FileCount: len(col.Files),
					ExpiresAt: col.ExpiresAt,
				}
				if cur.Collection.FileCount == 0 {
					cur.Collection.FileCount = cur.CompletedCount
				}
			}
		}
		cur.DeliveryResolved = true
		return nil
	})
	if errors.Is(err, errStaleDelivery) {
		s.logger.Debug("delivery resolution skipped", "batch_id", b.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("store delivery of batch %s: %w", b.ID, err)
	}

	final := committed.Batch.DeliveryMethod
	metrics.DeliveryMethods.WithLabelValues(string(final)).Inc()
	if fellBack {
		metrics.DeliveryFallbacks.Inc()
		s.logger.Warn("collection unavailable, delivering individual links",
			"batch_id", b.ID,
			"requested_method", method,
			"error", colErr,
		)
	}
	s.emit(analytics.Event{Type: analytics.EventDeliveryReady, BatchID: &b.ID, From: string(method), To: string(final)})
	return nil
}

// GetDeliveryPayload returns how a finished batch is handed to its user:
// a collection link, or one link per completed file. Files whose link
// cannot be produced in time are listed as unresolved instead of failing
// the whole payload.
func (s *BatchService) GetDeliveryPayload(ctx context.Context, batchID uuid.UUID) (*domain.DeliveryPayload, error) {
	agg, err := s.loadBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if !agg.Batch.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: batch %s is %s, delivery is available once it finishes",
			errpkg.ErrInvalidState, batchID, agg.Batch.Status)
	}

	if !agg.Batch.DeliveryResolved {
		if err := s.resolveDelivery(ctx, agg); err != nil {
			return nil, err
		}
		if agg, err = s.loadBatch(ctx, batchID); err != nil {
			return nil, err
		}
	}

	b := agg.Batch
	payload := &domain.DeliveryPayload{
		BatchID:        b.ID,
		DeliveryMethod: b.DeliveryMethod,
		ResolvedAt:     s.opts.Now(),
	}
	if b.Collection != nil {
		payload.Collection = b.Collection
		return payload, nil
	}

	payload.Files, payload.Unresolved = s.resolveFiles(ctx, agg)
	return payload, nil
}

func (s *BatchService) resolveFiles(ctx context.Context, agg *domain.BatchAggregate) ([]domain.DeliveredFile, []uuid.UUID) {
	var (
		tasks      []*domain.Task
		paths      []string
		unresolved []uuid.UUID
	)
	for _, t := range agg.Tasks {
		if t.Status != domain.TaskStatusCompleted {
			continue
		}
		if t.File.CDNPath == "" {
			unresolved = append(unresolved, t.ID)
			continue
		}
		tasks = append(tasks, t)
		paths = append(paths, t.File.CDNPath)
	}
	if len(tasks) == 0 {
		return nil, unresolved
	}

	principal := agg.Batch.UserID
	available := s.cdn.CheckAvailability(ctx, paths, principal)
	urls := make([]string, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.DeliveryConcurrency)
	for i, t := range tasks {
		if !available[i] {
			continue
		}
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(gctx, s.opts.DeliveryURLTimeout)
			defer cancel()

			u, err := s.cdn.GetFileURL(fctx, t.File.CDNPath, principal, s.opts.URLTTL)
			if err != nil {
				s.logger.Warn("file url resolution failed", "task_id", t.ID, "error", err)
				return nil
			}
			urls[i] = u
			return nil
		})
	}
	_ = g.Wait()

	files := make([]domain.DeliveredFile, 0, len(tasks))
	for i, t := range tasks {
		if urls[i] == "" {
			unresolved = append(unresolved, t.ID)
			continue
		}
		files = append(files, domain.DeliveredFile{
			TaskID:      t.ID,
			Name:        t.File.Name,
			Size:        t.File.Size,
			ContentType: t.File.ContentType,
			URL:         urls[i],
		})
	}
	return files, unresolved
}

func completedPaths(agg *domain.BatchAggregate) []string {
	var out []string
	for _, t := range agg.Tasks {
		if t.Status == domain.TaskStatusCompleted && t.File.CDNPath != "" {
			out = append(out, t.File.CDNPath)
		}
	}
	return out
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
