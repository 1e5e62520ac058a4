package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	errpkg "github.com/veranemoloko/tgdl-core/internal/errors"
)

// ArchiveThreshold is the member count above which a batch is delivered as
// a single collection instead of individual links.
const ArchiveThreshold = 3

// CollectionRef points at the CDN collection built for a batch.
type CollectionRef struct {
	ID        string    `json:"id"`
	Name      string    `json:"name,omitempty"`
	URL       string    `json:"url,omitempty"`
	FileCount int       `json:"file_count"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Batch is a group of tasks submitted together and delivered as a unit.
// Its status and counters are derived from the member tasks by Recompute.
type Batch struct {
	ID      uuid.UUID     `json:"id"`
	UserID  string        `json:"user_id"`
	Tier    RetentionTier `json:"tier"`
	TaskIDs []uuid.UUID   `json:"task_ids"`
	Status  BatchStatus   `json:"status"`

	CompletedCount int `json:"completed_count"`
	FailedCount    int `json:"failed_count"`
	SkippedCount   int `json:"skipped_count"`
	TotalTasks     int `json:"total_tasks"`

	DeliveryMethod   DeliveryMethod `json:"delivery_method,omitempty"`
	ArchiveRequested bool           `json:"archive_requested"`
	Collection       *CollectionRef `json:"collection,omitempty"`
	DeliveryResolved bool           `json:"delivery_resolved"`
	TotalSize        int64          `json:"total_size"`

	Cancelled   bool   `json:"cancelled"`
	CancelledBy string `json:"cancelled_by,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// ChooseDeliveryMethod picks the delivery strategy of a terminal batch.
func (b *Batch) ChooseDeliveryMethod() DeliveryMethod {
	switch {
	case b.ArchiveRequested:
		return DeliveryArchive
	case b.TotalTasks > ArchiveThreshold:
		return DeliveryCollection
	default:
		return DeliveryIndividual
	}
}

// BatchAggregate is the unit of atomic change: a batch with all its member
// tasks, or a single standalone task when Batch is nil. ID is the batch id
// or, for a standalone task, the task id.
type BatchAggregate struct {
	ID      uuid.UUID    `json:"id"`
	Batch   *Batch       `json:"batch,omitempty"`
	Tasks   []*Task      `json:"tasks"`
	History []AuditEntry `json:"history,omitempty"`
}

// NewBatchAggregate creates a pending batch for user with one pending task per
// item. All tasks are created or none.
func NewBatchAggregate(req CreateBatchRequest, platforms []string, now time.Time) (*BatchAggregate, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: batch needs at least one task", errpkg.ErrInvalidState)
	}
	if len(platforms) != len(req.Items) {
		return nil, fmt.Errorf("platform tags mismatch: %d items, %d tags", len(req.Items), len(platforms))
	}

	batchID := uuid.New()
	tier := req.Tier
	if tier == "" {
		tier = TierFree
	}

	batch := &Batch{
		ID:               batchID,
		UserID:           req.UserID,
		Tier:             tier,
		Status:           BatchStatusPending,
		TotalTasks:       len(req.Items),
		ArchiveRequested: req.ArchiveDelivery,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	tasks := make([]*Task, 0, len(req.Items))
	for i, item := range req.Items {
		t := NewTask(item, platforms[i], &batchID, now)
		tasks = append(tasks, t)
		batch.TaskIDs = append(batch.TaskIDs, t.ID)
	}

	return &BatchAggregate{ID: batchID, Batch: batch, Tasks: tasks}, nil
}

// NewStandaloneAggregate wraps a task that belongs to no batch.
func NewStandaloneAggregate(t *Task) *BatchAggregate {
	return &BatchAggregate{ID: t.ID, Tasks: []*Task{t}}
}

// Task returns the member task with id, or nil.
func (a *BatchAggregate) Task(id uuid.UUID) *Task {
	for _, t := range a.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Record appends an audit entry.
func (a *BatchAggregate) Record(kind SubjectKind, subject uuid.UUID, action AuditAction, actor, from, to string, now time.Time) {
	a.History = append(a.History, AuditEntry{
		ID:          uuid.New(),
		SubjectKind: kind,
		SubjectID:   subject,
		Action:      action,
		Actor:       actor,
		FromStatus:  from,
		ToStatus:    to,
		At:          now,
	})
}

// HistoryOf returns the audit entries about subject in recording order.
func (a *BatchAggregate) HistoryOf(subject uuid.UUID) []AuditEntry {
	var out []AuditEntry
	for _, e := range a.History {
		if e.SubjectID == subject {
			out = append(out, e)
		}
	}
	return out
}

// IsTerminal reports whether the aggregate has nothing left to do.
func (a *BatchAggregate) IsTerminal() bool {
	if a.Batch != nil {
		return a.Batch.Status.IsTerminal()
	}
	return len(a.Tasks) == 1 && a.Tasks[0].Status.IsTerminal()
}

// Expired reports whether a terminal aggregate is past its retention window.
func (a *BatchAggregate) Expired(now time.Time) bool {
	exp := a.ExpiresAt()
	return a.IsTerminal() && exp != nil && !now.Before(*exp)
}

// ExpiresAt returns when a terminal aggregate may be destroyed.
func (a *BatchAggregate) ExpiresAt() *time.Time {
	if a.Batch != nil {
		return a.Batch.ExpiresAt
	}
	if len(a.Tasks) == 1 {
		return a.Tasks[0].ExpiresAt
	}
	return nil
}

// Recompute rebuilds the batch counters and status from the current member
// task statuses. It never looks at previous counter values, so calling it
// any number of times for the same snapshot yields the same batch. It
// reports whether this call moved the batch into a terminal state.
func (a *BatchAggregate) Recompute(now time.Time, retention RetentionPolicy) bool {
	if a.Batch == nil {
		return a.recomputeStandalone(now, retention)
	}

	b := a.Batch
	wasTerminal := b.Status.IsTerminal()

	var completed, failed, skipped, pending int
	var size int64
	for _, t := range a.Tasks {
		switch t.Status {
		case TaskStatusCompleted:
			completed++
			size += t.File.Size
		case TaskStatusFailed:
			failed++
		case TaskStatusCancelled:
			skipped++
		case TaskStatusPending:
			pending++
		}
	}

	b.CompletedCount = completed
	b.FailedCount = failed
	b.SkippedCount = skipped
	b.TotalTasks = len(a.Tasks)
	b.TotalSize = size

	allTerminal := completed+failed+skipped == b.TotalTasks
	switch {
	case !allTerminal:
		if pending == b.TotalTasks && b.StartedAt == nil {
			b.Status = BatchStatusPending
		} else {
			b.Status = BatchStatusProcessing
		}
		b.CompletedAt = nil
		b.ExpiresAt = nil
		b.DeliveryMethod = ""
		b.Collection = nil
		b.DeliveryResolved = false
		for _, t := range a.Tasks {
			t.ExpiresAt = nil
		}
	case b.Cancelled:
		b.Status = BatchStatusCancelled
	case completed > 0:
		b.Status = BatchStatusCompleted
	default:
		b.Status = BatchStatusFailed
	}
	b.UpdatedAt = now

	if !allTerminal || wasTerminal {
		return false
	}

	expires := now.Add(retention.Window(b.Tier))
	b.CompletedAt = timePtr(now)
	b.ExpiresAt = timePtr(expires)
	for _, t := range a.Tasks {
		t.ExpiresAt = timePtr(expires)
	}
	b.DeliveryMethod = b.ChooseDeliveryMethod()
	return true
}

func (a *BatchAggregate) recomputeStandalone(now time.Time, retention RetentionPolicy) bool {
	if len(a.Tasks) != 1 {
		return false
	}
	t := a.Tasks[0]
	if !t.Status.IsTerminal() || t.ExpiresAt != nil {
		return false
	}
	t.ExpiresAt = timePtr(now.Add(retention.Window(TierFree)))
	return true
}

// MarkStarted moves a pending batch to processing the first time one of its
// tasks starts.
func (a *BatchAggregate) MarkStarted(now time.Time) {
	if a.Batch == nil || a.Batch.StartedAt != nil {
		return
	}
	a.Batch.StartedAt = timePtr(now)
}

// MarkCancelled flags the batch as cancelled by actor. The actor may be
// empty.
func (a *BatchAggregate) MarkCancelled(actor string) {
	if a.Batch == nil {
		return
	}
	a.Batch.Cancelled = true
	a.Batch.CancelledBy = actor
}

// ClearCancellation re-opens a cancelled batch for retry.
func (a *BatchAggregate) ClearCancellation() {
	if a.Batch == nil {
		return
	}
	a.Batch.Cancelled = false
	a.Batch.CancelledBy = ""
}

// RetryCandidates returns the member tasks a batch retry would re-open.
// With failedOnly only failed tasks qualify, otherwise failed and cancelled.
func (a *BatchAggregate) RetryCandidates(failedOnly bool) []*Task {
	var out []*Task
	for _, t := range a.Tasks {
		if failedOnly && t.Status != TaskStatusFailed {
			continue
		}
		if d := EvaluateRetry(t.Status, t.RetryCount, MaxRetries); d.Allowed {
			out = append(out, t)
		}
	}
	return out
}

// Clone returns a deep copy of a.
func (a *BatchAggregate) Clone() *BatchAggregate {
	c := &BatchAggregate{ID: a.ID}
	if a.Batch != nil {
		b := *a.Batch
		b.TaskIDs = append([]uuid.UUID(nil), a.Batch.TaskIDs...)
		if a.Batch.Collection != nil {
			col := *a.Batch.Collection
			b.Collection = &col
		}
		b.StartedAt = cloneTime(a.Batch.StartedAt)
		b.CompletedAt = cloneTime(a.Batch.CompletedAt)
		b.ExpiresAt = cloneTime(a.Batch.ExpiresAt)
		c.Batch = &b
	}
	c.Tasks = make([]*Task, len(a.Tasks))
	for i, t := range a.Tasks {
		c.Tasks[i] = t.Clone()
	}
	c.History = append([]AuditEntry(nil), a.History...)
	return c
}
