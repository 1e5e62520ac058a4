package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	errpkg "github.com/veranemoloko/tgdl-core/internal/errors"
)

// FileMetadata describes the file a completed task produced on the CDN.
type FileMetadata struct {
	Name        string `json:"name,omitempty"`
	Size        int64  `json:"size,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	CDNPath     string `json:"cdn_path,omitempty"`
}

// TaskResult is what the worker reports when a download finishes.
type TaskResult struct {
	File          FileMetadata `json:"file"`
	ActualQuality string       `json:"actual_quality,omitempty"`
	ActualFormat  string       `json:"actual_format,omitempty"`
}

// RetryOptions optionally change the requested quality or format of a
// retried task. Empty fields keep the previous request.
type RetryOptions struct {
	Quality string `json:"quality,omitempty"`
	Format  string `json:"format,omitempty"`
}

// Task is a single URL to file download unit.
type Task struct {
	ID        uuid.UUID  `json:"id"`
	BatchID   *uuid.UUID `json:"batch_id,omitempty"`
	SourceURL string     `json:"source_url"`
	Platform  string     `json:"platform"`
	Status    TaskStatus `json:"status"`

	RequestedQuality string `json:"requested_quality,omitempty"`
	ActualQuality    string `json:"actual_quality,omitempty"`
	RequestedFormat  string `json:"requested_format,omitempty"`
	ActualFormat     string `json:"actual_format,omitempty"`

	ProgressPercent int          `json:"progress_percent"`
	File            FileMetadata `json:"file"`

	RetryCount   int    `json:"retry_count"`
	ErrorMessage string `json:"error_message,omitempty"`
	CancelledBy  string `json:"cancelled_by,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// NewTask returns a pending task for url.
func NewTask(spec TaskSpec, platform string, batchID *uuid.UUID, now time.Time) *Task {
	t := &Task{
		ID:               uuid.New(),
		SourceURL:        spec.URL,
		Platform:         platform,
		Status:           TaskStatusPending,
		RequestedQuality: spec.Quality,
		RequestedFormat:  spec.Format,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if batchID != nil {
		id := *batchID
		t.BatchID = &id
	}
	return t
}

// Start moves a pending task to processing.
func (t *Task) Start(now time.Time) error {
	if t.Status != TaskStatusPending {
		return t.denied("start")
	}

	t.Status = TaskStatusProcessing
	t.StartedAt = timePtr(now)
	t.UpdatedAt = now
	return nil
}

// ReportProgress records download progress of a processing task. Values
// outside [0,100] are clamped.
func (t *Task) ReportProgress(percent int, now time.Time) error {
	if t.Status != TaskStatusProcessing {
		return t.denied("report progress for")
	}

	t.ProgressPercent = clampPercent(percent)
	t.UpdatedAt = now
	return nil
}

// Complete moves a processing task to completed and stores the produced file.
func (t *Task) Complete(result TaskResult, now time.Time) error {
	if t.Status != TaskStatusProcessing {
		return t.denied("complete")
	}

	t.Status = TaskStatusCompleted
	t.File = result.File
	if result.ActualQuality != "" {
		t.ActualQuality = result.ActualQuality
	}
	if result.ActualFormat != "" {
		t.ActualFormat = result.ActualFormat
	}
	t.ProgressPercent = 100
	t.CompletedAt = timePtr(now)
	t.UpdatedAt = now
	return nil
}

// Fail moves a processing task to failed.
func (t *Task) Fail(message string, now time.Time) error {
	if t.Status != TaskStatusProcessing {
		return t.denied("fail")
	}

	t.Status = TaskStatusFailed
	t.ErrorMessage = message
	t.CompletedAt = timePtr(now)
	t.UpdatedAt = now
	return nil
}

// Retry re-opens a failed or cancelled task as pending. Progress, error and
// lifecycle timestamps are reset and the retry counter grows by one.
func (t *Task) Retry(opts RetryOptions, now time.Time) error {
	if d := EvaluateRetry(t.Status, t.RetryCount, MaxRetries); !d.Allowed {
		return fmt.Errorf("retry task %s: %w", t.ID, d.Reason)
	}

	if opts.Quality != "" {
		t.RequestedQuality = opts.Quality
		t.ActualQuality = ""
	}
	if opts.Format != "" {
		t.RequestedFormat = opts.Format
		t.ActualFormat = ""
	}

	t.Status = TaskStatusPending
	t.RetryCount++
	t.ProgressPercent = 0
	t.ErrorMessage = ""
	t.CancelledBy = ""
	t.File = FileMetadata{}
	t.StartedAt = nil
	t.CompletedAt = nil
	t.ExpiresAt = nil
	t.UpdatedAt = now
	return nil
}

// Cancel stops a pending or processing task on behalf of actor.
//
// The actor is kept in CancelledBy and, for consumers that still read it
// from there, in ErrorMessage as "cancelled by <actor>".
func (t *Task) Cancel(actor string, now time.Time) error {
	if t.Status != TaskStatusPending && t.Status != TaskStatusProcessing {
		return t.denied("cancel")
	}

	t.Status = TaskStatusCancelled
	t.CancelledBy = actor
	t.ErrorMessage = CancelledMessage(actor)
	t.CompletedAt = timePtr(now)
	t.UpdatedAt = now
	return nil
}

// CancelledMessage is the legacy error message of a cancelled task.
func CancelledMessage(actor string) string {
	if actor == "" {
		return "cancelled"
	}
	return "cancelled by " + actor
}

// Clone returns a deep copy of t.
func (t *Task) Clone() *Task {
	c := *t
	if t.BatchID != nil {
		id := *t.BatchID
		c.BatchID = &id
	}
	c.StartedAt = cloneTime(t.StartedAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.ExpiresAt = cloneTime(t.ExpiresAt)
	return &c
}

func (t *Task) denied(op string) error {
	return fmt.Errorf("%w: cannot %s task %s in status %s", errpkg.ErrInvalidState, op, t.ID, t.Status)
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
