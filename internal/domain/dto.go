package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskSpec is one URL of a submission.
type TaskSpec struct {
	URL     string `json:"url" validate:"required,safe_url"`
	Quality string `json:"quality,omitempty" validate:"omitempty,max=32"`
	Format  string `json:"format,omitempty" validate:"omitempty,max=16"`
}

// CreateBatchRequest represents the request body for submitting a batch.
type CreateBatchRequest struct {
	UserID          string        `json:"user_id" validate:"required,max=64"`
	Tier            RetentionTier `json:"tier,omitempty" validate:"omitempty,oneof=free trial premium admin owner"`
	ArchiveDelivery bool          `json:"archive_delivery"`
	Items           []TaskSpec    `json:"items" validate:"required,min=1,dive"`
}

// RetryBatchRequest represents the request body of a batch retry.
type RetryBatchRequest struct {
	RetryFailedOnly bool   `json:"retry_failed_only"`
	Quality         string `json:"quality,omitempty" validate:"omitempty,max=32"`
	Actor           string `json:"actor,omitempty" validate:"omitempty,max=128"`
}

// RetryTaskRequest represents the request body of a task retry.
type RetryTaskRequest struct {
	Quality string `json:"quality,omitempty" validate:"omitempty,max=32"`
	Format  string `json:"format,omitempty" validate:"omitempty,max=16"`
	Actor   string `json:"actor,omitempty" validate:"omitempty,max=128"`
}

// CancelRequest names who cancels.
type CancelRequest struct {
	Actor string `json:"actor" validate:"required,max=128"`
}

// ProgressRequest carries a worker progress update. Out of range values
// are clamped by the task.
type ProgressRequest struct {
	Percent int `json:"percent"`
}

// FailRequest carries a worker failure.
type FailRequest struct {
	ErrorMessage string `json:"error_message" validate:"required,max=2048"`
}

// DeliveredFile is one file link handed to the user.
type DeliveredFile struct {
	TaskID      uuid.UUID `json:"task_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	URL         string    `json:"url"`
}

// DeliveryPayload is the resolved delivery of a finished batch.
type DeliveryPayload struct {
	BatchID        uuid.UUID       `json:"batch_id"`
	DeliveryMethod DeliveryMethod  `json:"delivery_method"`
	Files          []DeliveredFile `json:"files,omitempty"`
	Collection     *CollectionRef  `json:"collection,omitempty"`
	Unresolved     []uuid.UUID     `json:"unresolved,omitempty"`
	ResolvedAt     time.Time       `json:"resolved_at"`
}

// BatchResponse is the API view of a batch with its tasks.
type BatchResponse struct {
	Batch *Batch  `json:"batch"`
	Tasks []*Task `json:"tasks"`
}
