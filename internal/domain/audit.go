package domain

import (
	"time"

	"github.com/google/uuid"
)

type SubjectKind string

const (
	SubjectTask  SubjectKind = "task"
	SubjectBatch SubjectKind = "batch"
)

type AuditAction string

const (
	AuditCancel AuditAction = "cancel"
	AuditRetry  AuditAction = "retry"
)

// AuditEntry is an append-only record of an operator action on a task or
// batch. Entries are never edited once recorded.
type AuditEntry struct {
	ID          uuid.UUID   `json:"id"`
	SubjectKind SubjectKind `json:"subject_kind"`
	SubjectID   uuid.UUID   `json:"subject_id"`
	Action      AuditAction `json:"action"`
	Actor       string      `json:"actor,omitempty"`
	FromStatus  string      `json:"from_status"`
	ToStatus    string      `json:"to_status"`
	At          time.Time   `json:"at"`
}
