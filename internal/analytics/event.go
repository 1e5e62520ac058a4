package analytics

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventBatchCreated   EventType = "batch.created"
	EventBatchTerminal  EventType = "batch.terminal"
	EventBatchCancelled EventType = "batch.cancelled"
	EventBatchRetried   EventType = "batch.retried"
	EventTaskCreated    EventType = "task.created"
	EventTaskTransition EventType = "task.transition"
	EventDeliveryReady  EventType = "delivery.ready"
)

// Event is a lifecycle fact published after the change is committed.
type Event struct {
	Type    EventType  `json:"type"`
	TaskID  *uuid.UUID `json:"task_id,omitempty"`
	BatchID *uuid.UUID `json:"batch_id,omitempty"`
	From    string     `json:"from,omitempty"`
	To      string     `json:"to,omitempty"`
	Actor   string     `json:"actor,omitempty"`
	At      time.Time  `json:"at"`
}
