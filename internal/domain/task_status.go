package domain

// TaskStatus represents the current state of a Task.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsTerminal reports whether no further worker transition is possible
// without an explicit retry.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// BatchStatus represents the aggregate state of a Batch.
type BatchStatus string

const (
	BatchStatusPending    BatchStatus = "pending"
	BatchStatusProcessing BatchStatus = "processing"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
	BatchStatusCancelled  BatchStatus = "cancelled"
)

func (s BatchStatus) IsTerminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed || s == BatchStatusCancelled
}

// DeliveryMethod describes how the files of a finished batch reach the user.
type DeliveryMethod string

const (
	DeliveryIndividual DeliveryMethod = "individual"
	DeliveryArchive    DeliveryMethod = "archive"
	DeliveryCollection DeliveryMethod = "collection"
)

// UsesCollection reports whether the method is served by a CDN collection.
func (m DeliveryMethod) UsesCollection() bool {
	return m == DeliveryArchive || m == DeliveryCollection
}
