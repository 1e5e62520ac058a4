package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBatch(t *testing.T, n int, archive bool) *BatchAggregate {
	t.Helper()
	req := CreateBatchRequest{UserID: "1001", Tier: TierPremium, ArchiveDelivery: archive}
	platforms := make([]string, n)
	for i := 0; i < n; i++ {
		req.Items = append(req.Items, TaskSpec{URL: fmt.Sprintf("https://youtube.com/watch?v=%d", i)})
		platforms[i] = "youtube"
	}
	agg, err := NewBatchAggregate(req, platforms, t0)
	require.NoError(t, err)
	return agg
}

func finish(t *testing.T, task *Task, ok bool) {
	t.Helper()
	require.NoError(t, task.Start(t0))
	if ok {
		require.NoError(t, task.Complete(TaskResult{File: FileMetadata{Name: task.ID.String(), Size: 10, CDNPath: "f/" + task.ID.String()}}, t0))
		return
	}
	require.NoError(t, task.Fail("download failed", t0))
}

func TestNewBatchAggregate(t *testing.T) {
	agg := newBatch(t, 5, false)

	assert.Equal(t, agg.ID, agg.Batch.ID)
	assert.Equal(t, BatchStatusPending, agg.Batch.Status)
	assert.Equal(t, 5, agg.Batch.TotalTasks)
	assert.Len(t, agg.Tasks, 5)
	for i, task := range agg.Tasks {
		assert.Equal(t, TaskStatusPending, task.Status)
		require.NotNil(t, task.BatchID)
		assert.Equal(t, agg.ID, *task.BatchID)
		assert.Equal(t, agg.Batch.TaskIDs[i], task.ID)
	}

	_, err := NewBatchAggregate(CreateBatchRequest{UserID: "1"}, nil, t0)
	assert.Error(t, err)
}

func TestBatchAggregate_RecomputeEndToEnd(t *testing.T) {
	agg := newBatch(t, 5, false)
	retention := DefaultRetentionPolicy()

	for _, task := range agg.Tasks[:4] {
		finish(t, task, true)
		assert.False(t, agg.Recompute(t0, retention))
		assert.Equal(t, BatchStatusProcessing, agg.Batch.Status)
	}
	finish(t, agg.Tasks[4], false)
	assert.True(t, agg.Recompute(t0, retention))

	b := agg.Batch
	assert.Equal(t, 4, b.CompletedCount)
	assert.Equal(t, 1, b.FailedCount)
	assert.Equal(t, 0, b.SkippedCount)
	assert.Equal(t, BatchStatusCompleted, b.Status)
	assert.Equal(t, DeliveryCollection, b.DeliveryMethod)
	assert.Equal(t, int64(40), b.TotalSize)
	require.NotNil(t, b.ExpiresAt)
	assert.True(t, b.ExpiresAt.Equal(t0.Add(retention.Window(TierPremium))))

	// Idempotent: recomputing the same snapshot changes nothing.
	before := *agg.Batch
	assert.False(t, agg.Recompute(t0.Add(time.Hour), retention))
	assert.Equal(t, before.CompletedCount, agg.Batch.CompletedCount)
	assert.Equal(t, before.FailedCount, agg.Batch.FailedCount)
	assert.True(t, before.CompletedAt.Equal(*agg.Batch.CompletedAt))

	candidates := agg.RetryCandidates(true)
	require.Len(t, candidates, 1)
	assert.Equal(t, agg.Tasks[4].ID, candidates[0].ID)
}

func TestBatchAggregate_RecomputeInvariant(t *testing.T) {
	// Every order of outcomes over three tasks ends with the same counters.
	outcomes := [][]string{
		{"ok", "fail", "cancel"},
		{"cancel", "ok", "fail"},
		{"fail", "cancel", "ok"},
	}
	for _, order := range outcomes {
		agg := newBatch(t, 3, false)
		for i, o := range order {
			switch o {
			case "ok":
				finish(t, agg.Tasks[i], true)
			case "fail":
				finish(t, agg.Tasks[i], false)
			case "cancel":
				require.NoError(t, agg.Tasks[i].Cancel("u", t0))
			}
			agg.Recompute(t0, DefaultRetentionPolicy())
		}
		b := agg.Batch
		assert.Equal(t, b.TotalTasks, b.CompletedCount+b.FailedCount+b.SkippedCount)
		assert.Equal(t, 1, b.CompletedCount)
		assert.Equal(t, 1, b.FailedCount)
		assert.Equal(t, 1, b.SkippedCount)
		assert.Equal(t, BatchStatusCompleted, b.Status)
		assert.Equal(t, DeliveryIndividual, b.DeliveryMethod)
	}
}

func TestBatchAggregate_AllFailed(t *testing.T) {
	agg := newBatch(t, 2, false)
	finish(t, agg.Tasks[0], false)
	finish(t, agg.Tasks[1], false)

	assert.True(t, agg.Recompute(t0, DefaultRetentionPolicy()))
	assert.Equal(t, BatchStatusFailed, agg.Batch.Status)
	assert.Len(t, agg.RetryCandidates(true), 2)
}

func TestBatch_ChooseDeliveryMethod(t *testing.T) {
	tests := []struct {
		total   int
		archive bool
		want    DeliveryMethod
	}{
		{total: 2, want: DeliveryIndividual},
		{total: 3, want: DeliveryIndividual},
		{total: 4, want: DeliveryCollection},
		{total: 1, archive: true, want: DeliveryArchive},
	}
	for _, tt := range tests {
		b := &Batch{TotalTasks: tt.total, ArchiveRequested: tt.archive}
		assert.Equal(t, tt.want, b.ChooseDeliveryMethod(), "total=%d archive=%v", tt.total, tt.archive)
	}
}

func TestBatchAggregate_RetryReopensBatch(t *testing.T) {
	agg := newBatch(t, 2, false)
	finish(t, agg.Tasks[0], true)
	finish(t, agg.Tasks[1], false)
	agg.MarkStarted(t0)
	require.True(t, agg.Recompute(t0, DefaultRetentionPolicy()))

	require.NoError(t, agg.Tasks[1].Retry(RetryOptions{}, t0))
	assert.False(t, agg.Recompute(t0, DefaultRetentionPolicy()))

	assert.Equal(t, BatchStatusProcessing, agg.Batch.Status)
	assert.Nil(t, agg.Batch.CompletedAt)
	assert.Nil(t, agg.Batch.ExpiresAt)
	assert.Empty(t, agg.Batch.DeliveryMethod)
	assert.Nil(t, agg.Tasks[0].ExpiresAt)
}

func TestBatchAggregate_CloneIsIndependent(t *testing.T) {
	agg := newBatch(t, 2, false)
	c := agg.Clone()

	require.NoError(t, c.Tasks[0].Start(t0))
	c.Batch.TaskIDs[0] = c.Batch.TaskIDs[1]
	c.Record(SubjectTask, c.Tasks[0].ID, AuditCancel, "x", "a", "b", t0)

	assert.Equal(t, TaskStatusPending, agg.Tasks[0].Status)
	assert.NotEqual(t, agg.Batch.TaskIDs[0], agg.Batch.TaskIDs[1])
	assert.Empty(t, agg.History)
}

func TestRetentionPolicy_Window(t *testing.T) {
	p := DefaultRetentionPolicy()
	order := []RetentionTier{TierFree, TierTrial, TierPremium, TierAdmin, TierOwner}
	for i := 1; i < len(order); i++ {
		assert.Less(t, p.Window(order[i-1]), p.Window(order[i]))
	}
	assert.Equal(t, p.Window(TierFree), p.Window("unknown"))
}

func TestBatchAggregate_CancelledWithoutActor(t *testing.T) {
	agg := newBatch(t, 2, false)
	finish(t, agg.Tasks[0], true)
	require.NoError(t, agg.Tasks[1].Cancel("", t0))
	agg.MarkCancelled("")

	assert.True(t, agg.Recompute(t0, DefaultRetentionPolicy()))
	assert.Equal(t, BatchStatusCancelled, agg.Batch.Status)
	assert.Empty(t, agg.Batch.CancelledBy)

	agg.ClearCancellation()
	require.NoError(t, agg.Tasks[1].Retry(RetryOptions{}, t0))
	finish(t, agg.Tasks[1], false)
	agg.Recompute(t0, DefaultRetentionPolicy())
	assert.Equal(t, BatchStatusCompleted, agg.Batch.Status)
}

func TestBatchAggregate_Expired(t *testing.T) {
	agg := newBatch(t, 1, false)
	assert.False(t, agg.Expired(t0.Add(1000*time.Hour)))

	finish(t, agg.Tasks[0], true)
	agg.Recompute(t0, RetentionPolicy{TierPremium: time.Hour})
	assert.False(t, agg.Expired(t0.Add(30*time.Minute)))
	assert.True(t, agg.Expired(t0.Add(time.Hour)))
}
