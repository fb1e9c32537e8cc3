package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Bai-ee/Agent-cy/internal/scrape"
)

func TestJobStoreLifecycle(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()

	job := scrape.Job{ID: "job-1", URLs: []string{"https://example.com"}, Status: scrape.JobStatusQueued}
	require.NoError(t, store.CreateJob(ctx, job))
	require.Error(t, store.CreateJob(ctx, job), "duplicate IDs must be rejected")

	require.NoError(t, store.UpdateJobStatus(ctx, "job-1", scrape.JobStatusRunning, "", scrape.JobCounters{}))
	got, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, scrape.JobStatusRunning, got.Status)
	require.NotNil(t, got.Started)
	require.Nil(t, got.Finished)

	counters := scrape.JobCounters{Results: 1, Succeeded: 1}
	require.NoError(t, store.UpdateJobStatus(ctx, "job-1", scrape.JobStatusCompleted, "", counters))
	got, err = store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, scrape.JobStatusCompleted, got.Status)
	require.Equal(t, counters, got.Counters)
	require.NotNil(t, got.Finished)
}

func TestJobStoreUnknownJob(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()

	_, err := store.GetJob(ctx, "missing")
	require.Error(t, err)
	require.Error(t, store.UpdateJobStatus(ctx, "missing", scrape.JobStatusRunning, "", scrape.JobCounters{}))
}

func TestJobStoreResultsOrderedByIndex(t *testing.T) {
	store := NewJobStore()
	ctx := context.Background()

	// Results arrive out of order under concurrency; listing restores input order.
	require.NoError(t, store.RecordResult(ctx, scrape.PageResult{JobID: "job-1", Index: 2, URL: "c"}))
	require.NoError(t, store.RecordResult(ctx, scrape.PageResult{JobID: "job-1", Index: 0, URL: "a"}))
	require.NoError(t, store.RecordResult(ctx, scrape.PageResult{JobID: "job-1", Index: 1, URL: "b"}))

	results, err := store.ListResults(ctx, "job-1")
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, []string{"a", "b", "c"}, []string{results[0].URL, results[1].URL, results[2].URL})

	empty, err := store.ListResults(ctx, "other")
	require.NoError(t, err)
	require.Empty(t, empty)
}
