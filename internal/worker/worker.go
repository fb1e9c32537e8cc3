// Package worker implements the scrape job execution loop.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Bai-ee/Agent-cy/internal/metrics"
	"github.com/Bai-ee/Agent-cy/internal/scrape"
)

// Config controls Worker behavior.
type Config struct {
	// Concurrency bounds how many URLs of one job run in parallel.
	Concurrency int
	// Topic is the Pub/Sub topic for job completion events.
	Topic string
}

// Worker consumes queue items and executes the extraction pipeline for each
// URL of a job, preserving the order of the job's URL list in its results.
type Worker struct {
	queue     scrape.Queue
	jobStore  scrape.JobStore
	blobStore scrape.BlobStore
	publisher scrape.Publisher
	pipeline  *Pipeline
	clock     scrape.Clock
	cfg       Config
	logger    *zap.Logger
}

// CompletionEvent is the payload published when a job reaches a terminal
// state.
type CompletionEvent struct {
	JobID      string             `json:"job_id"`
	Status     scrape.JobStatus   `json:"status"`
	Counters   scrape.JobCounters `json:"counters"`
	ResultsURI string             `json:"results_uri,omitempty"`
	FinishedAt int64              `json:"finished_at"`
}

// New constructs a Worker.
func New(
	queue scrape.Queue,
	jobStore scrape.JobStore,
	blobStore scrape.BlobStore,
	publisher scrape.Publisher,
	pipeline *Pipeline,
	clock scrape.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Worker{
		queue:     queue,
		jobStore:  jobStore,
		blobStore: blobStore,
		publisher: publisher,
		pipeline:  pipeline,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item scrape.QueueItem) {
	job, err := w.jobStore.GetJob(ctx, item.JobID)
	if err != nil {
		w.logger.Error("load job failed", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}
	if job.Status.IsTerminal() {
		w.logger.Warn("job already terminal, skipping", zap.String("job_id", job.ID))
		return
	}

	if err := w.jobStore.UpdateJobStatus(ctx, job.ID, scrape.JobStatusRunning, "", scrape.JobCounters{}); err != nil {
		w.logger.Error("update job status failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	metrics.JobStarted()
	defer metrics.JobDone()

	results := w.ProcessURLs(ctx, job)

	counters := scrape.JobCounters{Results: len(results)}
	for _, r := range results {
		if r.Success {
			counters.Succeeded++
		}
	}

	status := scrape.JobStatusCompleted
	errText := ""
	if err := w.persistResults(ctx, results); err != nil {
		// Losing results is the one failure that fails a job; pages that
		// merely failed to fetch are still a completed run.
		status = scrape.JobStatusFailed
		errText = err.Error()
		w.logger.Error("persist results failed", zap.String("job_id", job.ID), zap.Error(err))
	}

	resultsURI := w.dumpResults(ctx, job.ID, results)

	if err := w.jobStore.UpdateJobStatus(ctx, job.ID, status, errText, counters); err != nil {
		w.logger.Error("final job status update failed", zap.String("job_id", job.ID), zap.Error(err))
	}
	metrics.JobFinished(string(status))

	w.publishCompletion(ctx, job.ID, status, counters, resultsURI)
}

// ProcessURLs runs the pipeline over every URL of the job with bounded
// parallelism. The returned slice is index-aligned with job.URLs. A canceled
// context stops new URLs from starting; already-running ones finish on their
// own deadlines.
func (w *Worker) ProcessURLs(ctx context.Context, job scrape.Job) []scrape.PageResult {
	concurrency := w.cfg.Concurrency
	if job.Options.Concurrency > 0 {
		concurrency = job.Options.Concurrency
	}
	if concurrency > len(job.URLs) {
		concurrency = len(job.URLs)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]scrape.PageResult, len(job.URLs))
	slots := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	launched := 0

	for i, url := range job.URLs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		launched++
		slots <- struct{}{}
		go func(index int, u string) {
			defer wg.Done()
			defer func() { <-slots }()
			results[index] = w.pipeline.Process(ctx, job, index, u)
		}(i, url)
	}
	wg.Wait()

	if launched < len(job.URLs) {
		for i := launched; i < len(job.URLs); i++ {
			results[i] = scrape.PageResult{
				JobID:     job.ID,
				Index:     i,
				URL:       job.URLs[i],
				Success:   false,
				ErrorText: "job canceled before fetch",
				FetchedAt: w.clock.Now(),
			}
		}
	}
	return results
}

func (w *Worker) persistResults(ctx context.Context, results []scrape.PageResult) error {
	for _, r := range results {
		if err := w.jobStore.RecordResult(ctx, r); err != nil {
			return fmt.Errorf("record result %d: %w", r.Index, err)
		}
	}
	return nil
}

// dumpResults writes the ordered result set as one JSON artifact. Best
// effort: a failed dump only loses the artifact, not the job.
func (w *Worker) dumpResults(ctx context.Context, jobID string, results []scrape.PageResult) string {
	if w.blobStore == nil {
		return ""
	}
	data, err := json.Marshal(results)
	if err != nil {
		w.logger.Warn("marshal results dump failed", zap.String("job_id", jobID), zap.Error(err))
		return ""
	}
	uri, err := w.blobStore.PutObject(ctx, jobID+"/results.json", "application/json", data)
	if err != nil {
		w.logger.Warn("results dump upload failed", zap.String("job_id", jobID), zap.Error(err))
		return ""
	}
	metrics.ArtifactUploaded("results_json")
	return uri
}

// publishCompletion emits the terminal event. Publish failures are logged
// only; the job outcome is already persisted.
func (w *Worker) publishCompletion(
	ctx context.Context,
	jobID string,
	status scrape.JobStatus,
	counters scrape.JobCounters,
	resultsURI string,
) {
	if w.publisher == nil {
		return
	}
	event := CompletionEvent{
		JobID:      jobID,
		Status:     status,
		Counters:   counters,
		ResultsURI: resultsURI,
		FinishedAt: w.clock.Now().Unix(),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.Topic, event); err != nil {
		w.logger.Warn("completion publish failed", zap.String("job_id", jobID), zap.Error(err))
	}
}
