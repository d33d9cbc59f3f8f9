package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"unvocal/internal/models"
	"unvocal/internal/separation"
	"unvocal/internal/storage"
)

// MsgInterrupted is recorded for jobs that were running when the previous process stopped.
const MsgInterrupted = "Processing was interrupted by a server restart. Please submit the video again."

// Processor runs the vocal removal for one job.
type Processor interface {
	Process(ctx context.Context, job *models.VocalJob, hooks separation.Hooks) (*separation.Result, error)
}

// Worker processes queued jobs one at a time
type Worker struct {
	jobRepo   *storage.JobRepository
	processor Processor
	logger    *slog.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewWorker creates a new worker. A zero retention keeps jobs forever.
func NewWorker(jobRepo *storage.JobRepository, processor Processor, retention time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		jobRepo:   jobRepo,
		processor: processor,
		logger:    logger,
		interval:  1 * time.Second,
		retention: retention,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
}

// SetInterval sets the polling interval
func (w *Worker) SetInterval(interval time.Duration) {
	w.interval = interval
}

// Start fails jobs left running by a previous process, then begins processing jobs
func (w *Worker) Start(ctx context.Context) {
	w.failInterrupted(ctx)
	w.wg.Add(1)
	go w.run(ctx)
	w.logger.Info("worker started", "interval", w.interval)
}

// Stop gracefully stops the worker
func (w *Worker) Stop() {
	close(w.stop)
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.cleanup(ctx)
			w.processNextJob(ctx)
		}
	}
}

// failInterrupted marks jobs still running as failed. Only one worker runs per
// database, so any running row belongs to a process that is gone.
func (w *Worker) failInterrupted(ctx context.Context) {
	n, err := w.jobRepo.FailRunning(ctx, MsgInterrupted)
	if err != nil {
		w.logger.Error("failed to fail interrupted jobs", "error", err)
		return
	}
	if n > 0 {
		w.logger.Warn("failed jobs interrupted by restart", "count", n)
	}
}

// cleanup forgets jobs older than the retention window.
func (w *Worker) cleanup(ctx context.Context) {
	if w.retention <= 0 {
		return
	}
	n, err := w.jobRepo.DeleteCreatedBefore(ctx, w.now().Add(-w.retention))
	if err != nil {
		w.logger.Error("failed to delete expired jobs", "error", err)
		return
	}
	if n > 0 {
		w.logger.Info("deleted expired jobs", "count", n)
	}
}

func (w *Worker) processNextJob(ctx context.Context) {
	job, err := w.jobRepo.GetNextQueued(ctx)
	if err != nil {
		w.logger.Error("failed to get next job", "error", err)
		return
	}
	if job == nil {
		return // No jobs to process
	}

	if err := w.jobRepo.Start(ctx, job.ID); err != nil {
		w.logger.Error("failed to start job", "job_id", job.ID, "error", err)
		return
	}

	logger := w.logger.With("job_id", job.ID)
	logger.Info("processing job", "url", job.YouTubeURL)

	result, err := w.execute(ctx, job, logger)

	// the outcome is recorded even when ctx was cancelled mid-job
	storeCtx := context.WithoutCancel(ctx)
	if err != nil {
		logger.Warn("job failed", "error", err)
		if err := w.jobRepo.Fail(storeCtx, job.ID, err.Error()); err != nil {
			logger.Error("failed to mark job as failed", "error", err)
		}
		return
	}

	if err := w.jobRepo.Complete(storeCtx, job.ID, result.Filename, result.OutputPath); err != nil {
		logger.Error("failed to complete job", "error", err)
		return
	}
	logger.Info("job completed", "filename", result.Filename)
}

// execute runs the processor, turning a panic into a failure of the job.
func (w *Worker) execute(ctx context.Context, job *models.VocalJob, logger *slog.Logger) (result *separation.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("job panicked", "panic", r)
			result, err = nil, fmt.Errorf("Critical failure. Error: %v", r)
		}
	}()

	hooks := separation.Hooks{
		Progress: func(progress string) {
			if err := w.jobRepo.UpdateProgress(ctx, job.ID, progress); err != nil {
				logger.Warn("failed to update progress", "error", err)
			}
		},
		Resolved: func(videoID string) {
			if err := w.jobRepo.SetYouTubeID(ctx, job.ID, videoID); err != nil {
				logger.Warn("failed to record video id", "error", err)
			}
		},
	}
	return w.processor.Process(ctx, job, hooks)
}
