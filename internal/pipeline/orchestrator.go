package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/pdfsearch/internal/config"
	"github.com/dgallion1/pdfsearch/internal/document"
)

var errShuttingDown = errors.New("pipeline shutting down")

// Sink receives the documents of a successful batch in one call.
type Sink interface {
	Add(docs ...document.Document)
}

// Orchestrator queues batches and runs them one at a time so documents land
// in the collection in submission order.
type Orchestrator struct {
	jobs  *JobStore
	queue chan *Job
	proc  *Processor
	sink  Sink
	log   *slog.Logger
	cfg   config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. Call Start to begin processing.
func NewOrchestrator(cfg config.Config, proc *Processor, sink Sink, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	size := cfg.MaxQueueSize
	if size <= 0 {
		size = 1
	}
	return &Orchestrator{
		jobs:  NewJobStore(cfg.JobTTL),
		queue: make(chan *Job, size),
		proc:  proc,
		sink:  sink,
		log:   log,
		cfg:   cfg,
	}
}

// Start launches the batch worker and the job cleanup loop.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			select {
			case <-workerCtx.Done():
				return
			case job, ok := <-o.queue:
				if !ok {
					return
				}
				o.run(workerCtx, job)
			}
		}
	}()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop cancels in-flight work, waits for the worker to exit and fails any
// batch still queued.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
	for job := range o.queue {
		job.Fail(errShuttingDown)
	}
}

// Submit queues a job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		o.log.Info("job queued", "job_id", job.ID, "files", len(job.Filenames))
		return nil
	default:
		err := fmt.Errorf("job queue is full (%d)", cap(o.queue))
		job.Fail(err)
		return err
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

func (o *Orchestrator) run(ctx context.Context, job *Job) {
	log := o.log.With("job_id", job.ID)
	start := time.Now()
	job.SetStatus(StatusProcessing)

	docs, err := o.proc.ProcessFiles(ctx, job.Files(), job.SetProgress)
	if err != nil {
		log.Error("job failed", "error", err, "elapsed", time.Since(start))
		job.Fail(err)
		return
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	o.sink.Add(docs...)
	job.Complete(ids)
	log.Info("job completed", "documents", len(docs), "elapsed", time.Since(start))
}
