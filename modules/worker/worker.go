package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"skagen-studio-server/modules/events"
	"skagen-studio-server/modules/studio"
)

const (
	popTimeout   = 5 * time.Second
	errorBackoff = 5 * time.Second
)

// Generator runs one generation.
type Generator interface {
	Generate(ctx context.Context, in *studio.GenerateInput) (*studio.GenerationResult, error)
}

// Worker pops jobs from the queue and runs them one at a time.
type Worker struct {
	queue     Queue
	generator Generator
	publisher events.Publisher
	now       func() time.Time
}

// NewWorker - Queue Worker 생성
func NewWorker(queue Queue, generator Generator, publisher events.Publisher) *Worker {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Worker{queue: queue, generator: generator, publisher: publisher, now: time.Now}
}

// Run watches the queue until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log.Info().Str("queue", QueueKey).Msg("👀 Watching queue")

	for {
		if ctx.Err() != nil {
			log.Info().Msg("🛑 Queue worker stopped")
			return
		}

		job, err := w.queue.Dequeue(ctx, popTimeout)
		switch {
		case err == nil:
			w.process(ctx, job)
		case errors.Is(err, ErrQueueEmpty):
		case errors.Is(err, ErrJobNotFound):
			log.Warn().Err(err).Msg("⚠️  Skipping job")
		case ctx.Err() != nil:
		default:
			log.Error().Err(err).Msg("❌ Dequeue failed")
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
		}
	}
}

// process runs a single job and records its outcome.
func (w *Worker) process(ctx context.Context, job *Job) {
	log.Info().Str("job_id", job.ID).Msg("🎯 Received new job")

	if job.Input == nil {
		w.setStatus(ctx, &Status{ID: job.ID, State: StateFailed, Error: "job has no input"})
		return
	}
	job.Input.JobID = job.ID

	w.setStatus(ctx, &Status{ID: job.ID, State: StateProcessing})

	result, err := w.generator.Generate(ctx, job.Input)
	st := &Status{ID: job.ID, State: StateSucceeded}
	if result != nil {
		st.ModelUsed = result.ModelUsed
		st.Path = result.Path
	}
	if err != nil {
		st.State = StateFailed
		st.Error = err.Error()
	}
	w.setStatus(ctx, st)

	log.Info().Str("job_id", job.ID).Str("status", st.State).Msg("✅ Job processing completed")
}

func (w *Worker) setStatus(ctx context.Context, st *Status) {
	st.UpdatedAt = w.now().Unix()
	// 종료 직전에도 상태가 기록되도록 별도 context 사용
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := w.queue.SetStatus(writeCtx, st); err != nil {
		log.Error().Err(err).Str("job_id", st.ID).Msg("❌ Failed to update job status")
	}
	w.publisher.Publish(events.Event{
		Type:   events.TypeJobStatus,
		JobID:  st.ID,
		Model:  st.ModelUsed,
		Status: st.State,
		Path:   st.Path,
		Error:  st.Error,
	})
}
