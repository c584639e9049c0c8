// Package pool dispatches claimed queue entries to a bounded set of workers
// and resolves each one to a terminal state exactly once.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/harekaze/dirq/internal/events"
	"github.com/harekaze/dirq/internal/model"
	"github.com/harekaze/dirq/internal/queue"
)

// Runner executes the processing logic for one claimed job. It is an
// external collaborator: any returned error resolves the entry to failed.
type Runner interface {
	Run(ctx context.Context, job model.Job) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, job model.Job) error

func (f RunnerFunc) Run(ctx context.Context, job model.Job) error {
	return f(ctx, job)
}

// Pool executes one worker per successfully claimed candidate, at most
// maxConcurrency at a time. Dispatch blocks while all slots are taken; that
// is backpressure, not an error.
type Pool struct {
	storage *queue.Storage
	runner  Runner
	bus     *events.Bus
	log     zerolog.Logger
	slots   *semaphore.Weighted
	wg      sync.WaitGroup
}

// New creates a pool. maxConcurrency must be positive.
func New(storage *queue.Storage, runner Runner, bus *events.Bus, maxConcurrency int, log zerolog.Logger) (*Pool, error) {
	if maxConcurrency <= 0 {
		return nil, fmt.Errorf("max concurrency must be positive, got %d", maxConcurrency)
	}
	return &Pool{
		storage: storage,
		runner:  runner,
		bus:     bus,
		log:     log,
		slots:   semaphore.NewWeighted(int64(maxConcurrency)),
	}, nil
}

// Process consumes candidate filenames until the stream closes, then waits
// for every in-flight worker to reach a terminal state. ctx aborts slot
// acquisition and is passed to running jobs; unclaimed candidates stay in
// the inbox for the next run.
func (p *Pool) Process(ctx context.Context, candidates <-chan string) {
	for name := range candidates {
		if err := p.slots.Acquire(ctx, 1); err != nil {
			break
		}

		entry, err := p.storage.Claim(name)
		if err != nil {
			p.slots.Release(1)
			if errors.Is(err, queue.ErrClaimMissed) {
				p.bus.Publish(events.EventClaimMissed, map[string]interface{}{"name": name})
			} else {
				p.log.Error().Err(err).Str("name", name).Msg("claim failed")
			}
			continue
		}

		p.wg.Add(1)
		go p.runWorker(ctx, entry)
	}

	p.wg.Wait()
}

func (p *Pool) runWorker(ctx context.Context, entry queue.Entry) {
	defer p.wg.Done()
	defer p.slots.Release(1)

	job, err := p.storage.Read(entry)
	if err != nil {
		p.resolve(entry, model.OutcomeFailed, map[string]interface{}{
			"name":  entry.Name,
			"error": err.Error(),
		})
		return
	}

	p.bus.Publish(events.EventJobStarted, map[string]interface{}{
		"job_id": job.ID,
		"type":   job.Type,
	})

	if runErr := p.execute(ctx, job); runErr != nil {
		p.resolve(entry, model.OutcomeFailed, map[string]interface{}{
			"job_id": job.ID,
			"type":   job.Type,
			"error":  runErr.Error(),
		})
		return
	}

	p.resolve(entry, model.OutcomeFinished, map[string]interface{}{
		"job_id": job.ID,
		"type":   job.Type,
	})
}

// execute runs the job logic behind a recover guard so a panicking job
// resolves to failed instead of killing the pool.
func (p *Pool) execute(ctx context.Context, job model.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return p.runner.Run(ctx, job)
}

func (p *Pool) resolve(entry queue.Entry, outcome model.Outcome, data map[string]interface{}) {
	if _, err := p.storage.Resolve(entry, outcome); err != nil {
		p.log.Error().Err(err).Str("name", entry.Name).Msg("resolve failed")
		return
	}

	eventType := events.EventJobFinished
	if outcome == model.OutcomeFailed {
		eventType = events.EventJobFailed
	}
	p.bus.Publish(eventType, data)
}
