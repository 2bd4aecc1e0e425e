// Package dispatch runs fire-and-forget work on a bounded worker pool. The
// caller never waits on a submitted job; failures are logged centrally and
// counted, never surfaced to the request path that scheduled them.
package dispatch

import (
	"sync"

	"plugin-pipeline/metrics"

	"github.com/rs/zerolog/log"
)

type job struct {
	name string
	run  func() error
}

type Pool struct {
	jobs    chan job
	workers sync.WaitGroup
	pending sync.WaitGroup

	closeOnce sync.Once
}

// NewPool starts workers goroutines consuming submitted jobs.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}

	p := &Pool{
		jobs: make(chan job, 128),
	}

	p.workers.Add(workers)
	for range workers {
		go func() {
			defer p.workers.Done()
			for j := range p.jobs {
				p.execute(j)
			}
		}()
	}

	return p
}

// Submit schedules a named job. It never blocks: when the queue is full the
// job runs on its own goroutine instead.
func (p *Pool) Submit(name string, run func() error) {
	p.pending.Add(1)

	j := job{name: name, run: run}
	select {
	case p.jobs <- j:
	default:
		go p.execute(j)
	}
}

func (p *Pool) execute(j job) {
	defer p.pending.Done()

	if err := j.run(); err != nil {
		metrics.DispatchFailures.WithLabelValues(j.name).Inc()
		log.Error().
			Err(err).
			Str("job", j.name).
			Msg("background job failed")

		return
	}

	log.Debug().Str("job", j.name).Msg("background job completed")
}

// Wait blocks until every job submitted so far has finished. Used by tests to
// observe detached work without changing the caller-never-waits contract.
func (p *Pool) Wait() {
	p.pending.Wait()
}

// Close stops the workers after the queue drains. Submit must not be called
// after Close.
func (p *Pool) Close() {
	p.closeOnce.Do(func() { close(p.jobs) })
	p.workers.Wait()
}
