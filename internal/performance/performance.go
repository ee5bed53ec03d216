// Package performance provides the worker pool used for concurrent model
// fitting and the rate limiter guarding market data APIs.
package performance

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Task is one unit of work handed to the pool, typically a model fit.
type Task func(ctx context.Context) error

// job binds a task to the slot its error is written to.
type job struct {
	ctx  context.Context
	task Task
	err  *error
	done *sync.WaitGroup
}

// WorkerPool runs batches of tasks on a fixed set of goroutines.
type WorkerPool struct {
	size int
	jobs chan job

	mu      sync.Mutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

// NewWorkerPool creates a pool with size workers, or one per CPU when size
// is not positive.
func NewWorkerPool(size int) *WorkerPool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &WorkerPool{size: size, jobs: make(chan job)}
}

// Start launches the workers. Calling it twice is a no-op.
func (p *WorkerPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go p.loop()
	}
}

func (p *WorkerPool) loop() {
	defer p.wg.Done()
	for j := range p.jobs {
		*j.err = execute(j.ctx, j.task)
		j.done.Done()
	}
}

// execute runs a task, converting a panic into an error.
func execute(ctx context.Context, task Task) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}

// RunAll runs every task and blocks until all have finished. errs[i] is the
// result of tasks[i]. Tasks not yet dispatched when ctx is done report
// ctx.Err(). A pool that was never started, or has been stopped, runs the
// batch on short-lived goroutines bounded by its size.
func (p *WorkerPool) RunAll(ctx context.Context, tasks []Task) []error {
	errs := make([]error, len(tasks))
	var done sync.WaitGroup
	done.Add(len(tasks))

	p.mu.Lock()
	pooled := p.started && !p.stopped
	p.mu.Unlock()

	if !pooled {
		sem := make(chan struct{}, p.size)
		for i, task := range tasks {
			sem <- struct{}{}
			go func(i int, task Task) {
				defer func() { <-sem; done.Done() }()
				errs[i] = execute(ctx, task)
			}(i, task)
		}
		done.Wait()
		return errs
	}

	for i, task := range tasks {
		select {
		case p.jobs <- job{ctx: ctx, task: task, err: &errs[i], done: &done}:
		case <-ctx.Done():
			errs[i] = ctx.Err()
			done.Done()
		}
	}
	done.Wait()
	return errs
}

// Stop drains the workers. RunAll must not be running concurrently.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.stopped = true
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// RateLimiter is a token bucket refilled continuously at rate tokens per
// second up to burst.
type RateLimiter struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a full bucket.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{rate: rate, burst: float64(burst), tokens: float64(burst), last: time.Now()}
}

// reserve takes a token if one is available, otherwise reports how long
// until one will be.
func (r *RateLimiter) reserve(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens += now.Sub(r.last).Seconds() * r.rate
	if r.tokens > r.burst {
		r.tokens = r.burst
	}
	r.last = now

	if r.tokens >= 1 {
		r.tokens--
		return 0
	}
	if r.rate <= 0 {
		return time.Hour
	}
	return time.Duration((1 - r.tokens) / r.rate * float64(time.Second))
}

// Allow takes a token without blocking.
func (r *RateLimiter) Allow() bool {
	return r.reserve(time.Now()) == 0
}

// Wait blocks until a token is taken or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		delay := r.reserve(time.Now())
		if delay == 0 {
			return nil
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
