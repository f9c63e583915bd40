package services

import (
	"context"
	"sync"

	"github.com/custodia-labs/sentry-tap/internal/core/domain"
)

// defaultFetchWorkers sizes the fetch pool. Stream syncs are strictly
// sequential, so one worker is sufficient; the pool stays bounded even
// if that ever changes.
const defaultFetchWorkers = 1

// fetchTask is one blocking call handed to the pool.
type fetchTask struct {
	ctx  context.Context
	run  func(context.Context) error
	done chan error
}

// fetchPool offloads blocking network calls to background workers so
// the orchestrator goroutine never blocks on I/O directly. Do submits
// one call and awaits its single result; there is no fan-out.
type fetchPool struct {
	tasks chan fetchTask
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// newFetchPool starts a pool with the given number of workers.
func newFetchPool(workers int) *fetchPool {
	if workers <= 0 {
		workers = defaultFetchWorkers
	}
	p := &fetchPool{tasks: make(chan fetchTask)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *fetchPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task.done <- task.run(task.ctx)
	}
}

// Do runs one blocking call on a pool worker and waits for its result.
// The call's internal retries complete before Do returns.
func (p *fetchPool) Do(ctx context.Context, run func(context.Context) error) error {
	task := fetchTask{ctx: ctx, run: run, done: make(chan error, 1)}

	// The lock is held across the send so Close cannot tear down the
	// channel between the closed check and the submission.
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return domain.ErrEngineClosed
	}
	select {
	case p.tasks <- task:
		p.mu.Unlock()
	case <-ctx.Done():
		p.mu.Unlock()
		return ctx.Err()
	}

	// The submitted call observes ctx itself; waiting on done keeps
	// the resume point strictly after the call finishes.
	return <-task.done
}

// Close stops the workers after in-flight tasks finish.
func (p *fetchPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.tasks)
	p.wg.Wait()
}
