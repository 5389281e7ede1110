// Package pools provides the work-stealing goroutine pool the engine uses
// to run asynchronous handlers with a bounded fan-out.
package pools

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned when submitting to a closed pool
var ErrPoolClosed = errors.New("worker pool is closed")

// Task represents a unit of work
type Task func()

// WorkerPool implements a work-stealing goroutine pool
type WorkerPool struct {
	numWorkers int
	queues     []chan Task
	next       atomic.Uint64

	mu     sync.RWMutex // guards queue sends against Close
	closed bool
	wg     sync.WaitGroup

	stats struct {
		tasksSubmitted atomic.Uint64
		tasksCompleted atomic.Uint64
		stealsSuccess  atomic.Uint64
		inlineRuns     atomic.Uint64
	}
}

// NewWorkerPool creates a pool of numWorkers goroutines, one per CPU when
// numWorkers <= 0.
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	p := &WorkerPool{
		numWorkers: numWorkers,
		queues:     make([]chan Task, numWorkers),
	}
	for i := range p.queues {
		p.queues[i] = make(chan Task, 256)
	}

	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.work(i)
	}
	return p
}

// Size returns the number of workers
func (p *WorkerPool) Size() int {
	return p.numWorkers
}

// Submit queues task round-robin. When every queue it tries is full the
// task runs on the caller's goroutine.
func (p *WorkerPool) Submit(task Task) error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	p.stats.tasksSubmitted.Add(1)

	idx := int(p.next.Add(1) % uint64(p.numWorkers))
	for attempt := 0; attempt < 2; attempt++ {
		select {
		case p.queues[idx] <- task:
			p.mu.RUnlock()
			return nil
		default:
			idx = (idx + 1) % p.numWorkers
		}
	}
	p.mu.RUnlock()

	p.stats.inlineRuns.Add(1)
	p.run(task)
	return nil
}

// Do submits task and waits for it to finish or for ctx to be done. The
// task keeps running if ctx ends first.
func (p *WorkerPool) Do(ctx context.Context, task Task) error {
	done := make(chan struct{})
	if err := p.Submit(func() {
		defer close(done)
		task()
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *WorkerPool) run(task Task) {
	defer p.stats.tasksCompleted.Add(1)
	task()
}

func (p *WorkerPool) work(id int) {
	defer p.wg.Done()
	own := p.queues[id]

	for {
		select {
		case task, ok := <-own:
			if !ok {
				return
			}
			p.run(task)
			continue
		default:
		}

		if p.steal(id) {
			continue
		}

		task, ok := <-own
		if !ok {
			return
		}
		p.run(task)
	}
}

// steal runs one task taken from another worker's queue
func (p *WorkerPool) steal(id int) bool {
	for i := 1; i < p.numWorkers; i++ {
		victim := p.queues[(id+i)%p.numWorkers]
		select {
		case task, ok := <-victim:
			if ok {
				p.stats.stealsSuccess.Add(1)
				p.run(task)
				return true
			}
		default:
		}
	}
	return false
}

// Close stops accepting tasks, lets queued tasks drain and waits for the
// workers to exit.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// Stats returns pool statistics
func (p *WorkerPool) Stats() WorkerPoolStats {
	submitted := p.stats.tasksSubmitted.Load()
	completed := p.stats.tasksCompleted.Load()
	return WorkerPoolStats{
		NumWorkers:     p.numWorkers,
		TasksSubmitted: submitted,
		TasksCompleted: completed,
		TasksPending:   submitted - min(submitted, completed),
		StealsSuccess:  p.stats.stealsSuccess.Load(),
		InlineRuns:     p.stats.inlineRuns.Load(),
	}
}

// WorkerPoolStats contains pool statistics
type WorkerPoolStats struct {
	NumWorkers     int
	TasksSubmitted uint64
	TasksCompleted uint64
	TasksPending   uint64
	StealsSuccess  uint64
	InlineRuns     uint64
}
