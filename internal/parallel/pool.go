// Package parallel runs command recording tasks on a work-stealing pool.
package parallel

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// ErrPoolClosed is returned by Run after Close.
var ErrPoolClosed = errors.New("parallel: pool closed")

// Task is one unit of recording work.
type Task func() error

// WorkerPool is a pool of goroutines for parallel command recording.
//
// Each worker owns a queue. Tasks are distributed round-robin; an idle
// worker steals from the other queues so one slow recording does not hold
// up the rest.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers    int
	workQueues []chan func()

	// notify wakes idle workers so they can steal newly queued work.
	notify chan struct{}

	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool

	executed atomic.Uint64
	stolen   atomic.Uint64
}

// NewWorkerPool creates a pool with the given number of workers.
// If workers is 0 or negative, GOMAXPROCS is used.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		notify:     make(chan struct{}, workers),
		done:       make(chan struct{}),
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	own := p.workQueues[id]

	for {
		select {
		case <-p.done:
			p.drainQueue(own)
			return
		case work := <-own:
			p.exec(work)
			continue
		default:
		}

		if work := p.steal(id); work != nil {
			p.stolen.Add(1)
			p.exec(work)
			continue
		}

		select {
		case <-p.done:
			p.drainQueue(own)
			return
		case work := <-own:
			p.exec(work)
		case <-p.notify:
		}
	}
}

func (p *WorkerPool) exec(work func()) {
	if work == nil {
		return
	}
	p.executed.Add(1)
	work()
}

func (p *WorkerPool) drainQueue(queue chan func()) {
	for {
		select {
		case work := <-queue:
			p.exec(work)
		default:
			return
		}
	}
}

// steal takes one task from another worker's queue, or returns nil.
func (p *WorkerPool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// Run executes every task and waits for all of them. Errors are joined in
// task order; a panicking task is reported as an error. Tasks not yet
// started when ctx is done are skipped and report ctx.Err().
func (p *WorkerPool) Run(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}
	if !p.running.Load() {
		return ErrPoolClosed
	}

	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	wg.Add(len(tasks))

	for i, task := range tasks {
		wrapped := func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return
			}
			errs[i] = runTask(i, task)
		}

		select {
		case p.workQueues[i%p.workers] <- wrapped:
			select {
			case p.notify <- struct{}{}:
			default:
			}
		case <-p.done:
			errs[i] = ErrPoolClosed
			wg.Done()
		}
	}

	wg.Wait()
	return errors.Join(errs...)
}

func runTask(i int, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parallel: task %d panicked: %v", i, r)
		}
	}()
	if task == nil {
		return nil
	}
	if err := task(); err != nil {
		return fmt.Errorf("task %d: %w", i, err)
	}
	return nil
}

// Close stops accepting work, finishes queued tasks and stops the
// workers. Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int { return p.workers }

// IsRunning reports whether the pool still accepts work.
func (p *WorkerPool) IsRunning() bool { return p.running.Load() }

// Executed returns the number of tasks started since the pool was created.
func (p *WorkerPool) Executed() uint64 { return p.executed.Load() }

// Stolen returns how many of them were stolen from another worker.
func (p *WorkerPool) Stolen() uint64 { return p.stolen.Load() }

// QueuedWork returns the approximate number of queued tasks.
func (p *WorkerPool) QueuedWork() int {
	total := 0
	for _, q := range p.workQueues {
		total += len(q)
	}
	return total
}
