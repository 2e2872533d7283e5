// Package workerpool implements a fixed-size pool of goroutines consuming
// submitted closures. Tasks are assumed independent: the pool does not
// serialize per-connection work — that is the caller's responsibility (see
// internal/reactor's busy-flag protocol).
package workerpool

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of work submitted to the pool.
type Task func()

// Pool is a fixed-size set of worker goroutines draining a shared task
// queue. The zero value is not usable; construct with New.
type Pool struct {
	tasks    chan Task
	group    *errgroup.Group
	closeOnc sync.Once
}

// New starts n worker goroutines (default 8 if n <= 0) pulling from an
// internal task queue of the given backlog capacity.
func New(n, backlog int) *Pool {
	if n <= 0 {
		n = 8
	}
	if backlog <= 0 {
		backlog = 1024
	}

	p := &Pool{
		tasks: make(chan Task, backlog),
		group: &errgroup.Group{},
	}

	for i := 0; i < n; i++ {
		p.group.Go(func() error {
			for task := range p.tasks {
				task()
			}
			return nil
		})
	}
	return p
}

// Submit enqueues a task for execution by some worker. It blocks if the
// internal queue is at capacity.
func (p *Pool) Submit(task Task) {
	p.tasks <- task
}

// TrySubmit enqueues a task without blocking, returning false if the queue
// is currently full.
func (p *Pool) TrySubmit(task Task) bool {
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Shutdown closes the task queue so workers exit once they've drained it,
// then waits for all of them to finish their current task. Workers never
// abandon a task mid-execution — shutdown is cooperative.
func (p *Pool) Shutdown() {
	p.closeOnc.Do(func() { close(p.tasks) })
	_ = p.group.Wait()
}
