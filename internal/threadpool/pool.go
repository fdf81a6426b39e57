// Package threadpool implements a priority-bucketed task pool: for each integer priority
// there is a LIFO sub-queue, buckets ordered by descending priority, worked by a fixed
// number of goroutines.  This replaces the original framework's pthread-based ThreadPool
// (one std::list<ThreadPoolTask*> picked by linear scan for the highest priority); the
// bucket-per-priority structure is used here instead because the renderer only ever uses
// two priorities (primary=3, secondary=2, see SPEC_FULL.md §4.3) and a bucketed LIFO makes
// "pick highest priority, most recently added" a scan over the few priority buckets rather
// than over every queued task.
package threadpool

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Task is a unit of work submitted to the pool.  Work returns a result code, mirroring the
// original's ThreadPoolTask::work() int contract; the result is delivered on Result.
type Task struct {
	Priority int
	Work     func() int
	Result   chan int
}

// NewTask creates a Task at the given priority (larger == higher priority, matching the
// original) wrapping fn.
func NewTask(priority int, fn func() int) *Task {
	return &Task{Priority: priority, Work: fn, Result: make(chan int, 1)}
}

// Pool is a priority-bucketed LIFO task pool worked by n goroutines.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buckets map[int][]*Task
	sem     *semaphore.Weighted
	running bool
	done    chan struct{}
}

// New starts a pool with n worker goroutines.
func New(n int) *Pool {
	p := &Pool{
		buckets: make(map[int][]*Task),
		sem:     semaphore.NewWeighted(int64(n)),
		running: true,
		done:    make(chan struct{}),
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < n; i++ {
		go p.worker()
	}
	return p
}

// AddTask inserts task into the bucket for its priority (creating it if absent) and wakes a
// worker.
func (p *Pool) AddTask(t *Task) {
	p.mu.Lock()
	p.buckets[t.Priority] = append(p.buckets[t.Priority], t)
	p.cond.Signal()
	p.mu.Unlock()
}

// chooseTask picks the highest-priority nonempty bucket and pops from its back (LIFO),
// assuming the caller holds p.mu.  Returns nil if every bucket is empty.
func (p *Pool) chooseTask() *Task {
	if len(p.buckets) == 0 {
		return nil
	}

	priorities := make([]int, 0, len(p.buckets))
	for pr, bucket := range p.buckets {
		if len(bucket) > 0 {
			priorities = append(priorities, pr)
		}
	}
	if len(priorities) == 0 {
		return nil
	}
	sort.Sort(sort.Reverse(sort.IntSlice(priorities)))

	best := priorities[0]
	bucket := p.buckets[best]
	task := bucket[len(bucket)-1]
	p.buckets[best] = bucket[:len(bucket)-1]
	return task
}

func (p *Pool) worker() {
	for {
		p.mu.Lock()
		for p.running && p.empty() {
			p.cond.Wait()
		}
		if !p.running {
			p.mu.Unlock()
			return
		}
		task := p.chooseTask()
		p.mu.Unlock()

		if task == nil {
			continue
		}

		_ = p.sem.Acquire(context.Background(), 1)
		result := task.Work()
		p.sem.Release(1)

		task.Result <- result
		close(task.Result)

		p.mu.Lock()
		if p.empty() {
			p.cond.Broadcast()
		}
		p.mu.Unlock()
	}
}

// empty reports whether every bucket is empty, assuming the caller holds p.mu.
func (p *Pool) empty() bool {
	for _, bucket := range p.buckets {
		if len(bucket) > 0 {
			return false
		}
	}
	return true
}

// Wait blocks until every bucket is empty, that is until every queued task has been picked
// up by a worker; tasks that are still running when the last one is picked up may not have
// finished when Wait returns.
func (p *Pool) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.empty() {
		p.cond.Wait()
	}
}

// Stop signals all worker goroutines to exit once their current task finishes. Tasks still
// queued when Stop is called are left unprocessed.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.running = false
	p.cond.Broadcast()
	p.mu.Unlock()
}
