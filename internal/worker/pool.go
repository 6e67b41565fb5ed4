package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

type indexedJob struct {
	index int
	job   Job
}

type indexedResult struct {
	index  int
	result Result
}

// Pool manages a pool of workers that execute jobs concurrently.
// Wait returns results in submission order.
type Pool struct {
	workers    int
	jobQueue   chan indexedJob
	collector  *ResultCollector
	submitted  int
	wg         sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// NewPoolWithContext creates a pool whose jobs observe ctx
func NewPoolWithContext(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan indexedJob, workers*2),
		collector:  NewResultCollector(),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the worker pool
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker is the worker goroutine that processes jobs
func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case ij, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.collector.add(ij.index, ij.job.Execute(p.ctx))
		}
	}
}

// Submit submits a job to the pool for execution. A job submitted after the
// context is done is dropped but keeps its slot in the results. It is not
// safe to call Submit concurrently with itself or after Wait.
func (p *Pool) Submit(job Job) {
	ij := indexedJob{index: p.submitted, job: job}
	p.submitted++
	select {
	case <-p.ctx.Done():
	case p.jobQueue <- ij:
	}
}

// Wait waits for all submitted jobs and returns one slot per Submit call in
// submission order. Jobs dropped by context cancellation leave a nil slot.
func (p *Pool) Wait() []Result {
	close(p.jobQueue)
	p.wg.Wait()
	p.cancelFunc()
	return p.collector.Results(p.submitted)
}

// ResultCollector gathers results from concurrent workers
type ResultCollector struct {
	results []indexedResult
	mu      sync.Mutex
}

// NewResultCollector creates a new result collector
func NewResultCollector() *ResultCollector {
	return &ResultCollector{}
}

// add records the result of the job submitted at index (thread-safe)
func (c *ResultCollector) add(index int, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, indexedResult{index: index, result: result})
}

// Results returns n slots ordered by index; indexes with no result are nil
func (c *ResultCollector) Results(n int) []Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Result, n)
	for _, r := range c.results {
		if r.index >= 0 && r.index < n {
			out[r.index] = r.result
		}
	}
	return out
}
