package service

import (
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Job is a unit of work run by the pool.
type Job func(ctx context.Context) error

type jobRequest struct {
	ctx    context.Context
	job    Job
	result chan error
}

// WorkerPool runs jobs on a fixed set of goroutines. Every submitted job
// gets exactly one result, even if the pool context is cancelled first.
type WorkerPool struct {
	jobs   chan jobRequest
	logger Logger
	ctx    context.Context
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func NewWorkerPool(ctx context.Context, logger Logger) *WorkerPool {
	return &WorkerPool{
		logger: logger,
		ctx:    ctx,
	}
}

// Start begins the worker pool with the specified number of workers
func (wp *WorkerPool) Start(workers int) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.jobs != nil || wp.closed {
		return
	}
	wp.jobs = make(chan jobRequest, workers)
	for i := 0; i < workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// Stop stops accepting jobs and waits for queued ones to finish.
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.closed {
		wp.mu.Unlock()
		return
	}
	wp.closed = true
	if wp.jobs != nil {
		close(wp.jobs)
	}
	wp.mu.Unlock()

	wp.wg.Wait()
}

// Submit queues job and returns a channel that receives its error. It blocks
// while the queue is full.
func (wp *WorkerPool) Submit(ctx context.Context, job Job) <-chan error {
	result := make(chan error, 1)

	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed || wp.jobs == nil {
		result <- ErrPoolClosed
		return result
	}

	select {
	case wp.jobs <- jobRequest{ctx: ctx, job: job, result: result}:
	case <-ctx.Done():
		result <- ctx.Err()
	case <-wp.ctx.Done():
		result <- ErrPoolClosed
	}
	return result
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for req := range wp.jobs {
		req.result <- wp.run(req)
	}
}

func (wp *WorkerPool) run(req jobRequest) (err error) {
	if err := req.ctx.Err(); err != nil {
		return err
	}
	if wp.ctx.Err() != nil {
		return ErrPoolClosed
	}
	defer func() {
		if r := recover(); r != nil {
			wp.logger.Errorf("Worker recovered from panic: %v", r)
			err = errors.Errorf("job panicked: %v", r)
		}
	}()
	return req.job(req.ctx)
}
