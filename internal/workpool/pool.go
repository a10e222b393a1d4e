package workpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"archivist/pkg/logger"
)

// Handler processes one job. workerID identifies the goroutine for logging.
type Handler[J, R any] func(ctx context.Context, workerID int, job J) R

// Pool runs a fixed number of workers over a job channel and publishes
// one result per job on a result channel.
type Pool[J, R any] struct {
	numWorkers  int
	jobQueue    chan J
	resultQueue chan R
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	handle      Handler[J, R]
	processed   atomic.Int64
	logger      logger.Logger
}

// New creates a pool of numWorkers workers (at least one)
func New[J, R any](numWorkers int, handle Handler[J, R], log logger.Logger) *Pool[J, R] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool[J, R]{
		numWorkers:  numWorkers,
		jobQueue:    make(chan J, numWorkers*2), // Buffer size = 2x workers
		resultQueue: make(chan R, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		handle:      handle,
		logger:      log,
	}
}

// Start launches the workers
func (p *Pool[J, R]) Start() {
	p.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the job queue, waits for queued jobs to finish and closes
// the result channel. Results must be drained concurrently.
func (p *Pool[J, R]) Stop() {
	close(p.jobQueue)
	p.wg.Wait()
	close(p.resultQueue)
	p.cancel()

	p.logger.DebugWithFields("Worker pool stopped", map[string]interface{}{
		"processed": p.processed.Load(),
	})
}

// Submit queues a job, blocking while the queue is full. It fails once
// Stop has returned.
func (p *Pool[J, R]) Submit(job J) error {
	if p.ctx.Err() != nil {
		return fmt.Errorf("worker pool is shutting down")
	}
	select {
	case p.jobQueue <- job:
		return nil
	case <-p.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel; it is closed by Stop
func (p *Pool[J, R]) Results() <-chan R {
	return p.resultQueue
}

func (p *Pool[J, R]) Workers() int {
	return p.numWorkers
}

// Processed returns the number of jobs handled so far
func (p *Pool[J, R]) Processed() int64 {
	return p.processed.Load()
}

func (p *Pool[J, R]) worker(id int) {
	defer p.wg.Done()

	for job := range p.jobQueue {
		result := p.handle(p.ctx, id, job)
		p.processed.Add(1)
		p.resultQueue <- result
	}

	p.logger.DebugWithFields("Worker stopping - job queue closed", map[string]interface{}{
		"worker_id": id,
	})
}
