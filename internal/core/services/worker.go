package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/atlas/internal/core/ports/driven"
	"github.com/custodia-labs/atlas/internal/core/ports/driving"
	"github.com/custodia-labs/atlas/internal/logger"
)

// defaultPollInterval is how often an idle worker checks the queue.
const defaultPollInterval = time.Second

// WorkerPool runs a bounded set of workers that pull tasks from the
// durable queue and hand them to the snapshot service. Request paths only
// enqueue; all snapshot work happens here.
type WorkerPool struct {
	queue   driven.TaskQueue
	service driving.SnapshotService
	workers int
	poll    time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewWorkerPool creates a pool with the given number of workers.
// A non-positive worker count or poll interval selects the defaults.
func NewWorkerPool(queue driven.TaskQueue, service driving.SnapshotService, workers int, poll time.Duration) *WorkerPool {
	if workers <= 0 {
		workers = 2
	}
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &WorkerPool{
		queue:   queue,
		service: service,
		workers: workers,
		poll:    poll,
	}
}

// Start launches the workers. It returns immediately; call Stop to drain.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	logger.Info("Worker pool started with %d workers", p.workers)
}

// Stop signals all workers and waits for in-flight tasks to finish.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
}

// run is one worker's loop: drain the queue, then sleep until the next
// poll tick.
func (p *WorkerPool) run(ctx context.Context, id int) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	p.drain(ctx, id)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.drain(ctx, id)
		}
	}
}

// drain claims and executes tasks until the queue is empty.
func (p *WorkerPool) drain(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		default:
		}

		task, err := p.queue.Dequeue(ctx)
		if err != nil {
			logger.Warn("worker %d: dequeue failed: %v", id, err)
			return
		}
		if task == nil {
			return
		}

		logger.Debug("worker %d: running %s task for snapshot %s", id, task.Kind, task.SnapshotID)
		if err := p.service.Execute(ctx, task); err != nil {
			logger.Warn("worker %d: %s task for snapshot %s failed: %v", id, task.Kind, task.SnapshotID, err)
			if markErr := p.queue.MarkFailed(ctx, task.ID, err.Error()); markErr != nil {
				logger.Warn("worker %d: failed to mark task failed: %v", id, markErr)
			}
			continue
		}
		if err := p.queue.MarkDone(ctx, task.ID); err != nil {
			logger.Warn("worker %d: failed to mark task done: %v", id, err)
		}
	}
}
