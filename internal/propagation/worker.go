package propagation

import (
	"context"
	"log/slog"
	"sync"
)

// resolveJob is a unit of work for the worker pool.
type resolveJob struct {
	index int
	id    string
}

// WorkerPool runs a fixed number of goroutines over one frame of position
// queries.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// ResolveBatch applies resolve to every id and returns placements in input
// order together with fix and no-fix counts. When ctx is cancelled the
// remaining ids are left as NoFix and counted as misses.
func (wp *WorkerPool) ResolveBatch(ctx context.Context, ids []string, resolve func(id string) Fix) ([]Placement, int, int) {
	if len(ids) == 0 {
		return nil, 0, 0
	}

	placements := make([]Placement, len(ids))
	for i, id := range ids {
		placements[i] = Placement{ID: id, Fix: NoFix}
	}

	jobs := make(chan resolveJob, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				// Each index is written by exactly one worker.
				placements[job.index].Fix = resolve(job.id)
			}
		}()
	}

	func() {
		defer close(jobs)
		for i, id := range ids {
			select {
			case jobs <- resolveJob{index: i, id: id}:
			case <-ctx.Done():
				wp.logger.Debug("frame batch cancelled", "queued", i, "total", len(ids))
				return
			}
		}
	}()
	wg.Wait()

	var fixes, misses int
	for _, p := range placements {
		if p.Fix.OK() {
			fixes++
		} else {
			misses++
		}
	}
	return placements, fixes, misses
}
