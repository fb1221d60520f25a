package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/freekieb7/poolhttp/worker"

var ErrPoolClosed = errors.New("worker: pool is closed")

// Pool runs submitted jobs on a fixed number of worker goroutines fed from
// a single unbounded queue.
type Pool struct {
	size   int
	queue  *Queue[Job]
	logger *slog.Logger

	// ctx is handed to every job; it is cancelled when Shutdown gives up
	// waiting.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	busy      atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64

	jobCounter  metric.Int64Counter
	busyWorkers metric.Int64UpDownCounter
	queueDepth  metric.Int64UpDownCounter
	jobDuration metric.Float64Histogram
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Workers   int
	Busy      int
	Queued    int
	Completed int64
	Panicked  int64
}

// NewPool starts size workers. A nil logger falls back to slog.Default and a
// nil meter to the global meter provider. It panics when size is below one.
func NewPool(size int, logger *slog.Logger, meter metric.Meter) *Pool {
	if size < 1 {
		panic(fmt.Sprintf("worker: pool size must be at least 1, got %d", size))
	}
	if logger == nil {
		logger = slog.Default()
	}
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	ctx, cancel := context.WithCancel(context.Background())

	pool := &Pool{
		size:   size,
		queue:  NewQueue[Job](),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
	pool.initInstruments(meter)

	for id := range size {
		pool.wg.Add(1)
		go pool.work(id)
	}

	return pool
}

func (pool *Pool) initInstruments(meter metric.Meter) {
	var err, errs error

	pool.jobCounter, err = meter.Int64Counter("worker.jobs",
		metric.WithDescription("Jobs executed by the pool"),
		metric.WithUnit("{job}"))
	errs = errors.Join(errs, err)

	pool.busyWorkers, err = meter.Int64UpDownCounter("worker.busy",
		metric.WithDescription("Workers currently running a job"),
		metric.WithUnit("{worker}"))
	errs = errors.Join(errs, err)

	pool.queueDepth, err = meter.Int64UpDownCounter("worker.queue.depth",
		metric.WithDescription("Jobs waiting for a free worker"),
		metric.WithUnit("{job}"))
	errs = errors.Join(errs, err)

	pool.jobDuration, err = meter.Float64Histogram("worker.job.duration",
		metric.WithDescription("Wall time spent running a job"),
		metric.WithUnit("s"))
	errs = errors.Join(errs, err)

	if errs != nil {
		pool.logger.Error("creating worker instruments failed", "error", errs)
	}
}

// Submit hands a job to whichever worker frees up first. It never waits for
// a worker; the queue has no depth limit.
func (pool *Pool) Submit(job Job) error {
	if err := pool.queue.Enqueue(job); err != nil {
		return ErrPoolClosed
	}

	pool.queueDepth.Add(pool.ctx, 1)
	return nil
}

func (pool *Pool) work(id int) {
	defer pool.wg.Done()

	ctx := context.WithValue(pool.ctx, workerIDKey{}, id)
	pool.logger.Debug("worker started", "worker", id)

	for {
		job, ok := pool.queue.Dequeue()
		if !ok {
			pool.logger.Debug("worker stopped", "worker", id)
			return
		}

		pool.queueDepth.Add(ctx, -1)
		pool.execute(ctx, id, job)
	}
}

// execute runs a job outside the queue lock. A panicking job is logged and
// counted; the worker survives it.
func (pool *Pool) execute(ctx context.Context, id int, job Job) {
	pool.busy.Add(1)
	pool.busyWorkers.Add(ctx, 1)
	start := time.Now()

	defer func() {
		outcome := "ok"
		if recovered := recover(); recovered != nil {
			outcome = "panic"
			pool.panicked.Add(1)
			pool.logger.Error("job panicked",
				"worker", id,
				"panic", recovered,
				"stack", string(debug.Stack()))
		}

		pool.busyWorkers.Add(ctx, -1)
		pool.jobCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		pool.jobDuration.Record(ctx, time.Since(start).Seconds())
		pool.busy.Add(-1)
		pool.completed.Add(1)
	}()

	job.Run(ctx)
}

// Shutdown stops accepting jobs and waits until the workers have drained the
// queue. If ctx ends first, running and remaining jobs see a cancelled
// context and ctx.Err() is returned.
func (pool *Pool) Shutdown(ctx context.Context) error {
	pool.queue.Close()

	done := make(chan struct{})
	go func() {
		pool.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		pool.cancel()
		return nil
	case <-ctx.Done():
		pool.cancel()
		return ctx.Err()
	}
}

func (pool *Pool) Size() int {
	return pool.size
}

func (pool *Pool) Stats() Stats {
	return Stats{
		Workers:   pool.size,
		Busy:      int(pool.busy.Load()),
		Queued:    pool.queue.Len(),
		Completed: pool.completed.Load(),
		Panicked:  pool.panicked.Load(),
	}
}
