package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPool(t *testing.T, size int) *Pool {
	t.Helper()

	pool := NewPool(size, quietLogger(), nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})
	return pool
}

func TestNewPoolRejectsZeroWorkers(t *testing.T) {
	assert.Panics(t, func() { NewPool(0, quietLogger(), nil) })
	assert.Panics(t, func() { NewPool(-3, quietLogger(), nil) })
}

func TestPoolRunsSubmittedJobs(t *testing.T) {
	pool := newTestPool(t, 3)

	var ran atomic.Int64
	for range 50 {
		require.NoError(t, pool.Submit(JobFunc(func(ctx context.Context) {
			ran.Add(1)
		})))
	}

	require.Eventually(t, func() bool { return pool.Stats().Completed == 50 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(50), ran.Load())
	assert.Equal(t, 3, pool.Size())
}

func TestPoolOccupancyAndFIFO(t *testing.T) {
	for _, size := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("size=%d", size), func(t *testing.T) {
			pool := newTestPool(t, size)

			started := make(chan int, size+1)
			release := make([]chan struct{}, size+1)
			for i := range release {
				release[i] = make(chan struct{})
			}

			for i := 0; i <= size; i++ {
				require.NoError(t, pool.Submit(JobFunc(func(ctx context.Context) {
					started <- i
					<-release[i]
				})))
			}

			first := make(map[int]bool)
			for range size {
				select {
				case i := <-started:
					first[i] = true
				case <-time.After(time.Second):
					t.Fatal("workers did not pick up the first jobs")
				}
			}
			for i := range size {
				assert.True(t, first[i], "job %d should run before job %d", i, size)
			}

			select {
			case i := <-started:
				t.Fatalf("job %d started while all workers were busy", i)
			case <-time.After(50 * time.Millisecond):
			}
			assert.Equal(t, size, pool.Stats().Busy)
			assert.Equal(t, 1, pool.Stats().Queued)

			close(release[0])

			select {
			case i := <-started:
				assert.Equal(t, size, i)
			case <-time.After(time.Second):
				t.Fatal("queued job did not start after a worker freed up")
			}

			for i := 1; i <= size; i++ {
				close(release[i])
			}
		})
	}
}

func TestPoolSurvivesPanickingJob(t *testing.T) {
	pool := newTestPool(t, 1)

	require.NoError(t, pool.Submit(JobFunc(func(ctx context.Context) {
		panic("boom")
	})))

	done := make(chan struct{})
	require.NoError(t, pool.Submit(JobFunc(func(ctx context.Context) {
		close(done)
	})))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("single worker did not survive a panicking job")
	}

	require.Eventually(t, func() bool { return pool.Stats().Completed == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), pool.Stats().Panicked)
}

func TestPoolWorkerIDInContext(t *testing.T) {
	pool := newTestPool(t, 2)

	ids := make(chan int, 1)
	require.NoError(t, pool.Submit(JobFunc(func(ctx context.Context) {
		id, ok := WorkerID(ctx)
		if !ok {
			id = -1
		}
		ids <- id
	})))

	id := <-ids
	assert.GreaterOrEqual(t, id, 0)
	assert.Less(t, id, 2)

	_, ok := WorkerID(context.Background())
	assert.False(t, ok)
}

func TestPoolShutdownDrainsQueue(t *testing.T) {
	pool := NewPool(1, quietLogger(), nil)

	var ran atomic.Int64
	for range 10 {
		require.NoError(t, pool.Submit(JobFunc(func(ctx context.Context) {
			time.Sleep(time.Millisecond)
			ran.Add(1)
		})))
	}

	require.NoError(t, pool.Shutdown(context.Background()))
	assert.Equal(t, int64(10), ran.Load())

	assert.ErrorIs(t, pool.Submit(JobFunc(func(ctx context.Context) {})), ErrPoolClosed)
}

func TestPoolShutdownDeadlineCancelsJobs(t *testing.T) {
	pool := NewPool(1, quietLogger(), nil)

	cancelled := make(chan struct{})
	running := make(chan struct{})
	require.NoError(t, pool.Submit(JobFunc(func(ctx context.Context) {
		close(running)
		<-ctx.Done()
		close(cancelled)
	})))
	<-running

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, pool.Shutdown(ctx), context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("job context was not cancelled after the shutdown deadline")
	}
}

func TestPoolMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	pool := NewPool(2, quietLogger(), provider.Meter("test"))
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })

	for range 3 {
		require.NoError(t, pool.Submit(JobFunc(func(ctx context.Context) {})))
	}
	require.NoError(t, pool.Submit(JobFunc(func(ctx context.Context) { panic("boom") })))

	require.Eventually(t, func() bool { return pool.Stats().Completed == 4 }, time.Second, 5*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	outcomes := make(map[string]int64)
	var depth int64 = -1
	var durations uint64
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch m.Name {
			case "worker.jobs":
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				for _, dp := range sum.DataPoints {
					v, _ := dp.Attributes.Value(attribute.Key("outcome"))
					outcomes[v.AsString()] += dp.Value
				}
			case "worker.queue.depth":
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok)
				depth = 0
				for _, dp := range sum.DataPoints {
					depth += dp.Value
				}
			case "worker.job.duration":
				hist, ok := m.Data.(metricdata.Histogram[float64])
				require.True(t, ok)
				for _, dp := range hist.DataPoints {
					durations += dp.Count
				}
			}
		}
	}

	assert.Equal(t, int64(3), outcomes["ok"])
	assert.Equal(t, int64(1), outcomes["panic"])
	assert.Equal(t, int64(0), depth)
	assert.Equal(t, uint64(4), durations)
}
