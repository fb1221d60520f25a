package worker

import "context"

// Job is a one-shot unit of work. Once submitted it is owned by the worker
// that dequeues it and runs exactly once.
type Job interface {
	Run(ctx context.Context)
}

// JobFunc adapts an ordinary function to the Job interface.
type JobFunc func(ctx context.Context)

func (f JobFunc) Run(ctx context.Context) {
	f(ctx)
}

type workerIDKey struct{}

// WorkerID reports which worker is running the job owning ctx.
func WorkerID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(workerIDKey{}).(int)
	return id, ok
}
