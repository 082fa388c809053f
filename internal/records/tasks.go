package records

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"arksync/internal/logging"
	"arksync/internal/metrics"
)

// FailureSink is told about every background task that failed.
type FailureSink interface {
	RecordFailure(task string, err error)
}

// Tasks runs fire-and-forget work. Callers never wait on a task; failures and
// panics are logged, counted and reported to the sink instead of returned.
type Tasks struct {
	ctx     context.Context
	wg      sync.WaitGroup
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu   sync.RWMutex
	sink FailureSink
}

// NewTasks returns a runner whose tasks inherit ctx.
func NewTasks(ctx context.Context, logger *zap.Logger, m *metrics.Metrics) *Tasks {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Tasks{ctx: ctx, logger: logging.OrNop(logger), metrics: m}
}

// SetFailureSink replaces the failure sink.
func (t *Tasks) SetFailureSink(s FailureSink) {
	t.mu.Lock()
	t.sink = s
	t.mu.Unlock()
}

// Go starts fn in the background.
func (t *Tasks) Go(name string, fn func(ctx context.Context) error) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		err := t.run(fn)
		if err == nil {
			return
		}
		t.logger.Warn("background task failed", zap.String("task", name), zap.Error(err))
		t.metrics.Background(name)
		t.mu.RLock()
		sink := t.sink
		t.mu.RUnlock()
		if sink != nil {
			sink.RecordFailure(name, err)
		}
	}()
}

func (t *Tasks) run(fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(t.ctx)
}

// Wait blocks until every started task has finished.
func (t *Tasks) Wait() {
	t.wg.Wait()
}
