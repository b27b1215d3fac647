package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ExecutorOptions sizes the callback worker pool.
type ExecutorOptions struct {
	Workers         int
	QueueSize       int
	CallbackTimeout time.Duration
	Logger          *slog.Logger
}

type job struct {
	inv  *Invocation
	done func(Outcome)
}

// Executor runs prepared invocations in FIFO order on a fixed worker pool.
type Executor struct {
	queue   chan job
	group   *errgroup.Group
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewExecutor starts the worker pool.
func NewExecutor(opts ExecutorOptions) *Executor {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := opts.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(baseCtx)

	e := &Executor{
		queue:   make(chan job, queueSize),
		group:   group,
		ctx:     groupCtx,
		cancel:  cancel,
		timeout: opts.CallbackTimeout,
		logger:  logger,
	}
	for i := 0; i < workers; i++ {
		group.Go(e.work)
	}
	return e
}

// Submit enqueues inv without blocking. done, when set, receives the outcome on a worker goroutine.
func (e *Executor) Submit(inv *Invocation, done func(Outcome)) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return ErrExecutorClosed
	}
	select {
	case e.queue <- job{inv: inv, done: done}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops intake and waits for queued callbacks. When ctx expires first, running
// callbacks see their context cancelled, jobs still queued are reported abandoned without
// running, and Close returns ctx.Err() without waiting further.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	finished := make(chan error, 1)
	go func() { finished <- e.group.Wait() }()

	select {
	case err := <-finished:
		e.cancel()
		return err
	case <-ctx.Done():
		e.cancel()
		return ctx.Err()
	}
}

func (e *Executor) work() error {
	for j := range e.queue {
		e.run(j)
	}
	return nil
}

func (e *Executor) run(j job) {
	callCtx := e.ctx
	cancel := context.CancelFunc(func() {})
	if e.timeout > 0 {
		callCtx, cancel = context.WithTimeout(e.ctx, e.timeout)
	}
	defer cancel()

	outcome := j.inv.Invoke(callCtx)
	if j.done == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("dispatch completion handler panicked", "hook", outcome.HookID, "panic", r)
		}
	}()
	j.done(outcome)
}
