package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors returned by the Executor
var (
	ErrNilTask         = errors.New("task cannot be nil")
	ErrInvalidTaskID   = errors.New("task ID cannot be nil")
	ErrQueueFull       = errors.New("task queue is full")
	ErrExecutorStopped = errors.New("executor is stopped")
)

// Config holds configuration for the executor
type Config struct {
	// WorkerCount determines how many concurrent workers process tasks
	WorkerCount int

	// QueueSize determines the buffer size for the in-memory task queue
	QueueSize int
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		WorkerCount: 4,
		QueueSize:   32,
	}
}

// entry tracks one submitted task from acceptance to completion.
type entry struct {
	task     Task
	snapshot Snapshot
	ctx      context.Context
	cancel   context.CancelFunc
}

// Executor runs submitted tasks on a bounded worker pool and tracks them in
// an in-process registry keyed by task ID. There is no task persistence:
// whatever the registry loses in a restart, the resume coordinator detects
// through the session records.
type Executor struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*entry
	queue   chan *entry
	stopped bool

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	config     Config
	logger     *slog.Logger
	errHandler func(task Task, err error)
}

// NewExecutor creates an Executor and starts its workers. Invalid config
// values fall back to defaults.
func NewExecutor(config Config, logger *slog.Logger) *Executor {
	if logger == nil {
		panic("logger cannot be nil")
	}
	defaults := DefaultConfig()
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", defaults.WorkerCount)
		config.WorkerCount = defaults.WorkerCount
	}
	if config.QueueSize <= 0 {
		logger.Warn("invalid queue size specified, using default",
			"specified_size", config.QueueSize,
			"default_size", defaults.QueueSize)
		config.QueueSize = defaults.QueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &Executor{
		entries:    make(map[uuid.UUID]*entry),
		queue:      make(chan *entry, config.QueueSize),
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger.With(slog.String("component", "task_executor")),
	}

	for i := 0; i < config.WorkerCount; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}

	return e
}

// SetErrorHandler installs a handler called whenever Execute returns an
// error (panics included, converted to errors). The composition root uses it
// to force the owning session to a failed state, so a crashed work function
// can never leave a session processing.
func (e *Executor) SetErrorHandler(handler func(task Task, err error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errHandler = handler
}

// Submit offers a task to the executor.
//
// A task whose ID is already pending or running is not enqueued again:
// Submit returns (false, nil), giving exactly-once execution per task ID. A
// full queue returns (false, ErrQueueFull) with the registry entry rolled
// back, so a rejected task leaves no trace.
func (e *Executor) Submit(ctx context.Context, task Task) (bool, error) {
	if task == nil {
		return false, ErrNilTask
	}
	id := task.ID()
	if id == uuid.Nil {
		return false, ErrInvalidTaskID
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return false, ErrExecutorStopped
	}
	if _, exists := e.entries[id]; exists {
		e.mu.Unlock()
		e.logger.Debug("duplicate task submission ignored",
			"task_id", id,
			"task_type", task.Type())
		return false, nil
	}

	taskCtx, cancel := context.WithCancel(e.ctx)
	ent := &entry{
		task:   task,
		ctx:    taskCtx,
		cancel: cancel,
		snapshot: Snapshot{
			Status:     StatusPending,
			EnqueuedAt: time.Now().UTC(),
		},
	}
	e.entries[id] = ent
	e.mu.Unlock()

	select {
	case e.queue <- ent:
		e.logger.Debug("task enqueued",
			"task_id", id,
			"task_type", task.Type(),
			"queue_len", len(e.queue),
			"queue_cap", cap(e.queue))
		return true, nil
	default:
		e.mu.Lock()
		delete(e.entries, id)
		e.mu.Unlock()
		cancel()
		return false, fmt.Errorf("%w: queue capacity %d reached", ErrQueueFull, cap(e.queue))
	}
}

// Get returns a snapshot of the task with the given ID. The second return is
// false once the task has finished (or was never submitted): only pending
// and running tasks are tracked.
func (e *Executor) Get(id uuid.UUID) (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.entries[id]
	if !ok {
		return Snapshot{}, false
	}
	return ent.snapshot, true
}

// Cancel cancels the context of the task with the given ID, best-effort. A
// pending task is cancelled before its work function runs; a running task
// sees its context done and is expected to wind down and record a terminal
// state itself. Returns false if the ID is not tracked.
func (e *Executor) Cancel(id uuid.UUID) bool {
	e.mu.Lock()
	ent, ok := e.entries[id]
	e.mu.Unlock()
	if !ok {
		return false
	}

	e.logger.Info("cancelling task", "task_id", id, "task_type", ent.task.Type())
	ent.cancel()
	return true
}

// Stop shuts the executor down: intake closes, every task context is
// cancelled, and Stop waits for the workers to drain until ctx expires.
func (e *Executor) Stop(ctx context.Context) error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	e.mu.Unlock()

	e.cancelFunc()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("executor stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor shutdown incomplete: %w", ctx.Err())
	}
}

// worker consumes tasks from the queue until the executor stops.
func (e *Executor) worker(id int) {
	defer e.wg.Done()

	e.logger.Debug("starting worker", "worker_id", id)

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Debug("stopping worker", "worker_id", id)
			return

		case ent := <-e.queue:
			e.run(ent, id)
		}
	}
}

// run executes a single task and removes it from the registry afterwards.
func (e *Executor) run(ent *entry, workerID int) {
	task := ent.task
	logger := e.logger.With(
		"task_id", task.ID(),
		"task_type", task.Type(),
		"worker_id", workerID,
	)

	e.mu.Lock()
	ent.snapshot.Status = StatusRunning
	ent.snapshot.StartedAt = time.Now().UTC()
	handler := e.errHandler
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.entries, task.ID())
		e.mu.Unlock()
		ent.cancel()
	}()

	logger.Info("processing task")

	err := e.execute(ent.ctx, task)
	if err != nil {
		logger.Error("task execution failed", "error", err)
		if handler != nil {
			handler(task, err)
		}
		return
	}

	logger.Info("task completed successfully")
}

// execute invokes the work function, converting panics into errors so one
// bad task cannot take a worker down.
func (e *Executor) execute(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task.Execute(ctx)
}
