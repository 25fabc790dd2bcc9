package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrCancelled is delivered to jobs removed before or during execution.
	ErrCancelled = errors.New("job cancelled")
	// ErrClosed is delivered to jobs submitted after Close.
	ErrClosed = errors.New("queue is closed")
)

// Func is a job body. The context is cancelled when the job is cancelled
// or the queue shuts down.
type Func[T any] func(ctx context.Context) (T, error)

// Outcome is the terminal result of a queued job.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Stats describes queue occupancy.
type Stats struct {
	Queued   int `json:"queued"`
	Running  int `json:"running"`
	Capacity int `json:"capacity"`
}

type job[T any] struct {
	id       string
	priority int
	seq      uint64
	enqueued time.Time
	fn       Func[T]
	out      chan Outcome[T]
}

// Queue bounds concurrent executions and orders the backlog by priority.
type Queue[T any] struct {
	mu       sync.Mutex
	capacity int
	backlog  []*job[T]
	running  map[string]context.CancelFunc
	seq      uint64
	closed   bool
	logger   *zap.Logger
}

// New creates a queue that runs at most capacity jobs concurrently.
func New[T any](capacity int, logger *zap.Logger) *Queue[T] {
	if capacity <= 0 {
		capacity = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue[T]{
		capacity: capacity,
		running:  make(map[string]context.CancelFunc),
		logger:   logger,
	}
}

// Add enqueues a job and immediately attempts dispatch. The returned
// channel is buffered and receives exactly one Outcome when the job
// finishes, fails, or is cancelled.
func (q *Queue[T]) Add(id string, priority int, fn Func[T]) <-chan Outcome[T] {
	out := make(chan Outcome[T], 1)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		out <- Outcome[T]{Err: ErrClosed}
		return out
	}
	q.seq++
	q.backlog = append(q.backlog, &job[T]{
		id:       id,
		priority: priority,
		seq:      q.seq,
		enqueued: time.Now(),
		fn:       fn,
		out:      out,
	})
	q.mu.Unlock()

	q.dispatch()
	return out
}

// dispatch starts the highest-priority backlogged job if a slot is free.
// Called on every Add and on every job completion.
func (q *Queue[T]) dispatch() {
	q.mu.Lock()
	if q.closed || len(q.running) >= q.capacity || len(q.backlog) == 0 {
		q.mu.Unlock()
		return
	}

	sort.SliceStable(q.backlog, func(i, j int) bool {
		if q.backlog[i].priority != q.backlog[j].priority {
			return q.backlog[i].priority > q.backlog[j].priority
		}
		return q.backlog[i].seq < q.backlog[j].seq
	})

	j := q.backlog[0]
	q.backlog = q.backlog[1:]

	ctx, cancel := context.WithCancel(context.Background())
	q.running[j.id] = cancel
	q.mu.Unlock()

	go q.run(ctx, cancel, j)
}

func (q *Queue[T]) run(ctx context.Context, cancel context.CancelFunc, j *job[T]) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("job panicked",
				zap.String("job_id", j.id),
				zap.Any("panic", r),
			)
			j.out <- Outcome[T]{Err: fmt.Errorf("job panic: %v", r)}
		}

		q.mu.Lock()
		delete(q.running, j.id)
		q.mu.Unlock()
		cancel()

		q.dispatch()
	}()

	value, err := j.fn(ctx)
	if err != nil {
		q.logger.Debug("job failed",
			zap.String("job_id", j.id),
			zap.Duration("waited", time.Since(j.enqueued)),
			zap.Error(err),
		)
	}
	j.out <- Outcome[T]{Value: value, Err: err}
}

// Cancel aborts a running job's context or removes a backlogged job.
// A removed backlogged job receives ErrCancelled. Returns whether anything
// was actually cancelled.
func (q *Queue[T]) Cancel(id string) bool {
	q.mu.Lock()

	if cancel, ok := q.running[id]; ok {
		delete(q.running, id)
		q.mu.Unlock()
		cancel()
		q.dispatch()
		return true
	}

	for i, j := range q.backlog {
		if j.id == id {
			q.backlog = append(q.backlog[:i], q.backlog[i+1:]...)
			q.mu.Unlock()
			j.out <- Outcome[T]{Err: ErrCancelled}
			return true
		}
	}

	q.mu.Unlock()
	return false
}

// CancelAll aborts every running job and purges the entire backlog.
// Returns the number of jobs affected.
func (q *Queue[T]) CancelAll() int {
	q.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(q.running))
	for id, cancel := range q.running {
		cancels = append(cancels, cancel)
		delete(q.running, id)
	}
	purged := q.backlog
	q.backlog = nil
	q.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	for _, j := range purged {
		j.out <- Outcome[T]{Err: ErrCancelled}
	}
	return len(cancels) + len(purged)
}

// SetCapacity changes the concurrency bound. A larger bound takes effect
// immediately; a smaller one applies as running jobs drain.
func (q *Queue[T]) SetCapacity(capacity int) {
	if capacity <= 0 {
		return
	}
	q.mu.Lock()
	q.capacity = capacity
	q.mu.Unlock()
	q.dispatch()
}

// Stats returns current queue occupancy.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Queued:   len(q.backlog),
		Running:  len(q.running),
		Capacity: q.capacity,
	}
}

// Close rejects future submissions, aborts running jobs, and drains the
// backlog with ErrClosed.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	cancels := make([]context.CancelFunc, 0, len(q.running))
	for _, cancel := range q.running {
		cancels = append(cancels, cancel)
	}
	purged := q.backlog
	q.backlog = nil
	q.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	for _, j := range purged {
		j.out <- Outcome[T]{Err: ErrClosed}
	}
}
