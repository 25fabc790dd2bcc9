package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapacityInvariant(t *testing.T) {
	const capacity = 2
	const total = capacity + 3

	q := New[int](capacity, nil)
	release := make(chan struct{})

	var running, peak int64
	outs := make([]<-chan Outcome[int], 0, total)

	for i := 0; i < total; i++ {
		i := i
		outs = append(outs, q.Add(string(rune('a'+i)), 0, func(ctx context.Context) (int, error) {
			cur := atomic.AddInt64(&running, 1)
			for {
				prev := atomic.LoadInt64(&peak)
				if cur <= prev || atomic.CompareAndSwapInt64(&peak, prev, cur) {
					break
				}
			}
			<-release
			atomic.AddInt64(&running, -1)
			return i, nil
		}))
	}

	// Let the first wave start.
	time.Sleep(50 * time.Millisecond)
	s := q.Stats()
	assert.LessOrEqual(t, s.Running, capacity)
	assert.Equal(t, total-capacity, s.Queued)

	close(release)
	for _, out := range outs {
		select {
		case o := <-out:
			require.NoError(t, o.Err)
		case <-time.After(2 * time.Second):
			t.Fatal("job did not complete")
		}
	}

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(capacity),
		"observed concurrency above capacity")
}

func TestPriorityOrdering(t *testing.T) {
	q := New[int](1, nil)

	var mu sync.Mutex
	var order []int

	gate := make(chan struct{})
	first := q.Add("blocker", 0, func(ctx context.Context) (int, error) {
		<-gate
		return 0, nil
	})

	// Wait for the blocker to occupy the single slot.
	require.Eventually(t, func() bool { return q.Stats().Running == 1 },
		time.Second, 5*time.Millisecond)

	record := func(p int) Func[int] {
		return func(ctx context.Context) (int, error) {
			mu.Lock()
			order = append(order, p)
			mu.Unlock()
			return p, nil
		}
	}

	outs := []<-chan Outcome[int]{
		q.Add("p1", 1, record(1)),
		q.Add("p5", 5, record(5)),
		q.Add("p3", 3, record(3)),
	}

	close(gate)
	<-first
	for _, out := range outs {
		<-out
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{5, 3, 1}, order)
}

func TestExecutorFailureDoesNotHaltDispatch(t *testing.T) {
	q := New[string](1, nil)

	bad := q.Add("bad", 0, func(ctx context.Context) (string, error) {
		return "", errors.New("boom")
	})
	good := q.Add("good", 0, func(ctx context.Context) (string, error) {
		return "ok", nil
	})

	o := <-bad
	assert.EqualError(t, o.Err, "boom")

	select {
	case o := <-good:
		require.NoError(t, o.Err)
		assert.Equal(t, "ok", o.Value)
	case <-time.After(time.Second):
		t.Fatal("subsequent job never dispatched")
	}
}

func TestCancelBackloggedJob(t *testing.T) {
	q := New[int](1, nil)

	gate := make(chan struct{})
	q.Add("blocker", 0, func(ctx context.Context) (int, error) {
		<-gate
		return 0, nil
	})
	require.Eventually(t, func() bool { return q.Stats().Running == 1 },
		time.Second, 5*time.Millisecond)

	queued := q.Add("victim", 0, func(ctx context.Context) (int, error) {
		t.Error("cancelled job must not run")
		return 0, nil
	})

	assert.True(t, q.Cancel("victim"))

	o := <-queued
	assert.ErrorIs(t, o.Err, ErrCancelled)
	assert.Equal(t, 0, q.Stats().Queued)

	close(gate)
}

func TestCancelRunningJob(t *testing.T) {
	q := New[int](1, nil)

	started := make(chan struct{})
	out := q.Add("runner", 0, func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})

	<-started
	assert.True(t, q.Cancel("runner"))

	o := <-out
	assert.ErrorIs(t, o.Err, context.Canceled)
}

func TestCancelUnknownID(t *testing.T) {
	q := New[int](1, nil)
	assert.False(t, q.Cancel("ghost"))
}

func TestCancelAllPurgesBacklog(t *testing.T) {
	q := New[int](1, nil)

	started := make(chan struct{})
	running := q.Add("running", 0, func(ctx context.Context) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	})
	<-started

	q1 := q.Add("q1", 0, func(ctx context.Context) (int, error) { return 1, nil })
	q2 := q.Add("q2", 0, func(ctx context.Context) (int, error) { return 2, nil })

	n := q.CancelAll()
	assert.Equal(t, 3, n)

	o := <-running
	assert.ErrorIs(t, o.Err, context.Canceled)
	assert.ErrorIs(t, (<-q1).Err, ErrCancelled)
	assert.ErrorIs(t, (<-q2).Err, ErrCancelled)

	s := q.Stats()
	assert.Equal(t, 0, s.Queued)
	assert.Equal(t, 0, s.Running)
}

func TestAddAfterClose(t *testing.T) {
	q := New[int](1, nil)
	q.Close()

	o := <-q.Add("late", 0, func(ctx context.Context) (int, error) { return 1, nil })
	assert.ErrorIs(t, o.Err, ErrClosed)
}
