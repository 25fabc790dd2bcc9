package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner lets each test script the sandbox behavior.
type stubRunner struct {
	calls int64
	fn    func(ctx context.Context, code string) (any, error)
}

func (s *stubRunner) Run(ctx context.Context, code string, _ RunLimits) (any, error) {
	atomic.AddInt64(&s.calls, 1)
	return s.fn(ctx, code)
}

func (s *stubRunner) callCount() int64 {
	return atomic.LoadInt64(&s.calls)
}

func okRunner(output any) *stubRunner {
	return &stubRunner{fn: func(ctx context.Context, code string) (any, error) {
		return output, nil
	}}
}

func failRunner(message string) *stubRunner {
	return &stubRunner{fn: func(ctx context.Context, code string) (any, error) {
		return nil, errors.New(message)
	}}
}

func newTestEngine(t *testing.T, runner Runner, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	e := New(runner, cfg, nil)
	t.Cleanup(e.Close)
	return e
}

func TestExecuteSuccessThenCacheHit(t *testing.T) {
	runner := okRunner(map[string]any{"output": 2})
	e := newTestEngine(t, runner, nil)

	first := e.Execute(context.Background(), "console.log(1+1)", Options{})
	require.Equal(t, StatusSuccess, first.Status)
	assert.False(t, first.FromCache)
	assert.Nil(t, first.Error)
	assert.NotEmpty(t, first.ID)
	assert.Greater(t, first.Metrics.ComplexityScore, -1.0)

	second := e.Execute(context.Background(), "console.log(1+1)", Options{})
	require.Equal(t, StatusSuccess, second.Status)
	assert.True(t, second.FromCache)
	assert.True(t, second.Metrics.CacheHit)
	assert.Equal(t, first.Output, second.Output)
	assert.NotEqual(t, first.ID, second.ID, "each request gets a fresh id")

	assert.Equal(t, int64(1), runner.callCount(), "cache hit must not re-run the sandbox")
}

func TestExecuteBypassCache(t *testing.T) {
	runner := okRunner("v")
	e := newTestEngine(t, runner, nil)

	e.Execute(context.Background(), "1+1", Options{})
	res := e.Execute(context.Background(), "1+1", Options{BypassCache: true})

	assert.False(t, res.FromCache)
	assert.Equal(t, int64(2), runner.callCount())
}

func TestExecuteCacheDisabled(t *testing.T) {
	runner := okRunner("v")
	e := newTestEngine(t, runner, func(c *Config) { c.EnableCache = false })

	e.Execute(context.Background(), "1+1", Options{})
	res := e.Execute(context.Background(), "1+1", Options{})

	assert.False(t, res.FromCache)
	assert.Equal(t, int64(2), runner.callCount())
}

func TestExecuteTimeoutMessageClassification(t *testing.T) {
	e := newTestEngine(t, failRunner("Execution timeout"), nil)

	res := e.Execute(context.Background(), "while(true){}", Options{})

	assert.Equal(t, StatusTimeout, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, KindTimeout, res.Error.Kind)
	assert.True(t, res.Error.Recoverable)
	assert.Equal(t, 1, res.Metrics.ErrorCount)
	assert.Zero(t, res.Metrics.MemoryMB, "resource fields are zeroed on failure")
}

func TestExecuteDeadlineExceeded(t *testing.T) {
	runner := &stubRunner{fn: func(ctx context.Context, code string) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	e := newTestEngine(t, runner, func(c *Config) { c.MaxExecutionTime = 50 * time.Millisecond })

	res := e.Execute(context.Background(), "1+1", Options{})

	assert.Equal(t, StatusTimeout, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, KindTimeout, res.Error.Kind)
}

func TestExecuteErrorClassification(t *testing.T) {
	e := newTestEngine(t, failRunner("SyntaxError: Unexpected token"), nil)

	res := e.Execute(context.Background(), "1+", Options{})

	assert.Equal(t, StatusError, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, KindSyntax, res.Error.Kind)

	// Errors are never cached.
	assert.Equal(t, 0, e.Metrics().Cache.Total)
}

func TestSecurityGateStrictMode(t *testing.T) {
	runner := okRunner("v")
	e := newTestEngine(t, runner, func(c *Config) { c.SecurityLevel = SecurityHigh })

	res := e.Execute(context.Background(), "eval('alert(1)')", Options{})

	assert.Equal(t, StatusError, res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, KindSecurity, res.Error.Kind)
	assert.Equal(t, SeverityCritical, res.Error.Severity)
	assert.False(t, res.Error.Recoverable)
	assert.Zero(t, runner.callCount(), "gated code must never reach the queue")
}

func TestSecurityGateMediumAllowsRiskyCode(t *testing.T) {
	runner := okRunner("v")
	e := newTestEngine(t, runner, nil) // default level is medium

	res := e.Execute(context.Background(), "eval('1')", Options{})

	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, int64(1), runner.callCount())
}

func TestCancelRunningExecution(t *testing.T) {
	started := make(chan struct{})
	runner := &stubRunner{fn: func(ctx context.Context, code string) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	e := newTestEngine(t, runner, nil)

	done := make(chan *Result, 1)
	go func() {
		done <- e.Execute(context.Background(), "while(true){}", Options{})
	}()

	<-started
	require.Eventually(t, func() bool { return len(e.Active()) == 1 },
		time.Second, 5*time.Millisecond)

	assert.True(t, e.Cancel(e.Active()[0]))

	select {
	case res := <-done:
		assert.Equal(t, StatusCancelled, res.Status)
		require.NotNil(t, res.Error)
		assert.Equal(t, "execution cancelled", res.Error.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled execution never resolved")
	}
}

func TestCancelCompletedExecution(t *testing.T) {
	e := newTestEngine(t, okRunner("v"), nil)

	res := e.Execute(context.Background(), "1+1", Options{})
	require.Equal(t, StatusSuccess, res.Status)

	assert.False(t, e.Cancel(res.ID), "completed id has nothing to cancel")
}

func TestCancelAllAbortsActiveAndBacklog(t *testing.T) {
	started := make(chan struct{}, 4)
	runner := &stubRunner{fn: func(ctx context.Context, code string) (any, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	e := newTestEngine(t, runner, func(c *Config) { c.MaxConcurrent = 1; c.EnableCache = false })

	results := make(chan *Result, 3)
	for i := 0; i < 3; i++ {
		go func(n int) {
			results <- e.Execute(context.Background(), "spin()", Options{})
		}(i)
	}

	<-started
	require.Eventually(t, func() bool { return e.Metrics().Queue.Queued == 2 },
		time.Second, 5*time.Millisecond)

	n := e.CancelAll()
	assert.Equal(t, 3, n)

	for i := 0; i < 3; i++ {
		select {
		case res := <-results:
			assert.Equal(t, StatusCancelled, res.Status)
		case <-time.After(2 * time.Second):
			t.Fatal("execution never resolved after CancelAll")
		}
	}
}

func TestMetricsAggregation(t *testing.T) {
	runner := &stubRunner{fn: func(ctx context.Context, code string) (any, error) {
		if code == "bad()" {
			return nil, errors.New("ReferenceError: bad is not defined")
		}
		return "ok", nil
	}}
	e := newTestEngine(t, runner, nil)

	e.Execute(context.Background(), "good()", Options{})
	e.Execute(context.Background(), "good()", Options{}) // cache hit
	e.Execute(context.Background(), "bad()", Options{})

	snap := e.Metrics()
	assert.Equal(t, 3, snap.TotalExecutions)
	assert.InDelta(t, 1.0/3.0, snap.ErrorRate, 0.001)
	assert.InDelta(t, 1.0/3.0, snap.CacheHitRate, 0.001)
	assert.GreaterOrEqual(t, snap.P95ExecutionTime, snap.AverageExecutionTime)
	assert.Equal(t, 1, snap.Cache.Total)
	assert.Equal(t, 0, snap.ActiveExecutions)
}

func TestMetricsDisabled(t *testing.T) {
	e := newTestEngine(t, okRunner("v"), func(c *Config) { c.EnableMetrics = false })

	e.Execute(context.Background(), "1+1", Options{})
	assert.Equal(t, 0, e.Metrics().TotalExecutions)
}

func TestUpdateConfig(t *testing.T) {
	runner := okRunner("v")
	e := newTestEngine(t, runner, nil)

	high := SecurityHigh
	disabled := false
	e.UpdateConfig(ConfigPatch{SecurityLevel: &high, EnableCache: &disabled})

	cfg := e.Config()
	assert.Equal(t, SecurityHigh, cfg.SecurityLevel)
	assert.False(t, cfg.EnableCache)

	res := e.Execute(context.Background(), "eval('1')", Options{})
	assert.Equal(t, StatusError, res.Status)
	assert.Equal(t, KindSecurity, res.Error.Kind)
}

func TestClearCache(t *testing.T) {
	runner := okRunner("v")
	e := newTestEngine(t, runner, nil)

	e.Execute(context.Background(), "1+1", Options{})
	e.ClearCache()
	res := e.Execute(context.Background(), "1+1", Options{})

	assert.False(t, res.FromCache)
	assert.Equal(t, int64(2), runner.callCount())
}

func TestEveryResultCarriesMetrics(t *testing.T) {
	tests := []struct {
		name   string
		runner Runner
		code   string
		mutate func(*Config)
	}{
		{"success", okRunner("v"), "1+1", nil},
		{"runtime error", failRunner("ReferenceError"), "x", nil},
		{"timeout", failRunner("Execution timeout"), "y", nil},
		{"security gate", okRunner("v"), "eval('1')", func(c *Config) { c.SecurityLevel = SecurityHigh }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, tt.runner, tt.mutate)
			res := e.Execute(context.Background(), tt.code, Options{})
			assert.False(t, res.Metrics.Timestamp.IsZero())
		})
	}
}
