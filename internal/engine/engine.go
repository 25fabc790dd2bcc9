package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jsforge/backend/internal/analysis"
	"github.com/jsforge/backend/internal/cache"
	"github.com/jsforge/backend/internal/infrastructure/logging"
	"github.com/jsforge/backend/internal/infrastructure/monitoring"
	"github.com/jsforge/backend/internal/queue"
	"github.com/jsforge/backend/internal/shared/id"
)

// cached is the payload stored per distinct source text.
type cached struct {
	Output  any
	Metrics Metrics
}

// Engine schedules, bounds, caches, and classifies code executions.
type Engine struct {
	runner Runner
	logger *logging.Logger

	mu     sync.RWMutex // guards config and active
	config Config
	active map[id.ExecutionID]context.CancelFunc

	cache *cache.Cache[cached]
	queue *queue.Queue[*Result]

	logMu sync.Mutex
	log   []Metrics

	prom *monitoring.Metrics
}

// New creates an engine around the given runner. Each engine owns its own
// cache and queue, so tests can construct isolated instances.
func New(runner Runner, cfg Config, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = &logging.Logger{Logger: zap.NewNop()}
	}
	return &Engine{
		runner: runner,
		logger: logger,
		config: cfg,
		active: make(map[id.ExecutionID]context.CancelFunc),
		cache:  cache.New[cached](cfg.CacheSize),
		queue:  queue.New[*Result](cfg.MaxConcurrent, logger.Logger.Named("queue")),
	}
}

// WithMetrics attaches a Prometheus collector. Optional; the engine runs
// fine without one.
func (e *Engine) WithMetrics(m *monitoring.Metrics) *Engine {
	e.prom = m
	return e
}

// Execute runs code through the full pipeline and always returns a
// structured Result; it never surfaces a raw error. Cancelling ctx aborts
// the request cooperatively.
func (e *Engine) Execute(ctx context.Context, code string, opts Options) *Result {
	start := time.Now()
	execID := id.NewExecutionID()
	cfg := e.configSnapshot()

	if cfg.EnableCache && !opts.BypassCache {
		if hit, ok := e.cache.Get(code); ok {
			m := hit.Metrics
			m.CacheHit = true
			m.Timestamp = time.Now()
			res := &Result{
				ID:        execID,
				Code:      code,
				Output:    hit.Output,
				Metrics:   m,
				Status:    StatusSuccess,
				Duration:  time.Since(start),
				FromCache: true,
			}
			e.record(cfg, m, res)
			e.logger.Debug("cache hit", zap.String("execution_id", execID.String()))
			return res
		}
	}

	report := analysis.Analyze(code)

	if cfg.SecurityLevel == SecurityHigh {
		if risks := analysis.DetectRisks(code); len(risks) > 0 {
			e.logger.Warn("execution blocked by security gate",
				zap.String("execution_id", execID.String()),
				zap.Strings("risks", risks),
			)
			return e.failResult(cfg, execID, code, report.Score, securityError(risks), StatusError, start)
		}
	}

	timeout := analysis.Timeout(report, cfg.MaxExecutionTime)

	out := e.queue.Add(execID.String(), opts.Priority, func(jobCtx context.Context) (*Result, error) {
		return e.runJob(jobCtx, execID, code, report.Score, timeout, cfg, start), nil
	})
	e.updateGauges()

	select {
	case o := <-out:
		if o.Err != nil {
			if errors.Is(o.Err, queue.ErrCancelled) || errors.Is(o.Err, queue.ErrClosed) {
				return e.failResult(cfg, execID, code, report.Score, cancelledError(), StatusCancelled, start)
			}
			classified := Classify(o.Err)
			return e.failResult(cfg, execID, code, report.Score, classified, statusFor(classified), start)
		}
		return o.Value
	case <-ctx.Done():
		e.Cancel(execID)
		// The job still delivers an outcome; take it if it lands promptly.
		select {
		case o := <-out:
			if o.Err == nil && o.Value != nil {
				return o.Value
			}
		case <-time.After(100 * time.Millisecond):
		}
		return e.failResult(cfg, execID, code, report.Score, cancelledError(), StatusCancelled, start)
	}
}

// runJob is the queued job body: the sandbox run raced against the
// adaptive deadline, with a cancellation handle registered for the
// duration of the run.
func (e *Engine) runJob(jobCtx context.Context, execID id.ExecutionID, code string, score float64, timeout time.Duration, cfg Config, start time.Time) *Result {
	runCtx, cancel := context.WithTimeout(jobCtx, timeout)
	defer cancel()

	e.mu.Lock()
	e.active[execID] = cancel
	e.mu.Unlock()
	e.updateGauges()

	defer func() {
		e.mu.Lock()
		delete(e.active, execID)
		e.mu.Unlock()
		e.updateGauges()
	}()

	output, err := e.runner.Run(runCtx, code, RunLimits{
		LoopIterationLimit: cfg.LoopIterationLimit,
		AsyncWaitTime:      cfg.AsyncWaitTime,
		PromiseTimeout:     cfg.PromiseTimeout,
	})
	elapsed := time.Since(start)

	if err != nil {
		status, execErr := resolveFailure(runCtx, err, timeout)
		m := Metrics{
			ComplexityScore: score,
			ErrorCount:      1,
			Timestamp:       time.Now(),
		}
		res := &Result{
			ID:       execID,
			Code:     code,
			Error:    execErr,
			Metrics:  m,
			Status:   status,
			Duration: elapsed,
		}
		e.record(cfg, m, res)
		e.logger.Debug("execution failed",
			zap.String("execution_id", execID.String()),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return res
	}

	m := Metrics{
		ExecutionTime:   elapsed,
		MemoryMB:        estimateMemoryMB(code),
		CPUPercent:      estimateCPUPercent(score),
		ComplexityScore: score,
		Timestamp:       time.Now(),
	}
	if cfg.EnableCache {
		e.cache.Set(code, cached{Output: output, Metrics: m}, cfg.CacheTTL)
	}
	res := &Result{
		ID:       execID,
		Code:     code,
		Output:   output,
		Metrics:  m,
		Status:   StatusSuccess,
		Duration: elapsed,
	}
	e.record(cfg, m, res)
	return res
}

// resolveFailure decides the result status for a failed run. Context state
// wins over message patterns: an aborted handle means cancelled, an
// expired deadline means timeout, anything else is classified by message.
func resolveFailure(runCtx context.Context, err error, timeout time.Duration) (Status, *Error) {
	switch {
	case errors.Is(runCtx.Err(), context.Canceled):
		return StatusCancelled, cancelledError()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return StatusTimeout, timeoutError(fmt.Sprintf("execution timeout after %s", timeout))
	default:
		classified := Classify(err)
		return statusFor(classified), classified
	}
}

// failResult converts a pre-queue or queue-level failure into a structured
// result. Resource metric fields stay zeroed; the complexity score is kept.
func (e *Engine) failResult(cfg Config, execID id.ExecutionID, code string, score float64, execErr *Error, status Status, start time.Time) *Result {
	m := Metrics{
		ComplexityScore: score,
		ErrorCount:      1,
		Timestamp:       time.Now(),
	}
	res := &Result{
		ID:       execID,
		Code:     code,
		Error:    execErr,
		Metrics:  m,
		Status:   status,
		Duration: time.Since(start),
	}
	e.record(cfg, m, res)
	return res
}

// Cancel aborts a single execution: the active-run handle first, then the
// queue for jobs that are still backlogged.
func (e *Engine) Cancel(execID id.ExecutionID) bool {
	e.mu.Lock()
	cancel, ok := e.active[execID]
	if ok {
		delete(e.active, execID)
	}
	e.mu.Unlock()

	if ok {
		cancel()
		return true
	}
	return e.queue.Cancel(execID.String())
}

// CancelAll aborts every active execution and purges the queue backlog.
// The backlog is purged first so a completing job cannot pull a new one
// into the freed slot mid-shutdown. Returns the number of executions
// affected.
func (e *Engine) CancelAll() int {
	n := e.queue.CancelAll()

	e.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(e.active))
	for execID, cancel := range e.active {
		cancels = append(cancels, cancel)
		delete(e.active, execID)
	}
	e.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return n
}

// Active lists the ids of executions currently holding a run slot.
func (e *Engine) Active() []id.ExecutionID {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := make([]id.ExecutionID, 0, len(e.active))
	for execID := range e.active {
		ids = append(ids, execID)
	}
	return ids
}

// ClearCache drops all cached results.
func (e *Engine) ClearCache() {
	e.cache.Clear()
	e.updateGauges()
}

// UpdateConfig merges non-nil patch fields into the live configuration.
// Changes apply to subsequent Execute calls; in-flight runs are unaffected.
func (e *Engine) UpdateConfig(patch ConfigPatch) {
	e.mu.Lock()
	if patch.MaxExecutionTime != nil {
		e.config.MaxExecutionTime = *patch.MaxExecutionTime
	}
	if patch.MaxMemoryMB != nil {
		e.config.MaxMemoryMB = *patch.MaxMemoryMB
	}
	if patch.MaxConcurrent != nil {
		e.config.MaxConcurrent = *patch.MaxConcurrent
	}
	if patch.CacheSize != nil {
		e.config.CacheSize = *patch.CacheSize
	}
	if patch.CacheTTL != nil {
		e.config.CacheTTL = *patch.CacheTTL
	}
	if patch.EnableCache != nil {
		e.config.EnableCache = *patch.EnableCache
	}
	if patch.EnableMetrics != nil {
		e.config.EnableMetrics = *patch.EnableMetrics
	}
	if patch.SecurityLevel != nil {
		e.config.SecurityLevel = *patch.SecurityLevel
	}
	if patch.LoopIterationLimit != nil {
		e.config.LoopIterationLimit = *patch.LoopIterationLimit
	}
	if patch.AsyncWaitTime != nil {
		e.config.AsyncWaitTime = *patch.AsyncWaitTime
	}
	if patch.PromiseTimeout != nil {
		e.config.PromiseTimeout = *patch.PromiseTimeout
	}
	e.mu.Unlock()

	if patch.CacheSize != nil {
		e.cache.Resize(*patch.CacheSize)
	}
	if patch.MaxConcurrent != nil {
		e.queue.SetCapacity(*patch.MaxConcurrent)
	}
}

// Config returns a copy of the live configuration.
func (e *Engine) Config() Config {
	return e.configSnapshot()
}

// Close shuts the queue down; pending executions resolve as cancelled.
func (e *Engine) Close() {
	e.queue.Close()
}

func (e *Engine) configSnapshot() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

func (e *Engine) activeCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.active)
}

func (e *Engine) updateGauges() {
	if e.prom == nil {
		return
	}
	e.prom.SetQueueDepth(e.queue.Stats().Queued)
	e.prom.SetActiveExecutions(e.activeCount())
	e.prom.SetCacheEntries(e.cache.Stats().Size)
}

// estimateMemoryMB derives a synthetic footprint from source size; real
// heap accounting would need runner-side introspection.
func estimateMemoryMB(code string) float64 {
	return float64(len(code)) * 0.001
}

// estimateCPUPercent derives a synthetic load figure from the complexity
// score, capped at 100.
func estimateCPUPercent(score float64) float64 {
	p := score * 2
	if p > 100 {
		p = 100
	}
	return p
}
