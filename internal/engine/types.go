package engine

import (
	"context"
	"time"

	"github.com/jsforge/backend/internal/shared/id"
)

// Status is the terminal state of an execution request.
type Status string

const (
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

// ErrorKind categorizes execution failures.
type ErrorKind string

const (
	KindSyntax   ErrorKind = "syntax"
	KindRuntime  ErrorKind = "runtime"
	KindTimeout  ErrorKind = "timeout"
	KindMemory   ErrorKind = "memory"
	KindSecurity ErrorKind = "security"
	KindSystem   ErrorKind = "system"
)

// Severity grades how serious a failure is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error is the categorized, user-facing form of an execution failure.
type Error struct {
	Kind        ErrorKind `json:"type"`
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// SecurityLevel controls how detected risks are handled. Only
// SecurityHigh escalates them into a hard failure before queueing.
type SecurityLevel string

const (
	SecurityLow    SecurityLevel = "low"
	SecurityMedium SecurityLevel = "medium"
	SecurityHigh   SecurityLevel = "high"
)

// Metrics is the per-execution resource snapshot. MemoryMB and CPUPercent
// are heuristic estimates derived from source size and complexity score,
// not measured process stats.
type Metrics struct {
	ExecutionTime   time.Duration `json:"execution_time"`
	MemoryMB        float64       `json:"memory_mb"`
	CPUPercent      float64       `json:"cpu_percent"`
	CacheHit        bool          `json:"cache_hit"`
	ComplexityScore float64       `json:"complexity_score"`
	ErrorCount      int           `json:"error_count"`
	Timestamp       time.Time     `json:"timestamp"`
}

// Result is the immutable outcome of one execution request.
type Result struct {
	ID        id.ExecutionID `json:"id"`
	Code      string         `json:"code"`
	Output    any            `json:"output"`
	Error     *Error         `json:"error,omitempty"`
	Metrics   Metrics        `json:"metrics"`
	Status    Status         `json:"status"`
	Duration  time.Duration  `json:"duration"`
	FromCache bool           `json:"from_cache"`
}

// Options tune a single Execute call.
type Options struct {
	Priority    int
	BypassCache bool
}

// RunLimits are advisory limits passed through to the runner; the engine
// does not interpret them.
type RunLimits struct {
	LoopIterationLimit int
	AsyncWaitTime      time.Duration
	PromiseTimeout     time.Duration
}

// Runner evaluates source code inside a sandbox. Implementations must
// honor context cancellation to support cooperative aborts; the engine
// enforces its deadline through the context it passes in.
type Runner interface {
	Run(ctx context.Context, code string, limits RunLimits) (any, error)
}

// Config is the engine's live configuration surface.
type Config struct {
	MaxExecutionTime   time.Duration
	MaxMemoryMB        int
	MaxConcurrent      int
	CacheSize          int
	CacheTTL           time.Duration
	EnableCache        bool
	EnableMetrics      bool
	SecurityLevel      SecurityLevel
	LoopIterationLimit int
	AsyncWaitTime      time.Duration
	PromiseTimeout     time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxExecutionTime:   5 * time.Second,
		MaxMemoryMB:        128,
		MaxConcurrent:      3,
		CacheSize:          100,
		CacheTTL:           5 * time.Minute,
		EnableCache:        true,
		EnableMetrics:      true,
		SecurityLevel:      SecurityMedium,
		LoopIterationLimit: 10000,
		AsyncWaitTime:      100 * time.Millisecond,
		PromiseTimeout:     2 * time.Second,
	}
}

// ConfigPatch is a partial configuration update; nil fields are left
// untouched. Applied settings affect subsequent Execute calls only.
type ConfigPatch struct {
	MaxExecutionTime   *time.Duration `json:"max_execution_time,omitempty"`
	MaxMemoryMB        *int           `json:"max_memory_mb,omitempty"`
	MaxConcurrent      *int           `json:"max_concurrent,omitempty"`
	CacheSize          *int           `json:"cache_size,omitempty"`
	CacheTTL           *time.Duration `json:"cache_ttl,omitempty"`
	EnableCache        *bool          `json:"enable_cache,omitempty"`
	EnableMetrics      *bool          `json:"enable_metrics,omitempty"`
	SecurityLevel      *SecurityLevel `json:"security_level,omitempty"`
	LoopIterationLimit *int           `json:"loop_iteration_limit,omitempty"`
	AsyncWaitTime      *time.Duration `json:"async_wait_time,omitempty"`
	PromiseTimeout     *time.Duration `json:"promise_timeout,omitempty"`
}
