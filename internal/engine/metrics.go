package engine

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/jsforge/backend/internal/cache"
	"github.com/jsforge/backend/internal/queue"
)

// metricsLogCap bounds the rolling in-memory metrics log; the oldest
// entries are trimmed beyond it.
const metricsLogCap = 1000

// Snapshot aggregates the rolling metrics log with live cache and queue
// state. Consumed by the metrics API and the websocket stream.
type Snapshot struct {
	TotalExecutions      int           `json:"total_executions"`
	AverageExecutionTime time.Duration `json:"average_execution_time"`
	P95ExecutionTime     time.Duration `json:"p95_execution_time"`
	ErrorRate            float64       `json:"error_rate"`
	CacheHitRate         float64       `json:"cache_hit_rate"`
	Cache                cache.Stats   `json:"cache"`
	Queue                queue.Stats   `json:"queue"`
	ActiveExecutions     int           `json:"active_executions"`
}

// record appends to the rolling metrics log (when metrics are enabled)
// and feeds the Prometheus collector if one is attached.
func (e *Engine) record(cfg Config, m Metrics, res *Result) {
	if cfg.EnableMetrics {
		e.logMu.Lock()
		e.log = append(e.log, m)
		if len(e.log) > metricsLogCap {
			e.log = e.log[len(e.log)-metricsLogCap:]
		}
		e.logMu.Unlock()
	}
	if e.prom != nil {
		e.prom.RecordExecution(string(res.Status), res.Duration, res.FromCache)
	}
	e.updateGauges()
}

// Metrics aggregates the rolling log into a point-in-time snapshot.
func (e *Engine) Metrics() Snapshot {
	e.logMu.Lock()
	entries := make([]Metrics, len(e.log))
	copy(entries, e.log)
	e.logMu.Unlock()

	snap := Snapshot{
		TotalExecutions:  len(entries),
		Cache:            e.cache.Stats(),
		Queue:            e.queue.Stats(),
		ActiveExecutions: e.activeCount(),
	}
	if len(entries) == 0 {
		return snap
	}

	times := make([]float64, 0, len(entries))
	var failures, hits int
	for _, m := range entries {
		times = append(times, m.ExecutionTime.Seconds())
		if m.ErrorCount > 0 {
			failures++
		}
		if m.CacheHit {
			hits++
		}
	}
	sort.Float64s(times)

	snap.AverageExecutionTime = time.Duration(stat.Mean(times, nil) * float64(time.Second))
	snap.P95ExecutionTime = time.Duration(stat.Quantile(0.95, stat.Empirical, times, nil) * float64(time.Second))
	snap.ErrorRate = float64(failures) / float64(len(entries))
	snap.CacheHitRate = float64(hits) / float64(len(entries))
	return snap
}
