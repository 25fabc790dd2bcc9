// Package tracing provides lightweight request tracing. Spans are collected
// asynchronously and logged; trace ids propagate through X-Trace-ID headers.
package tracing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jsforge/backend/internal/shared/id"
)

type contextKey int

const (
	traceIDKey contextKey = iota
	spanIDKey
)

// TraceID represents a unique trace identifier
type TraceID string

// SpanID represents a unique span identifier
type SpanID string

// Span represents a single operation in a trace
type Span struct {
	TraceID   TraceID
	SpanID    SpanID
	ParentID  SpanID
	Name      string
	Service   string
	StartTime time.Time
	Duration  time.Duration
	Tags      map[string]string
	Status    int

	tracer *Tracer
}

// Tracer manages span collection for a service
type Tracer struct {
	service string
	logger  *zap.Logger
	spans   chan *Span
}

// New creates a new tracer instance
func New(service string, logger *zap.Logger) *Tracer {
	t := &Tracer{
		service: service,
		logger:  logger,
		spans:   make(chan *Span, 1000),
	}

	go t.collect()

	return t
}

// StartSpan creates a new span, inheriting trace context from ctx.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	traceID, _ := ctx.Value(traceIDKey).(TraceID)
	if traceID == "" {
		traceID = TraceID(id.NewRequestID())
	}
	parentID, _ := ctx.Value(spanIDKey).(SpanID)

	span := &Span{
		TraceID:   traceID,
		SpanID:    SpanID(id.NewRequestID()),
		ParentID:  parentID,
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
		tracer:    t,
	}

	newCtx := context.WithValue(ctx, traceIDKey, traceID)
	newCtx = context.WithValue(newCtx, spanIDKey, span.SpanID)

	return span, newCtx
}

// SetTag attaches a key/value tag to the span
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// Finish completes the span and hands it to the collector.
// Drops the span if the collector is saturated.
func (s *Span) Finish() {
	if s.Duration == 0 {
		s.Duration = time.Since(s.StartTime)
	}
	select {
	case s.tracer.spans <- s:
	default:
	}
}

// collect drains finished spans and logs them at debug level.
func (t *Tracer) collect() {
	for span := range t.spans {
		t.logger.Debug("span finished",
			zap.String("trace_id", string(span.TraceID)),
			zap.String("span_id", string(span.SpanID)),
			zap.String("name", span.Name),
			zap.Duration("duration", span.Duration),
			zap.Int("status", span.Status),
		)
	}
}
