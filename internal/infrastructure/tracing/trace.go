package tracing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Headers carrying trace context between the service and its clients.
const (
	HeaderTraceID = "X-Trace-ID"
	HeaderSpanID  = "X-Span-ID"
)

type ctxKey int

const (
	ctxTraceID ctxKey = iota
	ctxSpanID
)

// Span records one traced request.
type Span struct {
	TraceID  string
	SpanID   string
	ParentID string
	Name     string
	Status   int
	Err      error
	Started  time.Time
	Duration time.Duration
	Tags     map[string]string
}

// SetTag attaches a key/value pair to the span.
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// Tracer mints spans and drains finished ones into the service log.
// A single goroutine does the logging, so a slow sink never blocks a
// request handler.
type Tracer struct {
	service string
	logger  *zap.Logger
	done    chan *Span
}

// New starts a tracer for the named service.
func New(service string, logger *zap.Logger) *Tracer {
	t := &Tracer{
		service: service,
		logger:  logger,
		done:    make(chan *Span, 1000),
	}
	go t.drain()
	return t
}

// Start opens a span under the trace carried by ctx, minting a fresh
// trace ID when the request arrived without one. The returned context
// names the new span as parent for anything started beneath it.
func (t *Tracer) Start(ctx context.Context, name string) (*Span, context.Context) {
	traceID, _ := ctx.Value(ctxTraceID).(string)
	if traceID == "" {
		traceID = uuid.NewString()
	}
	parentID, _ := ctx.Value(ctxSpanID).(string)

	s := &Span{
		TraceID:  traceID,
		SpanID:   uuid.NewString(),
		ParentID: parentID,
		Name:     name,
		Started:  time.Now(),
		Tags:     make(map[string]string),
	}

	ctx = context.WithValue(ctx, ctxTraceID, traceID)
	ctx = context.WithValue(ctx, ctxSpanID, s.SpanID)
	return s, ctx
}

// Finish closes the span and hands it to the drain goroutine. When
// the buffer is full the span is dropped instead of blocking.
func (t *Tracer) Finish(s *Span) {
	s.Duration = time.Since(s.Started)
	select {
	case t.done <- s:
	default:
		t.logger.Warn("span buffer full, dropping span",
			zap.String("trace_id", s.TraceID),
			zap.String("span", s.Name),
		)
	}
}

func (t *Tracer) drain() {
	for s := range t.done {
		fields := []zap.Field{
			zap.String("trace_id", s.TraceID),
			zap.String("span_id", s.SpanID),
			zap.String("operation", s.Name),
			zap.String("service", t.service),
			zap.Int("status", s.Status),
			zap.Duration("duration", s.Duration),
		}
		if s.ParentID != "" {
			fields = append(fields, zap.String("parent_id", s.ParentID))
		}
		for k, v := range s.Tags {
			fields = append(fields, zap.String(k, v))
		}
		if s.Err != nil {
			t.logger.Error("request failed", append(fields, zap.Error(s.Err))...)
			continue
		}
		t.logger.Info("request traced", fields...)
	}
}
