package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Span records one timed operation. Spans nest through the context:
// starting a span under an existing one inherits its trace ID and links
// back to it, so a request's analyses show up under one trace.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Operation string            `json:"operation"`
	StartTime time.Time         `json:"start_time"`
	EndTime   *time.Time        `json:"end_time,omitempty"`
	Duration  *time.Duration    `json:"duration,omitempty"`
	Tags      map[string]string `json:"tags,omitempty"`
	Status    SpanStatus        `json:"status"`
	Error     string            `json:"error,omitempty"`
}

type SpanStatus string

const (
	SpanStatusOK    SpanStatus = "OK"
	SpanStatusError SpanStatus = "ERROR"
)

type spanContextKey struct{}

// StartSpan opens a span for the named operation and attaches it to the
// returned context. The caller must Finish it.
func StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	span := &Span{
		SpanID:    randomID(spanIDBytes),
		Operation: operation,
		StartTime: time.Now(),
		Status:    SpanStatusOK,
		Tags:      make(map[string]string),
	}

	if parent := GetSpan(ctx); parent != nil {
		span.TraceID = parent.TraceID
		span.ParentID = parent.SpanID
	} else {
		span.TraceID = randomID(traceIDBytes)
	}

	return context.WithValue(ctx, spanContextKey{}, span), span
}

// Finish stamps the end time and returns the elapsed duration.
func (s *Span) Finish() time.Duration {
	now := time.Now()
	elapsed := now.Sub(s.StartTime)
	s.EndTime = &now
	s.Duration = &elapsed
	return elapsed
}

func (s *Span) SetTag(key, value string) {
	if s.Tags == nil {
		s.Tags = make(map[string]string)
	}
	s.Tags[key] = value
}

func (s *Span) SetError(err error) {
	s.Status = SpanStatusError
	if err != nil {
		s.Error = err.Error()
	}
}

func GetSpan(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanContextKey{}).(*Span); ok {
		return span
	}
	return nil
}

const (
	traceIDBytes = 16
	spanIDBytes  = 8
)

func randomID(n int) string {
	buf := make([]byte, n)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
