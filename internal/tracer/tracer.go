// Package tracer wraps statement and transaction execution in spans.
// OpenTelemetry is adapted; the default tracer records nothing.
package tracer

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanQuery       = "entities.query"
	SpanTransaction = "entities.transaction"
)

// Tracer starts spans.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span is one traced operation.
type Span interface {
	SetAttributes(attrs ...attribute.KeyValue)
	// End completes the span. A non-nil err marks it failed.
	End(err error)
}

// NoopTracer starts spans that record nothing.
type NoopTracer struct{}

// StartSpan returns ctx unchanged.
func (*NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) SetAttributes(...attribute.KeyValue) {}
func (noopSpan) End(error)                           {}

// OtelTracer starts OpenTelemetry client spans.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer adapts t.
func NewOtelTracer(t trace.Tracer) *OtelTracer {
	return &OtelTracer{tracer: t}
}

// StartSpan starts a client span named name as a child of ctx's span.
func (t *OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	return ctx, otelSpan{span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// QueryMetadata describes one executed statement.
type QueryMetadata struct {
	SQL          string // statement text with @Name parameters
	ParamCount   int
	Duration     time.Duration
	RowsAffected int64
	Database     string // dialect name
	Operation    string // SELECT, INSERT, UPDATE, DELETE
	Table        string // qualified table of the issuing repository
	Action       string // repository action
}

// QueryAttributes renders meta as OpenTelemetry database attributes.
// See https://opentelemetry.io/docs/specs/semconv/database/
func QueryAttributes(meta QueryMetadata) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", meta.Database),
		attribute.String("db.statement", meta.SQL),
		attribute.String("db.operation", meta.Operation),
		attribute.Float64("db.duration_ms", float64(meta.Duration.Microseconds())/1000.0),
		attribute.Int("db.params", meta.ParamCount),
	}
	if meta.Table != "" {
		attrs = append(attrs, attribute.String("db.sql.table", meta.Table))
	}
	if meta.Action != "" {
		attrs = append(attrs, attribute.String("entities.action", meta.Action))
	}
	if meta.RowsAffected > 0 {
		attrs = append(attrs, attribute.Int64("db.rows_affected", meta.RowsAffected))
	}
	return attrs
}

var operations = []string{"SELECT", "INSERT", "UPDATE", "DELETE"}

// DetectOperation returns the leading SQL verb of query: SELECT, INSERT,
// UPDATE or DELETE, SELECT for a WITH clause, UNKNOWN otherwise.
func DetectOperation(query string) string {
	query = strings.TrimLeft(query, " \t\r\n(")
	if len(query) > 6 {
		query = query[:6]
	}
	query = strings.ToUpper(query)
	for _, op := range operations {
		if strings.HasPrefix(query, op) {
			return op
		}
	}
	if strings.HasPrefix(query, "WITH") {
		return "SELECT"
	}
	return "UNKNOWN"
}
