package api

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName      = "tasksync/api"
	requestSpanName = "tasks.request"
)

// requestMetrics records one request as a log entry and a span.
type requestMetrics struct {
	logger      log.FieldLogger
	span        trace.Span
	route       string
	start       time.Time
	userID      string
	tasks       int
	errorStage  string
	filtersUsed bool
}

func newRequestMetrics(ctx context.Context, logger log.FieldLogger, route string) (*requestMetrics, context.Context) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, requestSpanName,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("http.route", route)),
	)
	return &requestMetrics{logger: logger, span: span, route: route, start: time.Now(), tasks: -1}, ctx
}

func (m *requestMetrics) SetUser(id string) { m.userID = id }

func (m *requestMetrics) SetTasksReturned(n int) {
	if n < 0 {
		n = 0
	}
	m.tasks = n
}

func (m *requestMetrics) SetFiltersUsed(used bool) { m.filtersUsed = used }

func (m *requestMetrics) SetErrorStage(stage string) {
	if stage != "" {
		m.errorStage = stage
	}
}

// Log emits the entry and ends the span.
func (m *requestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	total := durationToMillis(time.Since(m.start))
	fields := log.Fields{
		"route":    m.route,
		"status":   status,
		"total_ms": total,
		"filters":  m.filtersUsed,
	}
	attrs := []attribute.KeyValue{
		attribute.Int("http.status_code", status),
		attribute.Float64("tasksync.total_ms", total),
		attribute.Bool("tasksync.filters", m.filtersUsed),
	}
	if m.userID != "" {
		fields["user"] = m.userID
	}
	if m.tasks >= 0 {
		fields["tasks_returned"] = m.tasks
		attrs = append(attrs, attribute.Int("tasksync.tasks_returned", m.tasks))
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
		attrs = append(attrs, attribute.String("tasksync.error_stage", m.errorStage))
	}
	m.span.SetAttributes(attrs...)

	switch {
	case err != nil:
		fields["error"] = err.Error()
		m.span.RecordError(err)
		m.span.SetStatus(codes.Error, err.Error())
	case status >= http.StatusInternalServerError:
		m.span.SetStatus(codes.Error, http.StatusText(status))
	default:
		m.span.SetStatus(codes.Ok, "")
	}
	m.span.End()

	if m.logger != nil {
		m.logger.WithFields(fields).Info("tasks.request.metrics")
	}
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
