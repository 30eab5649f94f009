// Package tracing records worker lifecycles as OpenTelemetry spans.
//
// Each worker gets one span, opened on start and ended on its terminal
// notification. Values and pause/resume transitions become span events.
package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/petrijr/seqflow/pkg/api"
)

// InstrumentationName identifies spans created by this package.
const InstrumentationName = "github.com/petrijr/seqflow"

// Observer is an api.Observer that opens one span per worker.
type Observer struct {
	api.NoopObserver

	tracer trace.Tracer

	// RecordValues adds a span event for every emitted value.
	RecordValues bool

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewObserver creates an Observer using tracer. A nil tracer uses the
// global TracerProvider.
func NewObserver(tracer trace.Tracer) *Observer {
	if tracer == nil {
		tracer = otel.Tracer(InstrumentationName)
	}
	return &Observer{
		tracer:       tracer,
		RecordValues: true,
		spans:        make(map[string]trace.Span),
	}
}

func workerAttrs(info api.WorkerInfo) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("seqflow.task", info.Task),
		attribute.String("seqflow.worker_id", info.ID),
		attribute.String("seqflow.params", info.Params),
	}
}

func (o *Observer) span(id string) trace.Span {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.spans[id]
}

func (o *Observer) OnStart(ctx context.Context, info api.WorkerInfo) {
	_, span := o.tracer.Start(ctx, "seqflow.worker "+info.Task,
		trace.WithAttributes(workerAttrs(info)...),
	)

	o.mu.Lock()
	o.spans[info.ID] = span
	o.mu.Unlock()
}

func (o *Observer) OnValue(ctx context.Context, info api.WorkerInfo, value string) {
	if !o.RecordValues {
		return
	}
	if span := o.span(info.ID); span != nil {
		span.AddEvent("value", trace.WithAttributes(attribute.String("seqflow.value", value)))
	}
}

func (o *Observer) OnStateChange(ctx context.Context, info api.WorkerInfo, from, to api.WorkerState) {
	if span := o.span(info.ID); span != nil {
		span.AddEvent("state_change", trace.WithAttributes(
			attribute.String("seqflow.from", from.String()),
			attribute.String("seqflow.to", to.String()),
		))
	}
}

func (o *Observer) OnTerminal(ctx context.Context, info api.WorkerInfo, status api.Status, err error) {
	o.mu.Lock()
	span, ok := o.spans[info.ID]
	delete(o.spans, info.ID)
	o.mu.Unlock()

	if !ok {
		// Cancelled before it ever ran; record a zero-length span.
		_, span = o.tracer.Start(ctx, "seqflow.worker "+info.Task,
			trace.WithAttributes(workerAttrs(info)...),
		)
	}

	span.SetAttributes(attribute.String("seqflow.status", string(status)))
	if status == api.StatusFailed {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Error, string(status))
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
