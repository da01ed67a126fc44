package instrumentation

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestStartCalendarSpan(t *testing.T) {
	recorder := withRecorder(t)

	ctx, span := StartCalendarSpan(context.Background(), OperationFreeBusy, "primary")
	if GetTraceID(ctx) == "" {
		t.Error("expected a trace id in the span context")
	}
	SetSpanSuccess(span)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	s := spans[0]
	if s.Name() != "calendar.freebusy" {
		t.Errorf("unexpected span name %q", s.Name())
	}
	if s.SpanKind() != trace.SpanKindClient {
		t.Errorf("expected client span, got %v", s.SpanKind())
	}
	attrs := map[string]string{}
	for _, kv := range s.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	if attrs[SpanAttrOperation] != OperationFreeBusy || attrs[SpanAttrCalendar] != "primary" {
		t.Errorf("unexpected attributes %v", attrs)
	}
	if s.Status().Code != codes.Ok {
		t.Errorf("expected OK status, got %v", s.Status().Code)
	}
}

func TestStartToolSpan(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartToolSpan(context.Background(), "availability_book")
	SetSpanError(span, errors.New("provider rejected"))
	span.End()

	s := recorder.Ended()[0]
	if s.Name() != "tool.availability_book" || s.SpanKind() != trace.SpanKindServer {
		t.Errorf("unexpected span %q kind %v", s.Name(), s.SpanKind())
	}
	if s.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", s.Status().Code)
	}
	if len(s.Events()) == 0 {
		t.Error("expected the error to be recorded as an event")
	}
}

func TestSetSpanError_NilIsIgnored(t *testing.T) {
	recorder := withRecorder(t)

	_, span := StartSpan(context.Background(), "connector.refresh")
	SetSpanError(span, nil)
	span.End()

	if code := recorder.Ended()[0].Status().Code; code != codes.Unset {
		t.Errorf("expected unset status, got %v", code)
	}
}

func TestGetTraceID_NoSpan(t *testing.T) {
	if id := GetTraceID(context.Background()); id != "" {
		t.Errorf("expected empty trace id, got %q", id)
	}
}
