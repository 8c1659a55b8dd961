package otelhelper

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks span as failed. The innermost error type is recorded under ErrorTypeKey,
// and cancellations are tagged so they can be told apart from step failures.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	attrs = append(attrs,
		attribute.String(ErrorTypeKey, errorType(err)),
		attribute.Bool(CancelledKey, errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)),
	)

	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attrs...)
}

func errorType(err error) string {
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			return fmt.Sprintf("%T", err)
		}

		err = inner
	}
}
