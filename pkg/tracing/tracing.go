/*
Tracing is a package that wraps go.opentelemetry.io/otel/trace for setting
and retrieving tracers in a context.Context.

This package aids in tracing instrumentation by using context for tracing
instrumentation instead of using package global variables.
*/
package tracing

import (
	"context"

	"github.com/serum-errors/go-serum"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type ctxKey struct{}

// Span attribute keys used by tabcat.
const (
	AttrKeyErrorCode = "tabcat.error.code"
	AttrKeyChannel   = "tabcat.catalog.channel"
	AttrKeyPath      = "tabcat.catalog.path"
	AttrKeyURI       = "tabcat.remote.uri"
)

// TracerFromCtx returns the tracer set for the current context.
// If no tracer is currently set in ctx, a new no-op tracer will be returned.
func TracerFromCtx(ctx context.Context) trace.Tracer {
	tracer, ok := ctx.Value(ctxKey{}).(trace.Tracer)
	if !ok {
		return noop.NewTracerProvider().Tracer("")
	}
	return tracer
}

// SetTracer returns a new context with the given tracer associated with it.
// Setting the tracer to nil will create a noop tracer and insert it into the context.
func SetTracer(ctx context.Context, tracer trace.Tracer) context.Context {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	if existing, ok := ctx.Value(ctxKey{}).(trace.Tracer); ok {
		if existing == tracer {
			// Do not store same object twice.
			return ctx
		}
	}
	return context.WithValue(ctx, ctxKey{}, tracer)
}

// Start is a shortcut for retrieving the context tracer and calling Start.
// Start creates a span and a context.Context containing the newly-created span.
//
// If the current context does not contain a tracer then a new no-op tracer
// will be created for the new context.
func Start(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return TracerFromCtx(ctx).Start(ctx, spanName, opts...)
}

// EndWithStatus ends the span, recording the error's code and message
// when err is non-nil. Meant for use in a deferred closure over a named
// error return.
func EndWithStatus(span trace.Span, err error) {
	if err != nil {
		if code := serum.Code(err); code != "" {
			span.SetAttributes(attribute.String(AttrKeyErrorCode, code))
		}
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// SetSpanError marks the current context's span as failed with the given error.
func SetSpanError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if code := serum.Code(err); code != "" {
		span.SetAttributes(attribute.String(AttrKeyErrorCode, code))
	}
	span.SetStatus(codes.Error, err.Error())
}
