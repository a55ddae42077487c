package middleware

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sterrors "github.com/vango-dev/statetree/internal/errors"
	"github.com/vango-dev/statetree/pkg/observable"
)

const defaultTracerName = "statetree"

// OTelConfig configures the tracing middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "statetree").
	TracerName string

	// TracerProvider supplies the tracer. Default: the global provider.
	TracerProvider trace.TracerProvider

	// IncludeValues records the written value as an attribute.
	// Values may be sensitive; disabled by default.
	IncludeValues bool

	// Filter determines which writes to trace. If nil, all writes are traced.
	Filter func(w *observable.Write) bool

	// Context returns the parent context of write spans. Default:
	// context.Background.
	Context func() context.Context
}

// OTelOption configures the tracing middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeValues enables recording written values.
func WithIncludeValues(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeValues = include
	}
}

// WithWriteFilter sets a filter function for writes.
func WithWriteFilter(filter func(w *observable.Write) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithParentContext sets the function supplying parent contexts, e.g. one
// returning the context of the request currently driving the tree.
func WithParentContext(fn func() context.Context) OTelOption {
	return func(c *OTelConfig) {
		c.Context = fn
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
		Context:    context.Background,
	}
}

// OpenTelemetry returns write middleware that traces every validated write.
//
// Each span is named after the operation ("statetree.set") and carries:
//   - statetree.op and statetree.path attributes
//   - statetree.diffs, the number of diffs the write recorded
//   - error status and statetree.error_code for failed or vetoed writes
//
// Example:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	root.Use(middleware.OpenTelemetry(
//	    middleware.WithTracerProvider(tp),
//	    middleware.WithWriteFilter(func(w *observable.Write) bool {
//	        return w.Op != observable.WriteApplySnapshot
//	    }),
//	))
func OpenTelemetry(opts ...OTelOption) observable.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.TracerProvider == nil {
		config.TracerProvider = otel.GetTracerProvider()
	}
	if config.Context == nil {
		config.Context = context.Background
	}
	tracer := config.TracerProvider.Tracer(config.TracerName)

	return func(w *observable.Write, next func() error) error {
		if config.Filter != nil && !config.Filter(w) {
			return next()
		}

		attrs := []attribute.KeyValue{
			attribute.String("statetree.op", w.Op),
			attribute.String("statetree.path", strings.Join(w.Path(), ".")),
		}
		if config.IncludeValues && w.Op == observable.WriteSet {
			attrs = append(attrs, attribute.String("statetree.value", formatValue(w.Value)))
		}

		_, span := tracer.Start(config.Context(), "statetree."+w.Op,
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		recorded := 0
		remove := w.Node.OnDiff(func(observable.Diff) { recorded++ })
		err := next()
		remove()

		span.SetAttributes(attribute.Int("statetree.diffs", recorded))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			if code := sterrors.CodeOf(err); code != "" {
				span.SetAttributes(attribute.String("statetree.error_code", code))
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}
