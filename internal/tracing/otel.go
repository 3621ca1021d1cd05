package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Options configures the process-wide tracer provider.
type Options struct {
	ServiceName    string
	ServiceVersion string
	// Environment is the deployment environment name, e.g. the Railway
	// environment the service runs in. Empty omits the attribute.
	Environment string
	// SampleRatio is the head-sampling ratio in (0, 1]; zero means sample
	// everything.
	SampleRatio float64
}

func (o Options) withDefaults() Options {
	if o.ServiceName == "" {
		o.ServiceName = "railwayd"
	}
	if o.SampleRatio <= 0 || o.SampleRatio > 1 {
		o.SampleRatio = 1
	}
	return o
}

var (
	initOnce    sync.Once
	providerMu  sync.RWMutex
	provider    *sdktrace.TracerProvider
	providerErr error
)

// Init initializes the global OpenTelemetry tracer provider. It is safe to
// call multiple times; only the first call takes effect.
func Init(opts Options) error {
	initOnce.Do(func() {
		opts = opts.withDefaults()

		attrs := []attribute.KeyValue{
			semconv.ServiceName(opts.ServiceName),
		}
		if opts.ServiceVersion != "" {
			attrs = append(attrs, semconv.ServiceVersion(opts.ServiceVersion))
		}
		if opts.Environment != "" {
			attrs = append(attrs, semconv.DeploymentEnvironment(opts.Environment))
		}

		res, err := resource.New(context.Background(), resource.WithAttributes(attrs...))
		if err != nil {
			providerErr = err
			return
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(opts.SampleRatio))),
			sdktrace.WithResource(res),
		)

		providerMu.Lock()
		provider = tp
		providerMu.Unlock()

		otel.SetTracerProvider(tp)
	})

	return providerErr
}

// Shutdown flushes and shuts down the global tracer provider.
func Shutdown(ctx context.Context) error {
	providerMu.RLock()
	tp := provider
	providerMu.RUnlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// StartSpan starts a span and ensures trace_id is propagated in the tracing context.
func StartSpan(ctx context.Context, tracerName, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))

	if GetTraceID(ctx) == "" {
		sc := span.SpanContext()
		if sc.IsValid() {
			ctx = WithTraceID(ctx, sc.TraceID().String())
		}
	}

	return ctx, span
}
