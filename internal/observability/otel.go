package observability

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"movieflix/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InitTracer installs a tracer provider exporting spans to w when tracing is
// enabled by config or OTEL_ENABLED. The returned shutdown flushes pending spans.
func InitTracer(c *conf.Trace, version string, w io.Writer, logger log.Logger) (func(context.Context) error, error) {
	l := log.NewHelper(log.With(logger, "module", "observability"))
	noop := func(context.Context) error { return nil }
	if !enabled(c) {
		return noop, nil
	}

	service := "movieflix"
	if c != nil && strings.TrimSpace(c.Service) != "" {
		service = strings.TrimSpace(c.Service)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return noop, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", service),
			attribute.String("service.version", version),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	l.Infof("otel tracing initialized for %s", service)
	return tp.Shutdown, nil
}

func enabled(c *conf.Trace) bool {
	if c != nil && c.Enabled {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_ENABLED"))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
