package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "account-service/internal/server"

// RequestTelemetry starts a server span per request and records its duration.
// Paths in skipPaths (e.g. /health) are not traced. Uses the global providers.
func RequestTelemetry(skipPaths map[string]bool) fiber.Handler {
	tracer := otel.Tracer(instrumentationName)
	meter := otel.Meter(instrumentationName)
	duration, err := meter.Float64Histogram("http.server.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of HTTP server requests."))
	if err != nil {
		otel.Handle(err)
	}
	return func(c *fiber.Ctx) error {
		if skipPaths[c.Path()] {
			return c.Next()
		}
		start := time.Now()
		ctx, span := tracer.Start(c.UserContext(), c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(c.Method()),
				semconv.URLPath(c.Path()),
			))
		defer span.End()
		c.SetUserContext(ctx)

		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			// The error handler has not run yet; take the status it will use.
			status, _ = errorResponse(err, true)
			span.RecordError(err)
		}
		if status >= 500 {
			span.SetStatus(codes.Error, "")
		}
		route := c.Route().Path
		span.SetName(c.Method() + " " + route)
		attrs := []attribute.KeyValue{
			semconv.HTTPRequestMethodKey.String(c.Method()),
			semconv.HTTPRoute(route),
			semconv.HTTPResponseStatusCode(status),
		}
		span.SetAttributes(attrs...)
		if duration != nil {
			duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
		}
		return err
	}
}
