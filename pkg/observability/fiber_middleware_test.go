package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return rec
}

func TestFiberMiddlewareNamesSpanAfterRoute(t *testing.T) {
	rec := recordSpans(t)

	app := fiber.New()
	app.Use(FiberMiddleware("/livez"))
	app.Get("/livez", func(c fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/api/v1/timeslots/:id", func(c fiber.Ctx) error { return c.SendStatus(fiber.StatusNotFound) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/timeslots/42", nil))
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.Header.Get(HeaderTraceID) == "" {
		t.Error("trace id header not set")
	}
	if _, err := app.Test(httptest.NewRequest(http.MethodGet, "/livez", nil)); err != nil {
		t.Fatalf("app.Test(/livez) error = %v", err)
	}

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1 (health check skipped)", len(spans))
	}
	s := spans[0]
	if s.Name() != "GET /api/v1/timeslots/:id" {
		t.Errorf("span name = %q, want route template", s.Name())
	}
	attrs := map[string]any{}
	for _, kv := range s.Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	if attrs["http.response.status_code"] != int64(404) {
		t.Errorf("status attribute = %v, want 404", attrs["http.response.status_code"])
	}
	if attrs["url.path"] != "/api/v1/timeslots/42" {
		t.Errorf("url.path = %v", attrs["url.path"])
	}
}
