package logs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bookspot/bookspot_backend/internal/policy"
	"github.com/bookspot/bookspot_backend/internal/schema"
	"github.com/bookspot/bookspot_backend/pkg/reqctx"
)

func TestContextHandlerAddsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(&contextHandler{Handler: slog.NewJSONHandler(&buf, nil)})

	actor := policy.Actor{ID: uuid.New(), Role: schema.RoleServiceProvider}
	ctx := reqctx.WithRequestMeta(context.Background(), &reqctx.RequestMeta{RequestID: "req-1", ClientIP: "203.0.113.7"})
	ctx = reqctx.WithActor(ctx, actor)

	logger.InfoContext(ctx, "timeslot created")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if rec["request_id"] != "req-1" {
		t.Errorf("request_id = %v, want req-1", rec["request_id"])
	}
	if rec["client_ip"] != "203.0.113.7" {
		t.Errorf("client_ip = %v, want 203.0.113.7", rec["client_ip"])
	}
	if rec["actor_id"] != actor.ID.String() {
		t.Errorf("actor_id = %v, want %s", rec["actor_id"], actor.ID)
	}
	if rec["actor_role"] != "service_provider" {
		t.Errorf("actor_role = %v, want service_provider", rec["actor_role"])
	}
}

func TestMultiHandlerFansOut(t *testing.T) {
	var a, b bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	logger := slog.New(h).With("k", "v")

	logger.Info("hello")
	if !strings.Contains(a.String(), "hello") || !strings.Contains(a.String(), "k=v") {
		t.Errorf("first handler output = %q", a.String())
	}
	if b.Len() != 0 {
		t.Errorf("error-level handler wrote an info record: %q", b.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLokiPayload(t *testing.T) {
	lw := &lokiWriter{labels: map[string]string{"service": "bookspot", "env": "test"}}
	at := time.Unix(0, 42)

	body, err := lw.payload([]byte(`{"msg":"say \"hi\""}`+"\n"), at)
	if err != nil {
		t.Fatalf("payload() error = %v", err)
	}

	var got lokiPush
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(got.Streams) != 1 || got.Streams[0].Stream["service"] != "bookspot" {
		t.Fatalf("streams = %+v", got.Streams)
	}
	v := got.Streams[0].Values[0]
	if v[0] != "42" || v[1] != `{"msg":"say \"hi\""}` {
		t.Errorf("value = %q", v)
	}
}
