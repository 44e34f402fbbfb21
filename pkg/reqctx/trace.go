package reqctx

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"go.opentelemetry.io/otel/trace"
)

// TraceInfo correlates log lines of one request. When the request already
// carries an OpenTelemetry span the ids are taken from it, so logs and
// exported traces share a trace id.
type TraceInfo struct {
	TraceID string
	SpanID  string
	Sampled bool
}

// NewTraceInfo derives trace ids from the span in ctx, or generates fresh
// ones when tracing is off.
func NewTraceInfo(ctx context.Context) *TraceInfo {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return &TraceInfo{
			TraceID: sc.TraceID().String(),
			SpanID:  sc.SpanID().String(),
			Sampled: sc.IsSampled(),
		}
	}
	return &TraceInfo{TraceID: randomHex(16), SpanID: randomHex(8)}
}

func WithTrace(ctx context.Context, info *TraceInfo) context.Context {
	return context.WithValue(ctx, keyTrace, info)
}

func TraceFromContext(ctx context.Context) (*TraceInfo, bool) {
	info, ok := ctx.Value(keyTrace).(*TraceInfo)
	return info, ok && info != nil
}

// TraceIDFromContext returns "" when no trace was attached.
func TraceIDFromContext(ctx context.Context) string {
	if info, ok := TraceFromContext(ctx); ok {
		return info.TraceID
	}
	return ""
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
