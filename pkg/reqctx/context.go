package reqctx

import "context"

type ctxKey int

const (
	keyRequestMeta ctxKey = iota
	keyClaims
	keyTrace
	keyActor
)

// RequestMeta describes the inbound HTTP request a booking operation runs
// under. It is set once by the request-id middleware.
type RequestMeta struct {
	RequestID string
	ClientIP  string
}

func WithRequestMeta(ctx context.Context, meta *RequestMeta) context.Context {
	return context.WithValue(ctx, keyRequestMeta, meta)
}

// RequestMetaFromContext returns nil when ctx did not come from an HTTP
// request, as in the sweep worker.
func RequestMetaFromContext(ctx context.Context) *RequestMeta {
	meta, _ := ctx.Value(keyRequestMeta).(*RequestMeta)
	return meta
}
