// Package reqctx carries request-scoped values through context.Context:
// request metadata, the verified session claims, the resolved actor and the
// trace ids used to correlate log lines.
//
// Middleware sets the values in this order:
//
//	ctx = reqctx.WithRequestMeta(ctx, meta)
//	ctx = reqctx.WithTrace(ctx, reqctx.NewTraceInfo(ctx))
//	ctx = reqctx.WithClaims(ctx, claims) // authenticated requests only
//	ctx = reqctx.WithActor(ctx, actor)   // once the account is loaded
//
// Services read the actor with ActorFromContext; the logger reads the request
// metadata, trace id and actor to stamp every record.
package reqctx
