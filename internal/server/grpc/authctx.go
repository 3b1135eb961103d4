package grpcserver

import (
	"context"

	"github.com/and161185/car-registry/internal/registry"
)

type ctxKey string

const callKey ctxKey = "vr.call"

// WithCall stores the authenticated signer set of the current RPC in context.
func WithCall(ctx context.Context, call registry.Call) context.Context {
	return context.WithValue(ctx, callKey, call)
}

// CallFromCtx fetches the signer set stored by WithCall.
func CallFromCtx(ctx context.Context) (registry.Call, bool) {
	call, ok := ctx.Value(callKey).(registry.Call)
	return call, ok
}
