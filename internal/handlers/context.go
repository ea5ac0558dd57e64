package handlers

import (
	"context"

	"subgen/internal/auth"
)

type contextKey int

const identityKey contextKey = iota

func contextWithIdentity(ctx context.Context, ident auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

func identityFromContext(ctx context.Context) (auth.Identity, bool) {
	ident, ok := ctx.Value(identityKey).(auth.Identity)
	return ident, ok
}
