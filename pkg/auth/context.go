package auth

import (
	"context"
	"log/slog"

	"github.com/coachlatam/coachlatam/pkg/logger"
)

type contextKey struct{ name string }

func (c contextKey) String() string { return c.name }

var identityContextKey = &contextKey{name: "auth_identity"}

// WithIdentity stores the caller identity in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFrom returns the caller identity stored by the middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(Identity)
	return id, ok
}

// RequireIdentity is IdentityFrom returning ErrUnauthenticated when absent.
func RequireIdentity(ctx context.Context) (Identity, error) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}

// UserIDExtractor adds user_id to log records written with a request context.
func UserIDExtractor(ctx context.Context) (slog.Attr, bool) {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return logger.UserID(id.UserID.String()), true
}
