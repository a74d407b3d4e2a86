package common

import "context"

type ctxKey string

const identityKey ctxKey = "auth/identity"

// Identity is the caller as asserted by a validated access token.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// WithIdentity stores the authenticated identity on the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom extracts the authenticated identity if present.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok || id.Subject == "" {
		return Identity{}, false
	}
	return id, true
}
