package gate

import (
	"context"

	"git.sr.ht/~jakintosh/warrant/internal/rbac"
)

// Source records which credential admitted the request.
type Source string

const (
	SourceBearer  Source = "bearer"
	SourceSession Source = "session"
)

// Principal is the resolved identity attached to a passed request.
type Principal struct {
	Subject string
	Role    rbac.Role
	Source  Source
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	if !ok || p.Subject == "" {
		return Principal{}, false
	}
	return p, true
}
