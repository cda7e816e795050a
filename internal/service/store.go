package service

import (
	"context"

	"git.sr.ht/~jakintosh/warrant/internal/rbac"
	"git.sr.ht/~jakintosh/warrant/pkg/tokens"
)

// Identity is a stored user. PasswordHash never leaves the service layer.
type Identity struct {
	ID           string
	Email        string
	DisplayName  string
	Role         rbac.Role
	PasswordHash []byte
}

// Public returns a copy of the identity without its password hash.
func (i Identity) Public() Identity {
	i.PasswordHash = nil
	return i
}

// IdentityStore handles persistence of user identity data. Lookups of a
// missing identity return an error matching ErrUserNotFound; inserts of an
// existing email return an error matching ErrEmailExists.
type IdentityStore interface {
	InsertIdentity(ctx context.Context, identity Identity) error
	IdentityByEmail(ctx context.Context, email string) (Identity, error)
	IdentityByID(ctx context.Context, id string) (Identity, error)
	ListIdentities(ctx context.Context) ([]Identity, error)
	DeleteIdentity(ctx context.Context, id string) (deleted bool, err error)
}

// RefreshTransport carries the refresh token to and from the caller through
// a channel that caller-side scripts cannot read.
type RefreshTransport interface {
	SetRefreshToken(token *tokens.Token)
	ClearRefreshToken()
}

// Session is the result of a successful login or refresh. The refresh
// token is never part of it; it only travels through the transport.
type Session struct {
	Identity    Identity
	AccessToken *tokens.Token
}
