package service

import (
	"context"
	"errors"
	"fmt"

	"git.sr.ht/~jakintosh/warrant/pkg/tokens"
)

// Refresh exchanges a refresh token for a rotated pair. The identity is
// re-resolved so deleted accounts cannot refresh. On any credential failure
// the transport is cleared.
func (s *Service) Refresh(
	ctx context.Context,
	encRefresh string,
	transport RefreshTransport,
) (
	*Session,
	error,
) {
	if encRefresh == "" {
		transport.ClearRefreshToken()
		return nil, fmt.Errorf("%w: missing", ErrRefreshInvalid)
	}

	token, err := s.codec.VerifyRefresh(encRefresh)
	if err != nil {
		transport.ClearRefreshToken()
		if errors.Is(err, tokens.ErrTokenExpired()) {
			return nil, ErrRefreshExpired
		}
		s.log.WithError(err).Debug("refresh token rejected")
		return nil, ErrRefreshInvalid
	}

	identity, err := s.identities.IdentityByID(ctx, token.Subject())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			transport.ClearRefreshToken()
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, token.Subject())
		}
		return nil, fmt.Errorf("%w: failed to retrieve identity: %v", ErrInternal, err)
	}

	session, err := s.issueSession(identity, transport)
	if err != nil {
		return nil, err
	}

	s.log.WithField("user", identity.ID).Debug("refresh rotated")
	return session, nil
}

// ResolveRefresh verifies a refresh token and returns the identity it
// names without rotating anything. Page requests use it to accept the
// longer-lived session cookie.
func (s *Service) ResolveRefresh(
	ctx context.Context,
	encRefresh string,
) (
	Identity,
	error,
) {
	token, err := s.codec.VerifyRefresh(encRefresh)
	if err != nil {
		if errors.Is(err, tokens.ErrTokenExpired()) {
			return Identity{}, ErrRefreshExpired
		}
		return Identity{}, ErrRefreshInvalid
	}
	identity, err := s.identities.IdentityByID(ctx, token.Subject())
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, err
		}
		return Identity{}, fmt.Errorf("%w: failed to retrieve identity: %v", ErrInternal, err)
	}
	return identity.Public(), nil
}

func (s *Service) issueSession(
	identity Identity,
	transport RefreshTransport,
) (
	*Session,
	error,
) {
	access, err := s.codec.IssueAccess(identity.ID, string(identity.Role), s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to issue access token: %v", ErrInternal, err)
	}
	refresh, err := s.codec.IssueRefresh(identity.ID, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to issue refresh token: %v", ErrInternal, err)
	}

	transport.SetRefreshToken(refresh)

	return &Session{
		Identity:    identity.Public(),
		AccessToken: access,
	}, nil
}
