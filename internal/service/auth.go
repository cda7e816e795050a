package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Login authenticates email and password and issues a fresh token pair.
// Unknown email and wrong password produce the same ErrInvalidCredentials.
func (s *Service) Login(
	ctx context.Context,
	email string,
	password string,
	transport RefreshTransport,
) (
	*Session,
	error,
) {
	identity, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	session, err := s.issueSession(identity, transport)
	if err != nil {
		return nil, err
	}

	s.log.WithField("user", identity.ID).Info("login succeeded")
	return session, nil
}

// Logout clears the refresh token transport. It never fails and is safe to
// call repeatedly; issued access tokens expire on their own.
func (s *Service) Logout(transport RefreshTransport) {
	transport.ClearRefreshToken()
}

func (s *Service) authenticate(
	ctx context.Context,
	email string,
	password string,
) (
	Identity,
	error,
) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return Identity{}, ErrInvalidCredentials
	}

	identity, err := s.identities.IdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			// spend the same bcrypt work as a real comparison
			_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
			s.log.WithField("email", email).Debug("login for unknown email")
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, fmt.Errorf("%w: failed to retrieve identity: %v", ErrInternal, err)
	}

	err = bcrypt.CompareHashAndPassword(identity.PasswordHash, []byte(password))
	if err != nil {
		s.log.WithField("user", identity.ID).Debug("login with wrong password")
		return Identity{}, ErrInvalidCredentials
	}

	return identity, nil
}

func (s *Service) dummy() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.passwordMode.Cost())
		if err != nil {
			s.log.WithError(err).Error("failed to build dummy hash")
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
