package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"git.sr.ht/~jakintosh/warrant/internal/ids"
	"git.sr.ht/~jakintosh/warrant/internal/rbac"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 8

// Register creates a viewer account.
func (s *Service) Register(
	ctx context.Context,
	email string,
	password string,
	displayName string,
) (
	Identity,
	error,
) {
	return s.Provision(ctx, email, password, displayName, rbac.RoleViewer)
}

// Provision creates an account with an explicit role. It backs both public
// registration and operator seeding.
func (s *Service) Provision(
	ctx context.Context,
	email string,
	password string,
	displayName string,
	role rbac.Role,
) (
	Identity,
	error,
) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return Identity{}, fmt.Errorf("%w: email %q", ErrInvalidInput, email)
	}
	if len(password) < MinPasswordLength {
		return Identity{}, fmt.Errorf("%w: password shorter than %d characters", ErrInvalidInput, MinPasswordLength)
	}
	if _, err := rbac.ParseRole(string(role)); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}

	hashPass, err := bcrypt.GenerateFromPassword([]byte(password), s.passwordMode.Cost())
	if err != nil {
		return Identity{}, fmt.Errorf("%w: failed to hash password: %v", ErrInternal, err)
	}

	identity := Identity{
		ID:           ids.New(),
		Email:        email,
		DisplayName:  displayName,
		Role:         role,
		PasswordHash: hashPass,
	}
	if err := s.identities.InsertIdentity(ctx, identity); err != nil {
		if errors.Is(err, ErrEmailExists) {
			return Identity{}, fmt.Errorf("%w: %s", ErrEmailExists, email)
		}
		return Identity{}, fmt.Errorf("%w: failed to insert identity: %v", ErrInternal, err)
	}

	s.log.WithFields(logrus.Fields{
		"user": identity.ID,
		"role": role,
	}).Info("identity registered")
	return identity.Public(), nil
}
