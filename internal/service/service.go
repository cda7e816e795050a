// Package service implements the identity provider for the warrant auth
// server: password login, refresh-token rotation, logout and registration.
package service

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/warrant/pkg/tokens"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRefreshExpired     = errors.New("refresh token expired")
	ErrRefreshInvalid     = errors.New("refresh token invalid")
	ErrUserNotFound       = errors.New("user not found")
	ErrInternal           = errors.New("internal error")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidInput       = errors.New("invalid input")
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// PasswordMode controls bcrypt cost for password hashing.
// Use PasswordModeProduction for real deployments and PasswordModeTesting only in tests.
type PasswordMode int

const (
	// PasswordModeProduction uses bcrypt.DefaultCost (10).
	PasswordModeProduction PasswordMode = iota
	// PasswordModeTesting uses bcrypt.MinCost (4) and panics outside go test.
	PasswordModeTesting
)

func (m PasswordMode) Cost() int {
	switch m {
	case PasswordModeTesting:
		if !testing.Testing() {
			panic("service: PasswordModeTesting used outside of test environment")
		}
		return bcrypt.MinCost
	default:
		return bcrypt.DefaultCost
	}
}

// Service coordinates authentication and token issuance. It depends on an
// IdentityStore for persistence and a Codec for signing.
type Service struct {
	identities   IdentityStore
	codec        *tokens.Codec
	passwordMode PasswordMode
	accessTTL    time.Duration
	refreshTTL   time.Duration
	log          logrus.FieldLogger

	dummyOnce sync.Once
	dummyHash []byte
}

type Option func(*Service)

func WithTTLs(access, refresh time.Duration) Option {
	return func(s *Service) {
		if access > 0 {
			s.accessTTL = access
		}
		if refresh > 0 {
			s.refreshTTL = refresh
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) { s.log = log }
}

func New(
	identities IdentityStore,
	codec *tokens.Codec,
	passwordMode PasswordMode,
	opts ...Option,
) *Service {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &Service{
		identities:   identities,
		codec:        codec,
		passwordMode: passwordMode,
		accessTTL:    DefaultAccessTTL,
		refreshTTL:   DefaultRefreshTTL,
		log:          discard,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) AccessTTL() time.Duration  { return s.accessTTL }
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }
func (s *Service) Codec() *tokens.Codec      { return s.codec }
