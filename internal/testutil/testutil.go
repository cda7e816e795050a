// Package testutil provides test environment setup and utilities for internal package tests.
package testutil

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/warrant/internal/api"
	"git.sr.ht/~jakintosh/warrant/internal/database"
	"git.sr.ht/~jakintosh/warrant/internal/metrics"
	"git.sr.ht/~jakintosh/warrant/internal/rbac"
	"git.sr.ht/~jakintosh/warrant/internal/service"
	"git.sr.ht/~jakintosh/warrant/pkg/tokens"
)

var (
	TestAccessKey  = []byte("test-access-key-0123456789abcdef")
	TestRefreshKey = []byte("test-refresh-key-0123456789abcdef")
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Unix(1_700_000_000, 0)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TestEnv provides all dependencies needed for testing
type TestEnv struct {
	DB      *database.SQLiteStore
	Service *service.Service
	Codec   *tokens.Codec
	Policy  *rbac.Policy
	Metrics *metrics.Metrics
	Clock   *Clock
	Router  http.Handler
}

// SetupTestEnv creates an isolated test environment with in-memory SQLite
func SetupTestEnv(
	t *testing.T,
) *TestEnv {
	t.Helper()

	db, err := database.Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	clock := NewClock()
	codec, err := tokens.NewCodec(TestAccessKey, TestRefreshKey, tokens.WithClock(clock.Now))
	if err != nil {
		t.Fatalf("failed to build codec: %v", err)
	}

	svc := service.New(
		db.IdentityStore(),
		codec,
		service.PasswordModeTesting,
	)

	return &TestEnv{
		DB:      db,
		Service: svc,
		Codec:   codec,
		Policy:  rbac.DefaultPolicy(),
		Metrics: metrics.New(),
		Clock:   clock,
	}
}

// SetupTestEnvWithRouter creates TestEnv and configures the API router
func SetupTestEnvWithRouter(
	t *testing.T,
	opts ...api.Option,
) *TestEnv {
	t.Helper()
	env := SetupTestEnv(t)
	opts = append([]api.Option{
		api.WithMetrics(env.Metrics),
		api.WithHealthCheck(env.DB.Ping),
	}, opts...)
	a := api.New(env.Service, env.Policy, opts...)
	env.Router = a.Router()
	return env
}

// RegisterTestUser creates a test user in the database
func (env *TestEnv) RegisterTestUser(
	t *testing.T,
	email string,
	password string,
	role rbac.Role,
) service.Identity {
	t.Helper()
	identity, err := env.Service.Provision(context.Background(), email, password, "", role)
	if err != nil {
		t.Fatalf("failed to register test user: %v", err)
	}
	return identity
}

// Transport records what the service hands to the refresh transport.
type Transport struct {
	Token   *tokens.Token
	Sets    int
	Clears  int
	Cleared bool
}

func (t *Transport) SetRefreshToken(token *tokens.Token) {
	t.Token = token
	t.Sets++
	t.Cleared = false
}

func (t *Transport) ClearRefreshToken() {
	t.Token = nil
	t.Clears++
	t.Cleared = true
}
