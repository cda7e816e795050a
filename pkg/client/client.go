package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"git.sr.ht/~jakintosh/warrant/pkg/tokens"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultRefreshTimeout = 5 * time.Second
	DefaultSkew           = 60 * time.Second
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

type tokenResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Manager holds the access token in memory and wraps outbound calls so an
// expired token is refreshed once, no matter how many calls notice it.
// The refresh token lives only in the HTTP client's cookie jar.
type Manager struct {
	base           *url.URL
	http           *http.Client
	log            logrus.FieldLogger
	now            func() time.Time
	refreshTimeout time.Duration
	skew           time.Duration

	mu         sync.Mutex
	token      string
	expiry     time.Time
	generation uint64
	ended      chan struct{}
	endedOnce  *sync.Once

	flight singleflight.Group
}

type Option func(*Manager)

// WithHTTPClient supplies the transport. A client without a cookie jar is
// given one, since the refresh cookie must persist between calls.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.http = c }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(m *Manager) { m.refreshTimeout = d }
}

// WithSkew sets how long before expiry the preemptive refresher acts.
func WithSkew(d time.Duration) Option {
	return func(m *Manager) { m.skew = d }
}

func New(baseURL string, opts ...Option) (*Manager, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	m := &Manager{
		base:           base,
		log:            discard,
		now:            time.Now,
		refreshTimeout: DefaultRefreshTimeout,
		skew:           DefaultSkew,
		ended:          make(chan struct{}),
		endedOnce:      &sync.Once{},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.http == nil {
		m.http = &http.Client{Timeout: 30 * time.Second}
	}
	if m.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %v", err)
		}
		m.http.Jar = jar
	}
	return m, nil
}

// AccessToken returns the current access token, or "" when logged out.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// SessionEnded is closed when the server refuses a refresh or the caller
// logs out. A later Login starts a new session with a fresh channel.
func (m *Manager) SessionEnded() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ended
}

func (m *Manager) current() (string, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.generation
}

func (m *Manager) setToken(token string) {
	expiry, err := tokens.PeekExpiry(token)
	if err != nil {
		m.log.WithError(err).Warn("access token expiry unreadable")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.expiry = expiry
	m.generation++
}

func (m *Manager) endSession(reason string) {
	m.mu.Lock()
	m.token = ""
	m.expiry = time.Time{}
	m.generation++
	ended, once := m.ended, m.endedOnce
	m.mu.Unlock()

	once.Do(func() {
		m.log.WithField("reason", reason).Info("session ended")
		close(ended)
	})
}

func (m *Manager) startSession(token string) {
	m.mu.Lock()
	select {
	case <-m.ended:
		m.ended = make(chan struct{})
		m.endedOnce = &sync.Once{}
	default:
	}
	m.mu.Unlock()
	m.setToken(token)
}

func (m *Manager) endpoint(path string) string {
	return m.base.String() + path
}

// Login exchanges credentials for a session. The refresh cookie lands in
// the jar; the access token stays in memory.
func (m *Manager) Login(ctx context.Context, email, password string) (*User, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint("/auth/login"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := m.postToken(req)
	if err != nil {
		return nil, err
	}
	m.startSession(res.AccessToken)
	m.log.WithField("user", res.User.ID).Debug("logged in")
	return &res.User, nil
}

// Logout clears the server cookie and forgets the access token. Local
// state is cleared even when the request fails.
func (m *Manager) Logout(ctx context.Context) error {
	defer m.endSession("logout")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint("/auth/logout"), nil)
	if err != nil {
		return err
	}
	res, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenRequest, err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	if res.StatusCode != http.StatusOK {
		return readAPIError(res)
	}
	return nil
}

// Refresh forces a refresh, sharing any refresh already in flight.
func (m *Manager) Refresh(ctx context.Context) error {
	_, gen := m.current()
	return m.refresh(ctx, gen)
}

// RefreshIfExpiring refreshes when the token is within the skew of its
// expiry. It reports whether a refresh ran.
func (m *Manager) RefreshIfExpiring(ctx context.Context) (bool, error) {
	m.mu.Lock()
	token, expiry, gen := m.token, m.expiry, m.generation
	m.mu.Unlock()

	if token == "" || expiry.IsZero() || m.now().Before(expiry.Add(-m.skew)) {
		return false, nil
	}
	return true, m.refresh(ctx, gen)
}

// Start runs the preemptive refresher until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	interval := m.skew / 2
	if interval <= 0 {
		interval = time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := m.RefreshIfExpiring(ctx); err != nil {
					m.log.WithError(err).Warn("preemptive refresh failed")
				}
			}
		}
	}()
}

// refresh runs at most one refresh at a time. seen is the generation of
// the token the caller found wanting; if it has already been replaced the
// caller simply retries with the newer token.
func (m *Manager) refresh(ctx context.Context, seen uint64) error {
	if replaced, err := m.replaced(seen); replaced {
		return err
	}

	ch := m.flight.DoChan("refresh", func() (any, error) {
		if replaced, err := m.replaced(seen); replaced {
			return nil, err
		}
		// detached from any one caller so a cancelled waiter cannot abort
		// the refresh the others are waiting on
		rctx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
		defer cancel()
		return nil, m.doRefresh(rctx)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// replaced reports whether the token generation seen has been superseded.
// The error is ErrSessionEnded when it was superseded by the session ending.
func (m *Manager) replaced(seen uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation == seen {
		return false, nil
	}
	select {
	case <-m.ended:
		if m.token == "" {
			return true, ErrSessionEnded
		}
	default:
	}
	return true, nil
}

func (m *Manager) doRefresh(ctx context.Context) error {
	m.log.Debug("refreshing access token")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint("/auth/refresh"), nil)
	if err != nil {
		return err
	}

	res, err := m.postToken(req)
	if err != nil {
		m.log.WithError(err).Warn("refresh failed")
		m.endSession("refresh failed")
		return fmt.Errorf("%w: %w", ErrSessionEnded, err)
	}

	m.setToken(res.AccessToken)
	m.log.Debug("access token refreshed")
	return nil
}

func (m *Manager) postToken(req *http.Request) (*tokenResponse, error) {
	res, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenRequest, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, readAPIError(res)
	}

	var body tokenResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenResponse, err)
	}
	if body.AccessToken == "" {
		return nil, fmt.Errorf("%w: missing accessToken", ErrTokenResponse)
	}
	return &body, nil
}

func readAPIError(res *http.Response) error {
	apiErr := &APIError{Status: res.StatusCode}
	var body errorResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<16)).Decode(&body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	}
	return apiErr
}

// Do sends req with the current access token. On a 401 it waits for a
// single shared refresh and retries once. If the refresh fails for any
// reason, the returned error matches ErrSessionEnded and wraps the
// original 401 as an *APIError.
func (m *Manager) Do(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.GetBody == nil {
		data, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
		req.Body, _ = req.GetBody()
	}

	token, gen := m.current()
	res, err := m.send(req, token)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusUnauthorized {
		return res, nil
	}

	original := readAPIError(res)
	res.Body.Close()

	if err := m.refresh(req.Context(), gen); err != nil {
		if errors.Is(err, ErrSessionEnded) {
			return nil, fmt.Errorf("%w (refresh: %w)", original, err)
		}
		return nil, err
	}

	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	token, _ = m.current()
	return m.send(retry, token)
}

func (m *Manager) send(req *http.Request, token string) (*http.Response, error) {
	out := req.Clone(req.Context())
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}
	return m.http.Do(out)
}
