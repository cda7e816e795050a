package client_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/warrant/internal/rbac"
	"git.sr.ht/~jakintosh/warrant/internal/testutil"
	"git.sr.ht/~jakintosh/warrant/pkg/client"
	"git.sr.ht/~jakintosh/warrant/pkg/warranttest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type server struct {
	env       *testutil.TestEnv
	url       string
	refreshes atomic.Int32
}

func setupServer(t *testing.T) *server {
	t.Helper()
	env := testutil.SetupTestEnvWithRouter(t)
	env.RegisterTestUser(t, "alice@example.com", "password123", rbac.RoleEditor)

	s := &server{env: env}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			s.refreshes.Add(1)
		}
		env.Router.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	s.url = srv.URL
	return s
}

func (s *server) manager(t *testing.T, opts ...client.Option) *client.Manager {
	t.Helper()
	opts = append([]client.Option{client.WithClock(s.env.Clock.Now)}, opts...)
	m, err := client.New(s.url, opts...)
	require.NoError(t, err)
	return m
}

func (s *server) get(t *testing.T, path string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.url+path, nil)
	require.NoError(t, err)
	return req
}

func login(t *testing.T, m *client.Manager) {
	t.Helper()
	user, err := m.Login(context.Background(), "alice@example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
	require.NotEmpty(t, m.AccessToken())
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := client.New("not a url")
	assert.Error(t, err)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	s := setupServer(t)
	m := s.manager(t)

	_, err := m.Login(context.Background(), "alice@example.com", "wrong")

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "INVALID_CREDENTIALS", apiErr.Code)
	assert.Empty(t, m.AccessToken())
}

func TestDo_AttachesToken(t *testing.T) {
	s := setupServer(t)
	m := s.manager(t)
	login(t, m)

	res, err := m.Do(s.get(t, "/api/me"))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, int32(0), s.refreshes.Load())
}

func TestDo_ConcurrentRefreshHappensOnce(t *testing.T) {
	s := setupServer(t)
	m := s.manager(t)
	login(t, m)
	before := m.AccessToken()

	s.env.Clock.Advance(16 * time.Minute)

	const callers = 10
	var wg sync.WaitGroup
	statuses := make([]int, callers)
	errs := make([]error, callers)
	reqs := make([]*http.Request, callers)
	for i := range callers {
		reqs[i] = s.get(t, "/api/me")
	}
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := m.Do(reqs[i])
			errs[i] = err
			if err == nil {
				statuses[i] = res.StatusCode
				res.Body.Close()
			}
		}(i)
	}
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, http.StatusOK, statuses[i])
	}
	assert.Equal(t, int32(1), s.refreshes.Load())
	assert.NotEqual(t, before, m.AccessToken())
}

func TestDo_RefreshRejectedEndsSession(t *testing.T) {
	s := setupServer(t)
	m := s.manager(t)
	login(t, m)

	s.env.Clock.Advance(8 * 24 * time.Hour)

	res, err := m.Do(s.get(t, "/api/me"))
	require.Nil(t, res)
	require.ErrorIs(t, err, client.ErrSessionEnded)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "TOKEN_EXPIRED", apiErr.Code)
	assert.True(t, apiErr.Expired())

	assert.Empty(t, m.AccessToken())
	select {
	case <-m.SessionEnded():
	default:
		t.Fatal("session ended channel not closed")
	}
}

func TestDo_ReloadWithCookieOnly(t *testing.T) {
	s := setupServer(t)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	m := s.manager(t, client.WithHTTPClient(&http.Client{Jar: jar}))
	login(t, m)

	// a second manager sharing the jar models a page reload: cookie but no token
	reloaded := s.manager(t, client.WithHTTPClient(&http.Client{Jar: jar}))
	require.Empty(t, reloaded.AccessToken())

	res, err := reloaded.Do(s.get(t, "/api/me"))
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotEmpty(t, reloaded.AccessToken())
}

func TestRefreshIfExpiring(t *testing.T) {
	s := setupServer(t)
	m := s.manager(t, client.WithSkew(time.Minute))
	login(t, m)

	ran, err := m.RefreshIfExpiring(context.Background())
	require.NoError(t, err)
	assert.False(t, ran)

	s.env.Clock.Advance(14*time.Minute + 30*time.Second)

	ran, err = m.RefreshIfExpiring(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, int32(1), s.refreshes.Load())
}

func TestLogout(t *testing.T) {
	s := setupServer(t)
	m := s.manager(t)
	login(t, m)

	require.NoError(t, m.Logout(context.Background()))
	assert.Empty(t, m.AccessToken())

	err := m.Refresh(context.Background())
	require.ErrorIs(t, err, client.ErrSessionEnded)

	login(t, m)
	select {
	case <-m.SessionEnded():
		t.Fatal("new session reports ended")
	default:
	}
}

// stubServer logs in with a minted token, rejects every gated call as
// expired, and answers refresh with the given handler.
func stubServer(t *testing.T, refresh http.HandlerFunc) (*client.Manager, string) {
	t.Helper()
	keys, err := warranttest.NewKeys()
	require.NoError(t, err)
	codec, err := warranttest.Codec(keys, nil)
	require.NoError(t, err)
	sess, err := warranttest.NewSession(codec, "user-1", "viewer", 15*time.Minute, time.Hour)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, warranttest.Cookie(sess, warranttest.CookieOptions{}))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"success":true,"user":{"id":"user-1","email":"alice@example.com","name":"alice","role":"viewer"},"accessToken":%q}`, sess.AccessToken)
	})
	mux.HandleFunc("/api/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"success":false,"code":"TOKEN_EXPIRED","message":"Access token expired"}`)
	})
	mux.HandleFunc("/auth/refresh", refresh)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	m, err := client.New(srv.URL, client.WithRefreshTimeout(50*time.Millisecond))
	require.NoError(t, err)
	login(t, m)
	return m, srv.URL
}

func expectSessionEnded(t *testing.T, m *client.Manager, err error) {
	t.Helper()
	require.ErrorIs(t, err, client.ErrSessionEnded)

	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "TOKEN_EXPIRED", apiErr.Code)

	assert.Empty(t, m.AccessToken())
	select {
	case <-m.SessionEnded():
	default:
		t.Fatal("session ended channel not closed")
	}
}

func TestDo_RefreshTimeoutEndsSession(t *testing.T) {
	release := make(chan struct{})
	m, url := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	t.Cleanup(func() { close(release) })

	req, err := http.NewRequest(http.MethodGet, url+"/api/me", nil)
	require.NoError(t, err)

	res, err := m.Do(req)
	require.Nil(t, res)
	expectSessionEnded(t, m, err)
	assert.ErrorIs(t, err, client.ErrTokenRequest)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDo_RefreshServerErrorEndsSession(t *testing.T) {
	var refreshes atomic.Int32
	m, url := stubServer(t, func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"success":false,"code":"INTERNAL_ERROR","message":"Internal server error"}`)
	})

	const callers = 5
	reqs := make([]*http.Request, callers)
	for i := range callers {
		req, err := http.NewRequest(http.MethodGet, url+"/api/me", nil)
		require.NoError(t, err)
		reqs[i] = req
	}

	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := m.Do(reqs[i])
			if res != nil {
				res.Body.Close()
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	for i := range callers {
		expectSessionEnded(t, m, errs[i])
	}
	assert.Equal(t, int32(1), refreshes.Load())
}
