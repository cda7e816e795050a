package api_test

import (
	"net/http"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/warrant/internal/api"
	"git.sr.ht/~jakintosh/warrant/internal/rbac"
	"git.sr.ht/~jakintosh/warrant/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndToEnd_ExpiryAndRefresh(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnvWithRouter(t)
	access, cookie := loginAlice(t, env, rbac.RoleViewer)

	// gated route accepts the fresh token
	testutil.ExpectStatus(t, http.StatusOK,
		testutil.Get(env.Router, "/api/me", nil, testutil.Bearer(access)))

	// fifteen minutes later it is expired
	env.Clock.Advance(15 * time.Minute)
	result := testutil.Get(env.Router, "/api/me", nil, testutil.Bearer(access))
	testutil.ExpectStatus(t, http.StatusUnauthorized, result)
	testutil.ExpectCode(t, api.CodeTokenExpired, result)
	assert.Contains(t, result.Headers.Get("WWW-Authenticate"), "Bearer")

	// refresh with the cookie
	var refreshed api.RefreshResponse
	testutil.ExpectStatus(t, http.StatusOK,
		testutil.Post(env.Router, "/auth/refresh", "", &refreshed, testutil.WithCookie(cookie)))

	// retry with the new token
	testutil.ExpectStatus(t, http.StatusOK,
		testutil.Get(env.Router, "/api/me", nil, testutil.Bearer(refreshed.AccessToken)))
}

func TestMe(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnvWithRouter(t)
	access, _ := loginAlice(t, env, rbac.RoleEditor)

	var response api.MeResponse
	result := testutil.Get(env.Router, "/api/me", &response, testutil.Bearer(access))
	testutil.ExpectStatus(t, http.StatusOK, result)
	assert.Equal(t, "alice@example.com", response.User.Email)
	assert.Equal(t, []rbac.Action{rbac.ActionRead, rbac.ActionUpdate}, response.Permissions)
}

func TestMe_InvalidToken(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnvWithRouter(t)

	result := testutil.Get(env.Router, "/api/me", nil)
	testutil.ExpectStatus(t, http.StatusUnauthorized, result)
	testutil.ExpectCode(t, api.CodeInvalidToken, result)

	result = testutil.Get(env.Router, "/api/me", nil, testutil.Bearer("garbage"))
	testutil.ExpectStatus(t, http.StatusUnauthorized, result)
	testutil.ExpectCode(t, api.CodeInvalidToken, result)
}

func TestUsers_RoleGating(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnvWithRouter(t)
	viewer, _ := loginAlice(t, env, rbac.RoleViewer)
	bob := env.RegisterTestUser(t, "bob@example.com", "password123", rbac.RoleViewer)

	// viewers can read
	var users api.UsersResponse
	testutil.ExpectStatus(t, http.StatusOK,
		testutil.Get(env.Router, "/api/users", &users, testutil.Bearer(viewer)))
	assert.Len(t, users.Users, 2)

	// but not delete or manage
	result := testutil.Delete(env.Router, "/api/users/"+bob.ID, nil, testutil.Bearer(viewer))
	testutil.ExpectStatus(t, http.StatusForbidden, result)
	testutil.ExpectCode(t, api.CodeForbidden, result)

	result = testutil.Get(env.Router, "/api/admin/stats", nil, testutil.Bearer(viewer))
	testutil.ExpectStatus(t, http.StatusForbidden, result)
}

func TestUsers_AdminDelete(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnvWithRouter(t)
	admin, _ := loginAlice(t, env, rbac.RoleAdmin)
	bob := env.RegisterTestUser(t, "bob@example.com", "password123", rbac.RoleViewer)

	testutil.ExpectStatus(t, http.StatusOK,
		testutil.Delete(env.Router, "/api/users/"+bob.ID, nil, testutil.Bearer(admin)))

	result := testutil.Delete(env.Router, "/api/users/"+bob.ID, nil, testutil.Bearer(admin))
	testutil.ExpectStatus(t, http.StatusNotFound, result)
	testutil.ExpectCode(t, api.CodeUserNotFound, result)
}

func TestAdminStats(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnvWithRouter(t)
	admin, _ := loginAlice(t, env, rbac.RoleAdmin)
	env.RegisterTestUser(t, "bob@example.com", "password123", rbac.RoleViewer)
	env.RegisterTestUser(t, "eve@example.com", "password123", rbac.RoleViewer)

	var response api.StatsResponse
	testutil.ExpectStatus(t, http.StatusOK,
		testutil.Get(env.Router, "/api/admin/stats", &response, testutil.Bearer(admin)))
	require.True(t, response.Success)
	assert.Equal(t, 3, response.Stats.Users)
	assert.Equal(t, map[string]int{"admin": 1, "viewer": 2}, response.Stats.Roles)
}
