package api_test

import (
	"net/http"
	"testing"

	"git.sr.ht/~jakintosh/warrant/internal/api"
	"git.sr.ht/~jakintosh/warrant/internal/rbac"
	"git.sr.ht/~jakintosh/warrant/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogout_ClearsCookie(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnvWithRouter(t)
	_, cookie := loginAlice(t, env, rbac.RoleViewer)

	// logout twice; both responses are identical
	var headers []string
	for range 2 {
		var response api.MessageResponse
		result := testutil.Post(env.Router, "/auth/logout", "", &response, testutil.WithCookie(cookie))
		testutil.ExpectStatus(t, http.StatusOK, result)
		assert.True(t, response.Success)
		assert.Equal(t, "Logged out successfully", response.Message)

		cleared := result.Cookie(api.RefreshCookieName)
		require.NotNil(t, cleared)
		assert.Empty(t, cleared.Value)
		headers = append(headers, result.Headers.Get("Set-Cookie"))
	}
	assert.Equal(t, headers[0], headers[1])
	assert.Contains(t, headers[0], "Max-Age=0")
}

func TestLogout_WithoutSession(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnvWithRouter(t)

	result := testutil.Post(env.Router, "/auth/logout", "", nil)
	testutil.ExpectStatus(t, http.StatusOK, result)
}
