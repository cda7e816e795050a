package rbac_test

import (
	"os"
	"path/filepath"
	"testing"

	"git.sr.ht/~jakintosh/warrant/internal/rbac"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy_Table(t *testing.T) {
	p := rbac.DefaultPolicy()

	cases := []struct {
		role    rbac.Role
		action  rbac.Action
		allowed bool
	}{
		{rbac.RoleAdmin, rbac.ActionCreate, true},
		{rbac.RoleAdmin, rbac.ActionDelete, true},
		{rbac.RoleAdmin, rbac.ActionManage, true},
		{rbac.RoleEditor, rbac.ActionRead, true},
		{rbac.RoleEditor, rbac.ActionUpdate, true},
		{rbac.RoleEditor, rbac.ActionDelete, false},
		{rbac.RoleEditor, rbac.ActionManage, false},
		{rbac.RoleViewer, rbac.ActionRead, true},
		{rbac.RoleViewer, rbac.ActionUpdate, false},
		{rbac.Role("root"), rbac.ActionRead, false},
		{rbac.RoleAdmin, rbac.Action("launch"), false},
		{rbac.Role(""), rbac.Action(""), false},
	}
	for _, c := range cases {
		assert.Equal(t, c.allowed, p.IsPermitted(c.role, c.action), "%s/%s", c.role, c.action)
	}
}

func TestNilPolicy_DeniesEverything(t *testing.T) {
	var p *rbac.Policy
	assert.False(t, p.IsPermitted(rbac.RoleAdmin, rbac.ActionRead))
	assert.Nil(t, p.Actions(rbac.RoleAdmin))
}

func TestPolicy_LogsDecisions(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	p := rbac.DefaultPolicy(rbac.WithLogger(logger))

	p.IsPermitted(rbac.RoleViewer, rbac.ActionDelete)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, false, entry.Data["allowed"])
	assert.Equal(t, rbac.RoleViewer, entry.Data["role"])
}

func TestParseRole(t *testing.T) {
	role, err := rbac.ParseRole(" Editor ")
	require.NoError(t, err)
	assert.Equal(t, rbac.RoleEditor, role)

	_, err = rbac.ParseRole("superuser")
	assert.Error(t, err)
}

func TestParsePolicy(t *testing.T) {
	p, err := rbac.ParsePolicy([]byte(`
roles:
  admin: [read, manage]
  viewer: [read]
`))
	require.NoError(t, err)
	assert.True(t, p.IsPermitted(rbac.RoleAdmin, rbac.ActionManage))
	assert.False(t, p.IsPermitted(rbac.RoleAdmin, rbac.ActionDelete))
	assert.False(t, p.IsPermitted(rbac.RoleEditor, rbac.ActionRead))
	assert.Equal(t, []rbac.Role{rbac.RoleAdmin, rbac.RoleViewer}, p.Roles())
	assert.Equal(t, []rbac.Action{rbac.ActionManage, rbac.ActionRead}, p.Actions(rbac.RoleAdmin))
}

func TestParsePolicy_Rejects(t *testing.T) {
	bad := map[string]string{
		"unknown role":   "roles:\n  root: [read]\n",
		"unknown action": "roles:\n  admin: [launch]\n",
		"unknown key":    "roles:\n  admin: [read]\nextra: true\n",
		"empty":          "roles: {}\n",
	}
	for name, doc := range bad {
		_, err := rbac.ParsePolicy([]byte(doc))
		assert.Error(t, err, name)
	}
}

func TestLoadPolicyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles:\n  editor: [read, update]\n"), 0o600))

	p, err := rbac.LoadPolicyFile(path)
	require.NoError(t, err)
	assert.True(t, p.IsPermitted(rbac.RoleEditor, rbac.ActionUpdate))

	_, err = rbac.LoadPolicyFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
