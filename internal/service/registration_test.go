package service_test

import (
	"context"
	"testing"

	"git.sr.ht/~jakintosh/warrant/internal/ids"
	"git.sr.ht/~jakintosh/warrant/internal/rbac"
	"git.sr.ht/~jakintosh/warrant/internal/service"
	"git.sr.ht/~jakintosh/warrant/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_DefaultsToViewer(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	identity, err := env.Service.Register(context.Background(), "Bob@Example.com", "password123", "")
	require.NoError(t, err)

	assert.True(t, ids.Valid(identity.ID))
	assert.Equal(t, "bob@example.com", identity.Email)
	assert.Equal(t, "bob", identity.DisplayName)
	assert.Equal(t, rbac.RoleViewer, identity.Role)
	assert.Nil(t, identity.PasswordHash)

	// stored hash is bcrypt, not the password
	stored, err := env.DB.IdentityByID(context.Background(), identity.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "password123", string(stored.PasswordHash))
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	_, err := env.Service.Register(context.Background(), "bob@example.com", "password123", "Bob")
	require.NoError(t, err)

	_, err = env.Service.Register(context.Background(), "BOB@example.com", "password456", "Bobby")
	assert.ErrorIs(t, err, service.ErrEmailExists)
}

func TestRegister_InvalidInput(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	_, err := env.Service.Register(context.Background(), "not-an-email", "password123", "")
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = env.Service.Register(context.Background(), "bob@example.com", "short", "")
	assert.ErrorIs(t, err, service.ErrInvalidInput)

	_, err = env.Service.Provision(context.Background(), "bob@example.com", "password123", "", rbac.Role("root"))
	assert.ErrorIs(t, err, service.ErrInvalidInput)
}

func TestUsers_ListAndDelete(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	a := env.RegisterTestUser(t, "a@example.com", "password123", rbac.RoleAdmin)
	env.RegisterTestUser(t, "b@example.com", "password123", rbac.RoleViewer)

	list, err := env.Service.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, identity := range list {
		assert.Nil(t, identity.PasswordHash)
	}

	require.NoError(t, env.Service.DeleteUser(context.Background(), a.ID))
	err = env.Service.DeleteUser(context.Background(), a.ID)
	assert.ErrorIs(t, err, service.ErrUserNotFound)

	_, err = env.Service.UserByID(context.Background(), a.ID)
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}
