package database_test

import (
	"context"
	"errors"
	"testing"

	"git.sr.ht/~jakintosh/warrant/internal/database"
	"git.sr.ht/~jakintosh/warrant/internal/rbac"
	"git.sr.ht/~jakintosh/warrant/internal/service"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *database.SQLiteStore {
	t.Helper()
	store, err := database.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleIdentity(id, email string) service.Identity {
	return service.Identity{
		ID:           id,
		Email:        email,
		DisplayName:  "Sample",
		Role:         rbac.RoleEditor,
		PasswordHash: []byte("secret-hash"),
	}
}

func TestOpen_InMemory(t *testing.T) {
	t.Parallel()
	store := setupStore(t)

	// schema exists and the single connection is reachable
	require.NoError(t, store.Ping(context.Background()))
	list, err := store.ListIdentities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOpen_MigrateIsIdempotent(t *testing.T) {
	t.Parallel()
	store := setupStore(t)

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, store.Migrate(context.Background()))
}

func TestSQLiteStore_Close(t *testing.T) {
	t.Parallel()
	store, err := database.Open(context.Background(), ":memory:")
	require.NoError(t, err)

	// closing store succeeds without error
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_IdentityStore(t *testing.T) {
	t.Parallel()
	store := setupStore(t)

	// IdentityStore returns the same store instance
	assert.Same(t, store, store.IdentityStore())
}

func TestSQLiteStore_MigrateFailure(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS identity").
		WillReturnError(errors.New("disk I/O error"))

	err = database.NewStore(db).Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identity")
	assert.NoError(t, mock.ExpectationsWereMet())
}
