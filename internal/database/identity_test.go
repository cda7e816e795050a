package database_test

import (
	"context"
	"errors"
	"testing"

	"git.sr.ht/~jakintosh/warrant/internal/database"
	"git.sr.ht/~jakintosh/warrant/internal/service"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertIdentity_RoundTrip(t *testing.T) {
	t.Parallel()
	store := setupStore(t)
	ctx := context.Background()

	in := sampleIdentity("01A", "alice@example.com")
	require.NoError(t, store.InsertIdentity(ctx, in))

	byEmail, err := store.IdentityByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, in, byEmail)

	byID, err := store.IdentityByID(ctx, "01A")
	require.NoError(t, err)
	assert.Equal(t, in, byID)
}

func TestInsertIdentity_DuplicateEmail(t *testing.T) {
	t.Parallel()
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertIdentity(ctx, sampleIdentity("01A", "alice@example.com")))

	err := store.InsertIdentity(ctx, sampleIdentity("01B", "alice@example.com"))
	assert.ErrorIs(t, err, service.ErrEmailExists)
}

func TestIdentityLookup_NotFound(t *testing.T) {
	t.Parallel()
	store := setupStore(t)
	ctx := context.Background()

	_, err := store.IdentityByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, service.ErrUserNotFound)

	_, err = store.IdentityByID(ctx, "missing")
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestListIdentities_Ordered(t *testing.T) {
	t.Parallel()
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertIdentity(ctx, sampleIdentity("02", "b@example.com")))
	require.NoError(t, store.InsertIdentity(ctx, sampleIdentity("01", "a@example.com")))

	list, err := store.ListIdentities(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "01", list[0].ID)
	assert.Equal(t, "02", list[1].ID)
}

func TestDeleteIdentity(t *testing.T) {
	t.Parallel()
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertIdentity(ctx, sampleIdentity("01A", "alice@example.com")))

	deleted, err := store.DeleteIdentity(ctx, "01A")
	require.NoError(t, err)
	assert.True(t, deleted)

	// second delete finds nothing
	deleted, err = store.DeleteIdentity(ctx, "01A")
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = store.IdentityByID(ctx, "01A")
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestIdentityByEmail_DriverError(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, email, display_name, role, secret").
		WithArgs("alice@example.com").
		WillReturnError(errors.New("database is locked"))

	_, err = database.NewStore(db).IdentityByEmail(context.Background(), "alice@example.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdentityByID_Scans(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "email", "display_name", "role", "secret"}).
		AddRow("01A", "alice@example.com", "Alice", "admin", []byte("hash"))
	mock.ExpectQuery("SELECT id, email, display_name, role, secret").
		WithArgs("01A").
		WillReturnRows(rows)

	identity, err := database.NewStore(db).IdentityByID(context.Background(), "01A")
	require.NoError(t, err)
	assert.Equal(t, "Alice", identity.DisplayName)
	assert.Equal(t, "admin", string(identity.Role))
	assert.NoError(t, mock.ExpectationsWereMet())
}
