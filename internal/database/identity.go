package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"git.sr.ht/~jakintosh/warrant/internal/rbac"
	"git.sr.ht/~jakintosh/warrant/internal/service"
)

func (s *SQLiteStore) IdentityStore() service.IdentityStore {
	return s
}

func (s *SQLiteStore) InsertIdentity(
	ctx context.Context,
	identity service.Identity,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identity (id, email, display_name, role, secret)
		VALUES (?, ?, ?, ?, ?);`,
		identity.ID,
		identity.Email,
		identity.DisplayName,
		string(identity.Role),
		identity.PasswordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", service.ErrEmailExists, identity.Email)
		}
		return fmt.Errorf("couldn't insert into identity: %v", err)
	}
	return nil
}

func (s *SQLiteStore) IdentityByEmail(
	ctx context.Context,
	email string,
) (
	service.Identity,
	error,
) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, role, secret
		FROM identity i
		WHERE i.email=?;`,
		email,
	)
	return scanIdentity(row, email)
}

func (s *SQLiteStore) IdentityByID(
	ctx context.Context,
	id string,
) (
	service.Identity,
	error,
) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, role, secret
		FROM identity i
		WHERE i.id=?;`,
		id,
	)
	return scanIdentity(row, id)
}

func (s *SQLiteStore) ListIdentities(
	ctx context.Context,
) (
	[]service.Identity,
	error,
) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, display_name, role, secret
		FROM identity
		ORDER BY id;`,
	)
	if err != nil {
		return nil, fmt.Errorf("couldn't query identity: %v", err)
	}
	defer rows.Close()

	var list []service.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows, "")
		if err != nil {
			return nil, err
		}
		list = append(list, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("couldn't iterate identity: %v", err)
	}
	return list, nil
}

func (s *SQLiteStore) DeleteIdentity(
	ctx context.Context,
	id string,
) (
	bool,
	error,
) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM identity
		WHERE id=?;`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("couldn't delete from identity: %v", err)
	}
	return !resultsEmpty(result), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row scanner, key string) (service.Identity, error) {
	var (
		identity service.Identity
		role     string
	)
	err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.DisplayName,
		&role,
		&identity.PasswordHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return service.Identity{}, fmt.Errorf("%w: %s", service.ErrUserNotFound, key)
		}
		return service.Identity{}, fmt.Errorf("couldn't scan identity: %v", err)
	}

	// an unrecognized stored role resolves to a role with no grants
	identity.Role = rbac.Role(role)
	return identity, nil
}
