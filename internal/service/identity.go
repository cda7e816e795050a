package service

import (
	"context"
	"errors"
	"fmt"
)

func (s *Service) UserByID(
	ctx context.Context,
	id string,
) (
	Identity,
	error,
) {
	identity, err := s.identities.IdentityByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, err
		}
		return Identity{}, fmt.Errorf("%w: failed to retrieve identity: %v", ErrInternal, err)
	}
	return identity.Public(), nil
}

func (s *Service) ListUsers(ctx context.Context) ([]Identity, error) {
	list, err := s.identities.ListIdentities(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list identities: %v", ErrInternal, err)
	}
	for i := range list {
		list[i] = list[i].Public()
	}
	return list, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	deleted, err := s.identities.DeleteIdentity(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete identity: %v", ErrInternal, err)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	s.log.WithField("user", id).Info("identity deleted")
	return nil
}
