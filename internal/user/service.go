package user

import (
	"context"
	"errors"
	"log/slog"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/roles"
)

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) GetProfile(ctx context.Context, uid string) (*Profile, error) {
	p, err := s.repo.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.NewNotFoundError("User profile not found", internal.ErrCodeUserNotFound)
		}
		return nil, internal.NewInternalError("failed to load user profile", err)
	}
	return p, nil
}

// ProfileRole returns the stored role, or false when there is no profile.
func (s *Service) ProfileRole(ctx context.Context, uid string) (roles.Role, bool, error) {
	p, err := s.repo.GetByID(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return roles.Role{}, false, nil
		}
		return roles.Role{}, false, err
	}
	return p.Role, true, nil
}

func (s *Service) UpsertProfile(ctx context.Context, uid string, patch ProfilePatch) error {
	if err := s.repo.Upsert(ctx, uid, patch); err != nil {
		s.logger.ErrorContext(ctx, "profile upsert failed", "uid", uid, "error", err)
		return err
	}
	return nil
}

// DeleteProfile removes the profile. A missing profile is not an error.
func (s *Service) DeleteProfile(ctx context.Context, uid string) error {
	err := s.repo.Delete(ctx, uid)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

func (s *Service) ListIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListIDs(ctx)
}

func (s *Service) ListIDsByRoles(ctx context.Context, rs []roles.Role) ([]string, error) {
	return s.repo.ListIDsByRoles(ctx, rs)
}
