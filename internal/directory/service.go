package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/roles"
)

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) GetEmployee(ctx context.Context, id string) (*Employee, error) {
	e, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, internal.NewNotFoundError("Employee ID not found", internal.ErrCodeEmployeeNotFound)
		}
		return nil, internal.NewInternalError("failed to read employee record", err)
	}
	return e, nil
}

// EmployeeRole satisfies roles.EmployeeRoleSource.
func (s *Service) EmployeeRole(ctx context.Context, employeeID string) (string, bool, error) {
	e, err := s.repo.GetByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return e.Role, true, nil
}

// EnsureLinkable fails with Conflict when the employee belongs to another account.
func (s *Service) EnsureLinkable(ctx context.Context, id, uid string) (*Employee, error) {
	e, err := s.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.LinkedToOther(uid) {
		return nil, internal.NewConflictError("Employee record is already linked to another account", internal.ErrCodeEmployeeAlreadyLinked)
	}
	return e, nil
}

// Link binds the employee to uid. Linking again with the same uid is a no-op.
func (s *Service) Link(ctx context.Context, id, uid string) error {
	err := s.repo.Link(ctx, strings.TrimSpace(id), uid, s.now().UTC())
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "employee linked", "employee_id", id, "uid", uid)
		return nil
	case errors.Is(err, ErrNotFound):
		return internal.NewNotFoundError("Employee ID not found", internal.ErrCodeEmployeeNotFound)
	case errors.Is(err, ErrAlreadyLinked):
		return internal.NewConflictError("Employee record is already linked to another account", internal.ErrCodeEmployeeAlreadyLinked)
	default:
		return internal.NewInternalError("failed to link employee", err)
	}
}

type SeedRecord struct {
	EmployeeID string `json:"employeeId"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	Department string `json:"department"`
	Team       string `json:"team"`
	IsActive   *bool  `json:"isActive"`
}

// ImportJSON reads a JSON array of SeedRecord and upserts each employee. Roles
// must belong to the enumeration and are stored lowercase.
func (s *Service) ImportJSON(ctx context.Context, r io.Reader) (int, error) {
	var records []SeedRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return 0, fmt.Errorf("decode employee seed: %w", err)
	}

	for i, rec := range records {
		id := strings.TrimSpace(rec.EmployeeID)
		if id == "" {
			return i, fmt.Errorf("record %d: employeeId is required", i)
		}
		role, ok := roles.Parse(rec.Role)
		if !ok {
			return i, fmt.Errorf("record %d (%s): invalid role %q", i, id, rec.Role)
		}
		active := true
		if rec.IsActive != nil {
			active = *rec.IsActive
		}

		err := s.repo.Upsert(ctx, &Employee{
			ID:         id,
			FullName:   strings.TrimSpace(rec.FullName),
			Email:      strings.ToLower(strings.TrimSpace(rec.Email)),
			Role:       role.String(),
			Department: strings.TrimSpace(rec.Department),
			Team:       strings.TrimSpace(rec.Team),
			IsActive:   active,
		})
		if err != nil {
			return i, fmt.Errorf("record %d (%s): %w", i, id, err)
		}
	}

	s.logger.InfoContext(ctx, "employees imported", "count", len(records))
	return len(records), nil
}
