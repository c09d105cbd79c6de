package roles

import (
	"context"
	"log/slog"
	"strings"

	"github.com/frahmantamala/securemind/internal"
)

// EmployeeRoleSource reads the raw role stored on an employee record.
type EmployeeRoleSource interface {
	EmployeeRole(ctx context.Context, employeeID string) (role string, found bool, err error)
}

// PreapprovalSource reads an unconsumed preapproved role for a user.
type PreapprovalSource interface {
	PreapprovedRole(ctx context.Context, userID string) (role string, found bool, err error)
}

type Registration struct {
	UserID     string
	EmployeeID string
	FirstName  string
	LastName   string
}

type Resolver struct {
	employees    EmployeeRoleSource
	preapprovals PreapprovalSource
	logger       *slog.Logger
}

func NewResolver(employees EmployeeRoleSource, preapprovals PreapprovalSource, logger *slog.Logger) *Resolver {
	return &Resolver{
		employees:    employees,
		preapprovals: preapprovals,
		logger:       logger,
	}
}

// ResolveOnFirstSignIn never fails. A missing or unreadable preapproval yields User.
func (r *Resolver) ResolveOnFirstSignIn(ctx context.Context, userID string) Role {
	if r.preapprovals == nil || userID == "" {
		return User
	}

	raw, found, err := r.preapprovals.PreapprovedRole(ctx, userID)
	if err != nil {
		r.logger.WarnContext(ctx, "preapproval lookup failed, defaulting role", "user_id", userID, "error", err)
		return User
	}
	if !found {
		return User
	}
	return Normalize(raw)
}

func (r *Resolver) ResolveOnRegistrationCompletion(ctx context.Context, reg Registration) (Role, error) {
	if reg.UserID == "" {
		return Role{}, internal.NewUnauthenticatedError("Authentication required", internal.ErrCodeMissingToken)
	}
	if strings.TrimSpace(reg.EmployeeID) == "" || strings.TrimSpace(reg.FirstName) == "" || strings.TrimSpace(reg.LastName) == "" {
		return Role{}, internal.NewValidationError("employeeId, firstName, lastName are required", internal.ErrCodeMissingField)
	}

	raw, found, err := r.employees.EmployeeRole(ctx, strings.TrimSpace(reg.EmployeeID))
	if err != nil {
		return Role{}, internal.NewInternalError("failed to read employee record", err)
	}
	if !found {
		return Role{}, internal.NewNotFoundError("Employee ID not found", internal.ErrCodeEmployeeNotFound)
	}
	if strings.TrimSpace(raw) == "" {
		return Role{}, internal.NewValidationError("Employee record has no role set", internal.ErrCodeEmployeeNoRole)
	}
	return Normalize(raw), nil
}

// ResolveForAdminAssignment never fails. Unknown input becomes User.
func (r *Resolver) ResolveForAdminAssignment(requested string) Role {
	return Normalize(requested)
}
