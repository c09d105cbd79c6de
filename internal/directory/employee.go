package directory

import (
	"context"
	"errors"
	"time"

	employeeDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/employee"
)

var (
	ErrNotFound      = errors.New("employee not found")
	ErrAlreadyLinked = errors.New("employee already linked to another account")
)

// Employee is a pre-authorized hire. Role is the raw stored value and may be
// empty or outside the role enumeration.
type Employee struct {
	ID           string     `json:"employeeId"`
	FullName     string     `json:"fullName,omitempty"`
	Email        string     `json:"email,omitempty"`
	Role         string     `json:"role,omitempty"`
	Department   string     `json:"department,omitempty"`
	Team         string     `json:"team,omitempty"`
	IsActive     bool       `json:"isActive"`
	LinkedUserID string     `json:"linkedUserId,omitempty"`
	LinkedAt     *time.Time `json:"linkedAt,omitempty"`
}

// LinkedToOther reports whether the record is already claimed by an account other than uid.
func (e *Employee) LinkedToOther(uid string) bool {
	return e.LinkedUserID != "" && e.LinkedUserID != uid
}

type RepositoryAPI interface {
	GetByID(ctx context.Context, id string) (*Employee, error)
	// Link records uid on the employee unless a different account holds it.
	Link(ctx context.Context, id, uid string, at time.Time) error
	Upsert(ctx context.Context, e *Employee) error
}

func ToDataModel(e *Employee) *employeeDatamodel.Employee {
	return &employeeDatamodel.Employee{
		ID:           e.ID,
		FullName:     optional(e.FullName),
		Email:        optional(e.Email),
		Role:         optional(e.Role),
		Department:   optional(e.Department),
		Team:         optional(e.Team),
		IsActive:     e.IsActive,
		LinkedUserID: optional(e.LinkedUserID),
		LinkedAt:     e.LinkedAt,
	}
}

func FromDataModel(e *employeeDatamodel.Employee) *Employee {
	return &Employee{
		ID:           e.ID,
		FullName:     deref(e.FullName),
		Email:        deref(e.Email),
		Role:         deref(e.Role),
		Department:   deref(e.Department),
		Team:         deref(e.Team),
		IsActive:     e.IsActive,
		LinkedUserID: deref(e.LinkedUserID),
		LinkedAt:     e.LinkedAt,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
