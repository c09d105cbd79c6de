package user

import (
	"context"
	"errors"
	"time"

	userDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/user"
	"github.com/frahmantamala/securemind/internal/roles"
)

var ErrNotFound = errors.New("user profile not found")

// Profile is the mutable user document. Role mirrors the signed claim.
type Profile struct {
	ID                string
	Email             string
	FirstName         string
	LastName          string
	DisplayName       string
	Role              roles.Role
	Disabled          bool
	EmployeeID        string
	LinkedEmployeeDoc string
	CreatedBy         string
	UpdatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ProfilePatch names the fields a write sets. Nil fields are left as they are.
type ProfilePatch struct {
	Role              *roles.Role
	Email             *string
	FirstName         *string
	LastName          *string
	DisplayName       *string
	Disabled          *bool
	EmployeeID        *string
	LinkedEmployeeDoc *string
	CreatedBy         *string
	UpdatedBy         *string
}

func (p ProfilePatch) IsEmpty() bool {
	return p.Role == nil && p.Email == nil && p.FirstName == nil && p.LastName == nil &&
		p.DisplayName == nil && p.Disabled == nil && p.EmployeeID == nil &&
		p.LinkedEmployeeDoc == nil && p.CreatedBy == nil && p.UpdatedBy == nil
}

type RepositoryAPI interface {
	GetByID(ctx context.Context, uid string) (*Profile, error)
	// Upsert creates the profile when missing and otherwise merges patch into it.
	Upsert(ctx context.Context, uid string, patch ProfilePatch) error
	Delete(ctx context.Context, uid string) error
	ListIDs(ctx context.Context) ([]string, error)
	ListIDsByRoles(ctx context.Context, rs []roles.Role) ([]string, error)
}

func FromDataModel(u *userDatamodel.User) *Profile {
	return &Profile{
		ID:                u.ID,
		Email:             deref(u.Email),
		FirstName:         deref(u.FirstName),
		LastName:          deref(u.LastName),
		DisplayName:       deref(u.DisplayName),
		Role:              roles.Normalize(u.Role),
		Disabled:          u.Disabled,
		EmployeeID:        deref(u.EmployeeID),
		LinkedEmployeeDoc: deref(u.LinkedEmployeeDoc),
		CreatedBy:         deref(u.CreatedBy),
		UpdatedBy:         deref(u.UpdatedBy),
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func String(s string) *string {
	return &s
}

func Bool(b bool) *bool {
	return &b
}

func RoleRef(r roles.Role) *roles.Role {
	return &r
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
