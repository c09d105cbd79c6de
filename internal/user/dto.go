package user

import (
	"time"

	"github.com/frahmantamala/securemind/internal/roles"
)

type ProfileResponse struct {
	UID               string     `json:"uid"`
	Email             string     `json:"email,omitempty"`
	FirstName         string     `json:"firstName,omitempty"`
	LastName          string     `json:"lastName,omitempty"`
	DisplayName       string     `json:"displayName,omitempty"`
	Role              roles.Role `json:"role"`
	Disabled          bool       `json:"disabled"`
	EmployeeID        string     `json:"employeeId,omitempty"`
	LinkedEmployeeDoc string     `json:"linkedEmployeeDoc,omitempty"`
	LandingPath       string     `json:"landingPath"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

func NewProfileResponse(p *Profile) ProfileResponse {
	return ProfileResponse{
		UID:               p.ID,
		Email:             p.Email,
		FirstName:         p.FirstName,
		LastName:          p.LastName,
		DisplayName:       p.DisplayName,
		Role:              p.Role,
		Disabled:          p.Disabled,
		EmployeeID:        p.EmployeeID,
		LinkedEmployeeDoc: p.LinkedEmployeeDoc,
		LandingPath:       p.Role.LandingPath(),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}
