package admin

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/core/common/validation"
	"github.com/frahmantamala/securemind/internal/roles"
)

const tempPasswordAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

type CreateUserRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	TempPassword string `json:"tempPassword"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	EmployeeID   string `json:"employeeId"`
	Role         string `json:"role"`
}

type CreateUserCommand struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	EmployeeID string
	Role       roles.Role
	CreatedBy  string
}

// ValidateHTTP requires the full employee-backed form.
func (r CreateUserRequest) ValidateHTTP(actorUID string) (CreateUserCommand, error) {
	v := validation.NewValidator()
	v.Field("email", r.Email).Required().Email()
	v.Field("password", r.Password).Required()
	v.Field("firstName", r.FirstName).Required().MaxLength(100)
	v.Field("lastName", r.LastName).Required().MaxLength(100)
	v.Field("employeeId", r.EmployeeID).Required()
	v.Field("role", r.Role).Required()
	if err := v.Validate(); err != nil {
		return CreateUserCommand{}, err
	}

	return CreateUserCommand{
		Email:      normalizeEmail(r.Email),
		Password:   r.Password,
		FirstName:  strings.TrimSpace(r.FirstName),
		LastName:   strings.TrimSpace(r.LastName),
		EmployeeID: strings.TrimSpace(r.EmployeeID),
		Role:       roles.NormalizeOr(r.Role, roles.User),
		CreatedBy:  actorUID,
	}, nil
}

// ValidateCallable needs only an email. A temporary password is generated
// when none is supplied. Employee linkage belongs to the HTTP form, so an
// employeeId here is ignored.
func (r CreateUserRequest) ValidateCallable(actorUID string) (CreateUserCommand, error) {
	v := validation.NewValidator()
	v.Field("email", r.Email).Required()
	if err := v.Validate(); err != nil {
		return CreateUserCommand{}, err
	}

	password := r.TempPassword
	if password == "" {
		password = r.Password
	}
	if password == "" {
		generated, err := TempPassword()
		if err != nil {
			return CreateUserCommand{}, internal.NewInternalError("failed to generate password", err)
		}
		password = generated
	}

	return CreateUserCommand{
		Email:     normalizeEmail(r.Email),
		Password:  password,
		FirstName: strings.TrimSpace(r.FirstName),
		LastName:  strings.TrimSpace(r.LastName),
		Role:      roles.NormalizeOr(r.Role, roles.User),
		CreatedBy: actorUID,
	}, nil
}

// TempPassword returns 12 random lowercase alphanumerics followed by "A1!".
func TempPassword() (string, error) {
	max := big.NewInt(int64(len(tempPasswordAlphabet)))
	var b strings.Builder
	for i := 0; i < 12; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(tempPasswordAlphabet[n.Int64()])
	}
	b.WriteString("A1!")
	return b.String(), nil
}

type UpdateUserRequest struct {
	UID       string  `json:"uid"`
	Disabled  *bool   `json:"disabled"`
	Role      *string `json:"role"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
}

// UpdateUserCommand holds only the fields to change.
type UpdateUserCommand struct {
	UID       string
	Disabled  *bool
	Role      *roles.Role
	FirstName *string
	LastName  *string
	Email     *string
	UpdatedBy string
}

func (r UpdateUserRequest) Validate(actorUID string) (UpdateUserCommand, error) {
	v := validation.NewValidator()
	v.Field("uid", r.UID).Required()
	v.Field("email", r.Email).Email()
	v.Field("firstName", r.FirstName).MaxLength(100)
	v.Field("lastName", r.LastName).MaxLength(100)
	if err := v.Validate(); err != nil {
		return UpdateUserCommand{}, err
	}

	cmd := UpdateUserCommand{
		UID:       strings.TrimSpace(r.UID),
		Disabled:  r.Disabled,
		FirstName: nonBlank(r.FirstName),
		LastName:  nonBlank(r.LastName),
		UpdatedBy: actorUID,
	}
	if email := nonBlank(r.Email); email != nil {
		normalized := normalizeEmail(*email)
		cmd.Email = &normalized
	}
	if role := nonBlank(r.Role); role != nil {
		resolved := roles.Normalize(*role)
		cmd.Role = &resolved
	}
	return cmd, nil
}

type DeleteUserRequest struct {
	UID string `json:"uid"`
}

type DeleteUserCommand struct {
	UID       string
	DeletedBy string
}

func (r DeleteUserRequest) Validate(actorUID string) (DeleteUserCommand, error) {
	uid := strings.TrimSpace(r.UID)
	if uid == "" {
		return DeleteUserCommand{}, internal.NewValidationFieldError("uid", "uid is required", internal.ErrCodeMissingField)
	}
	return DeleteUserCommand{UID: uid, DeletedBy: actorUID}, nil
}

type SetRoleRequest struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
}

type SetRoleCommand struct {
	UID       string
	Role      roles.Role
	ChangedBy string
}

func (r SetRoleRequest) Validate(actorUID string) (SetRoleCommand, error) {
	uid := strings.TrimSpace(r.UID)
	if uid == "" {
		return SetRoleCommand{}, internal.NewValidationFieldError("uid", "uid is required", internal.ErrCodeMissingField)
	}
	return SetRoleCommand{UID: uid, Role: roles.Normalize(r.Role), ChangedBy: actorUID}, nil
}

type CreateUserResponse struct {
	Success bool       `json:"success"`
	UID     string     `json:"uid"`
	Role    roles.Role `json:"role"`
	Message string     `json:"message,omitempty"`
}

type UpdateUserResponse struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message,omitempty"`
	UpdatedFields []string `json:"updatedFields"`
}

type DeleteUserResponse struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message,omitempty"`
	UID      string    `json:"uid"`
	Outcome  string    `json:"outcome"`
	Failures []Failure `json:"failures,omitempty"`
}

type SetRoleResponse struct {
	OK   bool       `json:"ok"`
	Role roles.Role `json:"role"`
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
