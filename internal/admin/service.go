package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/claims"
	"github.com/frahmantamala/securemind/internal/core/events"
	"github.com/frahmantamala/securemind/internal/directory"
	"github.com/frahmantamala/securemind/internal/identity"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/user"
)

const (
	OutcomeFull    = "full"
	OutcomePartial = "partial"
)

type IdentityAPI interface {
	CreateUser(ctx context.Context, params identity.CreateParams) (*identity.Account, error)
	GetUser(ctx context.Context, uid string) (*identity.Account, error)
	UpdateUser(ctx context.Context, uid string, params identity.UpdateParams) (*identity.Account, error)
	DeleteUser(ctx context.Context, uid string) error
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

type ProfileAPI interface {
	GetProfile(ctx context.Context, uid string) (*user.Profile, error)
	UpsertProfile(ctx context.Context, uid string, patch user.ProfilePatch) error
	DeleteProfile(ctx context.Context, uid string) error
}

type EmployeeAPI interface {
	EnsureLinkable(ctx context.Context, id, uid string) (*directory.Employee, error)
	Link(ctx context.Context, id, uid string) error
}

type RoleApplier interface {
	ApplyRole(ctx context.Context, uid string, role roles.Role, patch user.ProfilePatch, opts ...claims.ApplyOption) error
}

type Config struct {
	LegacyRoleFlag bool
}

type Service struct {
	identity   IdentityAPI
	profiles   ProfileAPI
	employees  EmployeeAPI
	propagator RoleApplier
	events     events.Publisher
	legacyFlag bool
	logger     *slog.Logger
}

func NewService(identity IdentityAPI, profiles ProfileAPI, employees EmployeeAPI, propagator RoleApplier, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		identity:   identity,
		profiles:   profiles,
		employees:  employees,
		propagator: propagator,
		legacyFlag: cfg.LegacyRoleFlag,
		logger:     logger,
	}
}

// WithEvents publishes user lifecycle events after each mutation.
func (s *Service) WithEvents(publisher events.Publisher) *Service {
	s.events = publisher
	return s
}

type CreateResult struct {
	UID  string     `json:"uid"`
	Role roles.Role `json:"role"`
}

// CreateUser creates an account and applies its role. With an EmployeeID the
// employee must exist, hold the requested role and be unlinked; all of that
// is checked before anything is written.
func (s *Service) CreateUser(ctx context.Context, cmd CreateUserCommand) (*CreateResult, error) {
	if cmd.EmployeeID != "" {
		employee, err := s.employees.EnsureLinkable(ctx, cmd.EmployeeID, "")
		if err != nil {
			return nil, err
		}
		stored := roles.Normalize(employee.Role)
		if stored != cmd.Role {
			return nil, internal.NewValidationError(
				fmt.Sprintf("Role mismatch. Employee record shows role: %s, but requested: %s", stored, cmd.Role),
				internal.ErrCodeRoleMismatch)
		}
	}

	displayName := strings.TrimSpace(cmd.FirstName + " " + cmd.LastName)
	account, err := s.identity.CreateUser(ctx, identity.CreateParams{
		Email:       cmd.Email,
		Password:    cmd.Password,
		DisplayName: displayName,
	})
	if err != nil {
		return nil, translateIdentityError(err)
	}

	patch := user.ProfilePatch{
		Email:    user.String(account.Email),
		Disabled: user.Bool(false),
	}
	if cmd.CreatedBy != "" {
		patch.CreatedBy = user.String(cmd.CreatedBy)
	}
	if cmd.FirstName != "" {
		patch.FirstName = user.String(cmd.FirstName)
	}
	if cmd.LastName != "" {
		patch.LastName = user.String(cmd.LastName)
	}
	if displayName != "" {
		patch.DisplayName = user.String(displayName)
	}
	if cmd.EmployeeID != "" {
		patch.EmployeeID = user.String(cmd.EmployeeID)
		patch.LinkedEmployeeDoc = user.String("employees/" + cmd.EmployeeID)
	}

	if err := s.propagator.ApplyRole(ctx, account.UID, cmd.Role, patch, claims.LegacyFlagIf(s.legacyFlag)); err != nil {
		return nil, err
	}

	if cmd.EmployeeID != "" {
		if err := s.employees.Link(ctx, cmd.EmployeeID, account.UID); err != nil {
			s.discard(ctx, account.UID, err)
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "user created by admin", "uid", account.UID, "role", cmd.Role.String(), "created_by", cmd.CreatedBy)
	s.publish(ctx, events.NewUserCreatedEvent(account.UID, account.Email, cmd.Role.String(), cmd.CreatedBy))
	return &CreateResult{UID: account.UID, Role: cmd.Role}, nil
}

// discard removes an account whose creation could not be completed.
func (s *Service) discard(ctx context.Context, uid string, cause error) {
	s.logger.WarnContext(ctx, "employee link failed, removing new account", "uid", uid, "error", cause)
	if err := s.identity.DeleteUser(ctx, uid); err != nil && !identity.IsUserNotFound(err) {
		s.logger.ErrorContext(ctx, "orphan account left behind", "uid", uid, "error", err)
	}
	if err := s.profiles.DeleteProfile(ctx, uid); err != nil {
		s.logger.ErrorContext(ctx, "orphan profile left behind", "uid", uid, "error", err)
	}
}

type UpdateResult struct {
	UID     string   `json:"uid"`
	Changed []string `json:"updatedFields"`
}

// UpdateUser applies only the supplied fields. Repeating an update is harmless.
func (s *Service) UpdateUser(ctx context.Context, cmd UpdateUserCommand) (*UpdateResult, error) {
	account, err := s.identity.GetUser(ctx, cmd.UID)
	if err != nil {
		return nil, translateIdentityError(err)
	}

	var (
		accountParams identity.UpdateParams
		patch         user.ProfilePatch
		changed       []string
	)

	if cmd.Disabled != nil {
		accountParams.Disabled = cmd.Disabled
		patch.Disabled = cmd.Disabled
		changed = append(changed, "disabled")
	}
	if cmd.Email != nil {
		accountParams.Email = cmd.Email
		patch.Email = cmd.Email
		changed = append(changed, "email")
	}
	if cmd.FirstName != nil {
		patch.FirstName = cmd.FirstName
		changed = append(changed, "firstName")
	}
	if cmd.LastName != nil {
		patch.LastName = cmd.LastName
		changed = append(changed, "lastName")
	}
	if cmd.FirstName != nil || cmd.LastName != nil {
		displayName, err := s.mergedDisplayName(ctx, cmd)
		if err != nil {
			return nil, err
		}
		if displayName != "" {
			accountParams.DisplayName = &displayName
			patch.DisplayName = &displayName
			changed = append(changed, "displayName")
		}
	}

	if !accountParams.IsEmpty() {
		if _, err := s.identity.UpdateUser(ctx, cmd.UID, accountParams); err != nil {
			return nil, translateIdentityError(err)
		}
	}

	if cmd.UpdatedBy != "" && (cmd.Role != nil || !patch.IsEmpty()) {
		patch.UpdatedBy = user.String(cmd.UpdatedBy)
	}

	switch {
	case cmd.Role != nil:
		if err := s.propagator.ApplyRole(ctx, cmd.UID, *cmd.Role, patch, claims.LegacyFlagIf(s.legacyFlag)); err != nil {
			return nil, err
		}
		changed = append(changed, "role")
	case !patch.IsEmpty():
		if err := s.writeProfileOnly(ctx, account, patch); err != nil {
			return nil, err
		}
	}

	if changed == nil {
		changed = []string{}
	}
	s.logger.InfoContext(ctx, "user updated by admin", "uid", cmd.UID, "changed", changed, "updated_by", cmd.UpdatedBy)
	if len(changed) > 0 {
		s.publish(ctx, events.NewUserUpdatedEvent(cmd.UID, changed, cmd.UpdatedBy))
	}
	return &UpdateResult{UID: cmd.UID, Changed: changed}, nil
}

// writeProfileOnly never decides a role. The profile mirrors the account's
// role claim; without one, only an existing profile is patched.
func (s *Service) writeProfileOnly(ctx context.Context, account *identity.Account, patch user.ProfilePatch) error {
	if role, ok := account.Role(); ok {
		patch.Role = &role
		return s.profiles.UpsertProfile(ctx, account.UID, patch)
	}

	if _, err := s.profiles.GetProfile(ctx, account.UID); err != nil {
		appErr, ok := internal.IsAppError(err)
		if ok && appErr.Type == internal.ErrorTypeNotFound {
			s.logger.WarnContext(ctx, "profile not written, account has no role claim", "uid", account.UID)
			return nil
		}
		return err
	}
	return s.profiles.UpsertProfile(ctx, account.UID, patch)
}

func (s *Service) mergedDisplayName(ctx context.Context, cmd UpdateUserCommand) (string, error) {
	var first, last string
	current, err := s.profiles.GetProfile(ctx, cmd.UID)
	if err != nil {
		appErr, ok := internal.IsAppError(err)
		if !ok || appErr.Type != internal.ErrorTypeNotFound {
			return "", err
		}
	} else {
		first, last = current.FirstName, current.LastName
	}
	if cmd.FirstName != nil {
		first = *cmd.FirstName
	}
	if cmd.LastName != nil {
		last = *cmd.LastName
	}
	return strings.TrimSpace(first + " " + last), nil
}

// Failure names one deletion step that did not succeed.
type Failure struct {
	Target  string `json:"target"`
	Message string `json:"message"`
}

type DeleteResult struct {
	UID      string    `json:"uid"`
	Outcome  string    `json:"outcome"`
	Failures []Failure `json:"failures,omitempty"`
}

// DeleteUser removes the account and the profile independently. An account
// that is already gone is not a failure.
func (s *Service) DeleteUser(ctx context.Context, cmd DeleteUserCommand) (*DeleteResult, error) {
	result := &DeleteResult{UID: cmd.UID, Outcome: OutcomeFull}

	if err := s.identity.DeleteUser(ctx, cmd.UID); err != nil && !identity.IsUserNotFound(err) {
		s.logger.WarnContext(ctx, "failed to delete identity account", "uid", cmd.UID, "error", err)
		result.Failures = append(result.Failures, Failure{Target: "identity", Message: err.Error()})
	}
	if err := s.profiles.DeleteProfile(ctx, cmd.UID); err != nil {
		s.logger.WarnContext(ctx, "failed to delete user profile", "uid", cmd.UID, "error", err)
		result.Failures = append(result.Failures, Failure{Target: "profile", Message: err.Error()})
	}
	if len(result.Failures) > 0 {
		result.Outcome = OutcomePartial
	}

	s.logger.InfoContext(ctx, "user deleted by admin", "uid", cmd.UID, "outcome", result.Outcome, "deleted_by", cmd.DeletedBy)
	s.publish(ctx, events.NewUserDeletedEvent(cmd.UID, result.Outcome, cmd.DeletedBy))
	return result, nil
}

type SetRoleResult struct {
	UID  string     `json:"uid"`
	Role roles.Role `json:"role"`
}

// SetRole applies the role and revokes the user's sessions so the next token
// carries the new claim.
func (s *Service) SetRole(ctx context.Context, cmd SetRoleCommand) (*SetRoleResult, error) {
	patch := user.ProfilePatch{}
	if cmd.ChangedBy != "" {
		patch.UpdatedBy = user.String(cmd.ChangedBy)
	}
	if err := s.propagator.ApplyRole(ctx, cmd.UID, cmd.Role, patch, claims.LegacyFlagIf(s.legacyFlag)); err != nil {
		return nil, err
	}
	if err := s.identity.RevokeRefreshTokens(ctx, cmd.UID); err != nil {
		return nil, translateIdentityError(err)
	}

	s.logger.InfoContext(ctx, "user role set", "uid", cmd.UID, "role", cmd.Role.String(), "changed_by", cmd.ChangedBy)
	s.publish(ctx, events.NewUserRoleChangedEvent(cmd.UID, cmd.Role.String(), cmd.ChangedBy))
	return &SetRoleResult{UID: cmd.UID, Role: cmd.Role}, nil
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "event not published", "event_type", event.EventType(), "error", err)
	}
}

func translateIdentityError(err error) error {
	switch identity.ErrorCode(err) {
	case identity.CodeEmailExists:
		return internal.NewConflictError("Email already exists", internal.ErrCodeEmailExists)
	case identity.CodeInvalidEmail:
		return internal.NewValidationError("Invalid email format", internal.ErrCodeInvalidEmail)
	case identity.CodeWeakPassword:
		return internal.NewValidationError("Password is too weak", internal.ErrCodeWeakPassword)
	case identity.CodeUserNotFound:
		return internal.NewNotFoundError("User not found", internal.ErrCodeUserNotFound)
	}
	var appErr *internal.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return internal.NewInternalError("Internal server error", err)
}
