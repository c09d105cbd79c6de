package registration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/securemind/internal/claims"
	"github.com/frahmantamala/securemind/internal/core/events"
	"github.com/frahmantamala/securemind/internal/directory"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/user"
)

// EmployeeLinker is the directory side of registration.
type EmployeeLinker interface {
	EnsureLinkable(ctx context.Context, id, uid string) (*directory.Employee, error)
	Link(ctx context.Context, id, uid string) error
}

type RoleApplier interface {
	ApplyRole(ctx context.Context, uid string, role roles.Role, patch user.ProfilePatch, opts ...claims.ApplyOption) error
}

type Service struct {
	resolver     *roles.Resolver
	employees    EmployeeLinker
	propagator   RoleApplier
	preapprovals PreapprovalRepositoryAPI
	events       events.Publisher
	legacyFlag   bool
	logger       *slog.Logger
}

type Config struct {
	LegacyRoleFlag bool
}

func NewService(resolver *roles.Resolver, employees EmployeeLinker, propagator RoleApplier, preapprovals PreapprovalRepositoryAPI, cfg Config, logger *slog.Logger) *Service {
	return &Service{
		resolver:     resolver,
		employees:    employees,
		propagator:   propagator,
		preapprovals: preapprovals,
		legacyFlag:   cfg.LegacyRoleFlag,
		logger:       logger,
	}
}

// WithEvents publishes registration.completed after each completed registration.
func (s *Service) WithEvents(publisher events.Publisher) *Service {
	s.events = publisher
	return s
}

// RegisterEventHandlers subscribes the first sign-in trigger.
func (s *Service) RegisterEventHandlers(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeUserSignedUp, s.HandleUserSignedUp)
}

func (s *Service) HandleUserSignedUp(ctx context.Context, event events.Event) error {
	var uid, email string
	switch e := event.(type) {
	case *events.UserSignedUpEvent:
		uid, email = e.UID, e.Email
	default:
		data, _ := event.Payload().(map[string]interface{})
		uid, _ = data["uid"].(string)
		email, _ = data["email"].(string)
	}
	if uid == "" {
		return fmt.Errorf("event %s has no uid", event.EventID())
	}
	return s.AssignInitialRole(ctx, uid, email)
}

// AssignInitialRole gives a new account its preapproved role, or user.
func (s *Service) AssignInitialRole(ctx context.Context, uid, email string) error {
	role := s.resolver.ResolveOnFirstSignIn(ctx, uid)

	patch := user.ProfilePatch{Disabled: user.Bool(false)}
	if email != "" {
		patch.Email = user.String(email)
	}
	if err := s.propagator.ApplyRole(ctx, uid, role, patch, claims.LegacyFlagIf(s.legacyFlag)); err != nil {
		return err
	}

	if err := s.preapprovals.MarkConsumed(ctx, uid, time.Now().UTC()); err != nil {
		s.logger.WarnContext(ctx, "preapproval not marked consumed", "uid", uid, "error", err)
	}
	s.logger.InfoContext(ctx, "initial role assigned", "uid", uid, "role", role.String())
	return nil
}

type CompleteCommand struct {
	UID        string
	Email      string
	EmployeeID string
	FirstName  string
	LastName   string
}

type CompleteResult struct {
	OK          bool       `json:"ok"`
	Role        roles.Role `json:"role"`
	LandingPath string     `json:"landingPath"`
}

// CompleteRegistration links the caller to an employee record and applies the
// employee's role. Nothing is written unless the employee resolves to a role
// and is free to link.
func (s *Service) CompleteRegistration(ctx context.Context, cmd CompleteCommand) (*CompleteResult, error) {
	role, err := s.resolver.ResolveOnRegistrationCompletion(ctx, roles.Registration{
		UserID:     cmd.UID,
		EmployeeID: cmd.EmployeeID,
		FirstName:  cmd.FirstName,
		LastName:   cmd.LastName,
	})
	if err != nil {
		return nil, err
	}

	employeeID := strings.TrimSpace(cmd.EmployeeID)
	if _, err := s.employees.EnsureLinkable(ctx, employeeID, cmd.UID); err != nil {
		return nil, err
	}
	if err := s.employees.Link(ctx, employeeID, cmd.UID); err != nil {
		return nil, err
	}

	firstName := strings.TrimSpace(cmd.FirstName)
	lastName := strings.TrimSpace(cmd.LastName)
	patch := user.ProfilePatch{
		FirstName:         user.String(firstName),
		LastName:          user.String(lastName),
		DisplayName:       user.String(firstName + " " + lastName),
		EmployeeID:        user.String(employeeID),
		LinkedEmployeeDoc: user.String("employees/" + employeeID),
	}
	if cmd.Email != "" {
		patch.Email = user.String(strings.ToLower(cmd.Email))
	}
	if err := s.propagator.ApplyRole(ctx, cmd.UID, role, patch, claims.LegacyFlagIf(s.legacyFlag)); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "registration completed", "uid", cmd.UID, "employee_id", employeeID, "role", role.String())
	if s.events != nil {
		if err := s.events.Publish(ctx, events.NewRegistrationCompletedEvent(cmd.UID, employeeID, role.String())); err != nil {
			s.logger.WarnContext(ctx, "registration event not published", "uid", cmd.UID, "error", err)
		}
	}
	return &CompleteResult{OK: true, Role: role, LandingPath: role.LandingPath()}, nil
}

type PreapprovalSeed struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
}

// ImportPreapprovals reads a JSON array of PreapprovalSeed. Roles must belong
// to the enumeration.
func (s *Service) ImportPreapprovals(ctx context.Context, r io.Reader) (int, error) {
	var records []PreapprovalSeed
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return 0, fmt.Errorf("decode preapproval seed: %w", err)
	}
	for i, rec := range records {
		uid := strings.TrimSpace(rec.UserID)
		if uid == "" {
			return i, fmt.Errorf("record %d: userId is required", i)
		}
		role, ok := roles.Parse(rec.Role)
		if !ok {
			return i, fmt.Errorf("record %d (%s): invalid role %q", i, uid, rec.Role)
		}
		if err := s.preapprovals.Upsert(ctx, &Preapproval{UserID: uid, Role: role.String()}); err != nil {
			return i, fmt.Errorf("record %d (%s): %w", i, uid, err)
		}
	}
	s.logger.InfoContext(ctx, "preapprovals imported", "count", len(records))
	return len(records), nil
}
