package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeUserSignedUp          = "user.signed_up"
	EventTypeUserCreated           = "user.created"
	EventTypeUserUpdated           = "user.updated"
	EventTypeUserDeleted           = "user.deleted"
	EventTypeUserRoleChanged       = "user.role_changed"
	EventTypeRegistrationCompleted = "registration.completed"
)

// ForwardedTypes lists the event types mirrored to the event stream.
var ForwardedTypes = []string{
	EventTypeUserSignedUp,
	EventTypeUserCreated,
	EventTypeUserUpdated,
	EventTypeUserDeleted,
	EventTypeUserRoleChanged,
	EventTypeRegistrationCompleted,
}

func newBaseEvent(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// UserSignedUpEvent fires once when an identity account is created by self sign-up.
type UserSignedUpEvent struct {
	BaseEvent
	UID   string `json:"uid"`
	Email string `json:"email"`
}

func NewUserSignedUpEvent(uid, email string) *UserSignedUpEvent {
	return &UserSignedUpEvent{
		BaseEvent: newBaseEvent(EventTypeUserSignedUp, map[string]interface{}{
			"uid":   uid,
			"email": email,
		}),
		UID:   uid,
		Email: email,
	}
}

type UserCreatedEvent struct {
	BaseEvent
	UID       string `json:"uid"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedBy string `json:"created_by"`
}

func NewUserCreatedEvent(uid, email, role, createdBy string) *UserCreatedEvent {
	return &UserCreatedEvent{
		BaseEvent: newBaseEvent(EventTypeUserCreated, map[string]interface{}{
			"uid":        uid,
			"email":      email,
			"role":       role,
			"created_by": createdBy,
		}),
		UID:       uid,
		Email:     email,
		Role:      role,
		CreatedBy: createdBy,
	}
}

type UserUpdatedEvent struct {
	BaseEvent
	UID       string   `json:"uid"`
	Changed   []string `json:"changed"`
	UpdatedBy string   `json:"updated_by"`
}

func NewUserUpdatedEvent(uid string, changed []string, updatedBy string) *UserUpdatedEvent {
	return &UserUpdatedEvent{
		BaseEvent: newBaseEvent(EventTypeUserUpdated, map[string]interface{}{
			"uid":        uid,
			"changed":    changed,
			"updated_by": updatedBy,
		}),
		UID:       uid,
		Changed:   changed,
		UpdatedBy: updatedBy,
	}
}

type UserDeletedEvent struct {
	BaseEvent
	UID       string `json:"uid"`
	Outcome   string `json:"outcome"`
	DeletedBy string `json:"deleted_by"`
}

func NewUserDeletedEvent(uid, outcome, deletedBy string) *UserDeletedEvent {
	return &UserDeletedEvent{
		BaseEvent: newBaseEvent(EventTypeUserDeleted, map[string]interface{}{
			"uid":        uid,
			"outcome":    outcome,
			"deleted_by": deletedBy,
		}),
		UID:       uid,
		Outcome:   outcome,
		DeletedBy: deletedBy,
	}
}

type UserRoleChangedEvent struct {
	BaseEvent
	UID       string `json:"uid"`
	Role      string `json:"role"`
	ChangedBy string `json:"changed_by"`
}

func NewUserRoleChangedEvent(uid, role, changedBy string) *UserRoleChangedEvent {
	return &UserRoleChangedEvent{
		BaseEvent: newBaseEvent(EventTypeUserRoleChanged, map[string]interface{}{
			"uid":        uid,
			"role":       role,
			"changed_by": changedBy,
		}),
		UID:       uid,
		Role:      role,
		ChangedBy: changedBy,
	}
}

type RegistrationCompletedEvent struct {
	BaseEvent
	UID        string `json:"uid"`
	EmployeeID string `json:"employee_id"`
	Role       string `json:"role"`
}

func NewRegistrationCompletedEvent(uid, employeeID, role string) *RegistrationCompletedEvent {
	return &RegistrationCompletedEvent{
		BaseEvent: newBaseEvent(EventTypeRegistrationCompleted, map[string]interface{}{
			"uid":         uid,
			"employee_id": employeeID,
			"role":        role,
		}),
		UID:        uid,
		EmployeeID: employeeID,
		Role:       role,
	}
}
