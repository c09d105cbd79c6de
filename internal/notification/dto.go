package notification

import (
	"strings"

	"github.com/frahmantamala/securemind/internal"
	"github.com/frahmantamala/securemind/internal/roles"
)

type FactBroadcastRequest struct {
	FactID     string   `json:"factId"`
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	TargetType string   `json:"targetType"`
	Roles      []string `json:"roles"`
	UserIDs    []string `json:"userIds"`
}

// Validate builds the broadcast. Target type checking is left to the broadcaster.
func (r FactBroadcastRequest) Validate() (Broadcast, error) {
	title := strings.TrimSpace(r.Title)
	message := strings.TrimSpace(r.Message)
	if title == "" || message == "" {
		return Broadcast{}, internal.NewValidationError("title and message are required", internal.ErrCodeMissingField)
	}
	targetType := strings.TrimSpace(r.TargetType)
	if targetType == "" {
		targetType = TargetAll
	}
	return Broadcast{
		Kind:    KindFact,
		RefID:   strings.TrimSpace(r.FactID),
		Title:   title,
		Message: message,
		Target: Target{
			Type:    targetType,
			Roles:   r.Roles,
			UserIDs: r.UserIDs,
		},
	}, nil
}

type PolicyBroadcastRequest struct {
	PolicyID string   `json:"policyId"`
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Roles    []string `json:"roles"`
}

func (r PolicyBroadcastRequest) Validate() (Broadcast, error) {
	policyID := strings.TrimSpace(r.PolicyID)
	title := strings.TrimSpace(r.Title)
	if policyID == "" || title == "" || len(r.Roles) == 0 {
		return Broadcast{}, internal.NewValidationError("policyId, title, and roles are required", internal.ErrCodeMissingField)
	}
	return Broadcast{
		Kind:    KindPolicy,
		RefID:   policyID,
		Title:   title,
		Message: strings.TrimSpace(r.Message),
		Target:  Target{Type: TargetRoles, Roles: r.Roles},
	}, nil
}

type PublishFactRequest struct {
	Message  string   `json:"message"`
	Title    string   `json:"title"`
	Roles    []string `json:"roles"`
	Priority string   `json:"priority"`
	Type     string   `json:"type"`
}

type PublishFactCommand struct {
	Message  string
	Title    string
	Roles    []roles.Role
	Priority string
	Type     string
	AuthorID string
}

func (r PublishFactRequest) Validate(authorID string) (PublishFactCommand, error) {
	message := strings.TrimSpace(r.Message)
	if message == "" {
		return PublishFactCommand{}, internal.NewValidationError("message required", internal.ErrCodeMissingField)
	}

	requested := r.Roles
	if requested == nil {
		requested = []string{roles.Security.String()}
	}
	rs := uniqueRoles(roles.NormalizeAll(requested, roles.Security))
	if len(rs) == 0 {
		rs = []roles.Role{roles.Security}
	}

	cmd := PublishFactCommand{
		Message:  message,
		Title:    strings.TrimSpace(r.Title),
		Roles:    rs,
		Priority: strings.TrimSpace(r.Priority),
		Type:     strings.TrimSpace(r.Type),
		AuthorID: authorID,
	}
	if cmd.Priority == "" {
		cmd.Priority = "normal"
	}
	if cmd.Type == "" {
		cmd.Type = "security"
	}
	if cmd.Title == "" {
		cmd.Title = "New security fact"
	}
	return cmd, nil
}

type CountResponse struct {
	Count int `json:"count"`
}

type PublishFactResponse struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}
