package notification

import (
	"context"
	"strings"
	"time"

	factDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/fact"
	notificationDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/notification"
	"github.com/frahmantamala/securemind/internal/roles"
)

const (
	KindFact   = "fact"
	KindPolicy = "policy"
)

const (
	TargetAll   = "all"
	TargetRoles = "roles"
	TargetUsers = "users"
)

// Target selects recipients. Roles is used with TargetRoles and UserIDs with
// TargetUsers.
type Target struct {
	Type    string
	Roles   []string
	UserIDs []string
}

type Broadcast struct {
	Kind    string
	RefID   string
	Title   string
	Message string
	Target  Target
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	RefID     string    `json:"refId,omitempty"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

type Fact struct {
	ID        string       `json:"id"`
	Message   string       `json:"message"`
	Roles     []roles.Role `json:"roles"`
	Priority  string       `json:"priority"`
	Type      string       `json:"type"`
	CreatedBy string       `json:"createdBy"`
	CreatedAt time.Time    `json:"createdAt"`
	ViewCount int64        `json:"viewCount"`
}

type RepositoryAPI interface {
	// CommitBatch stores all notifications or none of them.
	CommitBatch(ctx context.Context, batch []*Notification) error
	ListByUser(ctx context.Context, uid string, limit int) ([]*Notification, error)
	CountByRef(ctx context.Context, kind, refID string) (int64, error)
}

type FactRepositoryAPI interface {
	Create(ctx context.Context, fact *Fact) error
	GetByID(ctx context.Context, id string) (*Fact, error)
}

// RecipientSource lists profile ids.
type RecipientSource interface {
	ListIDs(ctx context.Context) ([]string, error)
	ListIDsByRoles(ctx context.Context, rs []roles.Role) ([]string, error)
}

func ToDataModel(n *Notification) *notificationDatamodel.Notification {
	var refID *string
	if n.RefID != "" {
		ref := n.RefID
		refID = &ref
	}
	return &notificationDatamodel.Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		RefID:     refID,
		Title:     n.Title,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func FromDataModel(n *notificationDatamodel.Notification) *Notification {
	out := &Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	if n.RefID != nil {
		out.RefID = *n.RefID
	}
	return out
}

func FactToDataModel(f *Fact) *factDatamodel.Fact {
	return &factDatamodel.Fact{
		ID:        f.ID,
		Message:   f.Message,
		Roles:     strings.Join(roles.Strings(f.Roles), ","),
		Priority:  f.Priority,
		Type:      f.Type,
		CreatedBy: f.CreatedBy,
		CreatedAt: f.CreatedAt,
		ViewCount: f.ViewCount,
	}
}

func FactFromDataModel(f *factDatamodel.Fact) *Fact {
	var rs []roles.Role
	for _, name := range strings.Split(f.Roles, ",") {
		if r, ok := roles.Parse(name); ok {
			rs = append(rs, r)
		}
	}
	return &Fact{
		ID:        f.ID,
		Message:   f.Message,
		Roles:     rs,
		Priority:  f.Priority,
		Type:      f.Type,
		CreatedBy: f.CreatedBy,
		CreatedAt: f.CreatedAt,
		ViewCount: f.ViewCount,
	}
}
