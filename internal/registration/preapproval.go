package registration

import (
	"context"
	"time"

	preapprovalDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/preapproval"
)

// Preapproval grants a role to an account before its first sign-in.
type Preapproval struct {
	UserID     string
	Role       string
	CreatedAt  time.Time
	ConsumedAt *time.Time
}

type PreapprovalRepositoryAPI interface {
	// PreapprovedRole returns the role of an unconsumed preapproval.
	PreapprovedRole(ctx context.Context, uid string) (string, bool, error)
	MarkConsumed(ctx context.Context, uid string, at time.Time) error
	// Upsert stores p and clears any earlier consumption.
	Upsert(ctx context.Context, p *Preapproval) error
}

func ToDataModel(p *Preapproval) *preapprovalDatamodel.Preapproval {
	return &preapprovalDatamodel.Preapproval{
		UserID:     p.UserID,
		Role:       p.Role,
		CreatedAt:  p.CreatedAt,
		ConsumedAt: p.ConsumedAt,
	}
}

func FromDataModel(p *preapprovalDatamodel.Preapproval) *Preapproval {
	return &Preapproval{
		UserID:     p.UserID,
		Role:       p.Role,
		CreatedAt:  p.CreatedAt,
		ConsumedAt: p.ConsumedAt,
	}
}
