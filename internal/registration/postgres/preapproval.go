package postgres

import (
	"context"
	"errors"
	"time"

	preapprovalDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/preapproval"
	"github.com/frahmantamala/securemind/internal/registration"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PreapprovalRepository struct {
	db *gorm.DB
}

func NewPreapprovalRepository(db *gorm.DB) registration.PreapprovalRepositoryAPI {
	return &PreapprovalRepository{db: db}
}

func (r *PreapprovalRepository) PreapprovedRole(ctx context.Context, uid string) (string, bool, error) {
	var row preapprovalDatamodel.Preapproval
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND consumed_at IS NULL", uid).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return row.Role, true, nil
}

func (r *PreapprovalRepository) MarkConsumed(ctx context.Context, uid string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&preapprovalDatamodel.Preapproval{}).
		Where("user_id = ? AND consumed_at IS NULL", uid).
		Update("consumed_at", at).Error
}

func (r *PreapprovalRepository) Upsert(ctx context.Context, p *registration.Preapproval) error {
	row := registration.ToDataModel(p)
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	row.ConsumedAt = nil
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"role", "consumed_at"}),
		}).
		Create(row).Error
}
