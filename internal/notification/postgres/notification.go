package postgres

import (
	"context"
	"errors"

	factDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/fact"
	notificationDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/notification"
	"github.com/frahmantamala/securemind/internal/notification"
	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) notification.RepositoryAPI {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) CommitBatch(ctx context.Context, batch []*notification.Notification) error {
	if len(batch) == 0 {
		return nil
	}
	rows := make([]*notificationDatamodel.Notification, len(batch))
	for i, n := range batch {
		rows[i] = notification.ToDataModel(n)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(rows, len(rows)).Error
	})
}

func (r *NotificationRepository) ListByUser(ctx context.Context, uid string, limit int) ([]*notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []notificationDatamodel.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", uid).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*notification.Notification, len(rows))
	for i := range rows {
		out[i] = notification.FromDataModel(&rows[i])
	}
	return out, nil
}

func (r *NotificationRepository) CountByRef(ctx context.Context, kind, refID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&notificationDatamodel.Notification{}).
		Where("type = ? AND ref_id = ?", kind, refID).
		Count(&count).Error
	return count, err
}

type FactRepository struct {
	db *gorm.DB
}

func NewFactRepository(db *gorm.DB) notification.FactRepositoryAPI {
	return &FactRepository{db: db}
}

func (r *FactRepository) Create(ctx context.Context, fact *notification.Fact) error {
	return r.db.WithContext(ctx).Create(notification.FactToDataModel(fact)).Error
}

func (r *FactRepository) GetByID(ctx context.Context, id string) (*notification.Fact, error) {
	var row factDatamodel.Fact
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notification.ErrFactNotFound
		}
		return nil, err
	}
	return notification.FactFromDataModel(&row), nil
}
