package postgres

import (
	"context"
	"errors"
	"time"

	employeeDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/employee"
	"github.com/frahmantamala/securemind/internal/directory"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EmployeeRepository struct {
	db *gorm.DB
}

func NewEmployeeRepository(db *gorm.DB) directory.RepositoryAPI {
	return &EmployeeRepository{db: db}
}

func (r *EmployeeRepository) GetByID(ctx context.Context, id string) (*directory.Employee, error) {
	var row employeeDatamodel.Employee
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, directory.ErrNotFound
		}
		return nil, err
	}
	return directory.FromDataModel(&row), nil
}

// Link is a single conditional update so two accounts racing for the same
// employee cannot both win.
func (r *EmployeeRepository) Link(ctx context.Context, id, uid string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&employeeDatamodel.Employee{}).
		Where("id = ? AND (linked_user_id IS NULL OR linked_user_id = ?)", id, uid).
		Updates(map[string]interface{}{
			"linked_user_id": uid,
			"linked_at":      gorm.Expr("COALESCE(linked_at, ?)", at),
			"updated_at":     at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return directory.ErrAlreadyLinked
}

// Upsert refreshes directory attributes and leaves the link untouched.
func (r *EmployeeRepository) Upsert(ctx context.Context, e *directory.Employee) error {
	now := time.Now().UTC()
	row := directory.ToDataModel(e)
	row.LinkedUserID = nil
	row.LinkedAt = nil
	row.CreatedAt = now
	row.UpdatedAt = now

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"full_name", "email", "role", "department", "team", "is_active", "updated_at",
			}),
		}).
		Create(row).Error
}
