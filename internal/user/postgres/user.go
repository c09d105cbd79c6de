package postgres

import (
	"context"
	"errors"
	"time"

	userDatamodel "github.com/frahmantamala/securemind/internal/core/datamodel/user"
	"github.com/frahmantamala/securemind/internal/roles"
	"github.com/frahmantamala/securemind/internal/user"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.RepositoryAPI {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, uid string) (*user.Profile, error) {
	var row userDatamodel.User
	err := r.db.WithContext(ctx).Where("id = ?", uid).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&row), nil
}

// Upsert inserts a new profile or updates only the patched columns of an
// existing one. A new profile without a role in the patch gets roles.User.
func (r *UserRepository) Upsert(ctx context.Context, uid string, patch user.ProfilePatch) error {
	now := time.Now().UTC()
	row := &userDatamodel.User{
		ID:        uid,
		Role:      roles.User.String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	columns := []string{"updated_at"}

	if patch.Role != nil {
		row.Role = patch.Role.String()
		columns = append(columns, "role")
	}
	if patch.Email != nil {
		row.Email = patch.Email
		columns = append(columns, "email")
	}
	if patch.FirstName != nil {
		row.FirstName = patch.FirstName
		columns = append(columns, "first_name")
	}
	if patch.LastName != nil {
		row.LastName = patch.LastName
		columns = append(columns, "last_name")
	}
	if patch.DisplayName != nil {
		row.DisplayName = patch.DisplayName
		columns = append(columns, "display_name")
	}
	if patch.Disabled != nil {
		row.Disabled = *patch.Disabled
		columns = append(columns, "disabled")
	}
	if patch.EmployeeID != nil {
		row.EmployeeID = patch.EmployeeID
		columns = append(columns, "employee_id")
	}
	if patch.LinkedEmployeeDoc != nil {
		row.LinkedEmployeeDoc = patch.LinkedEmployeeDoc
		columns = append(columns, "linked_employee_doc")
	}
	if patch.CreatedBy != nil {
		row.CreatedBy = patch.CreatedBy
		columns = append(columns, "created_by")
	}
	if patch.UpdatedBy != nil {
		row.UpdatedBy = patch.UpdatedBy
		columns = append(columns, "updated_by")
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(columns),
		}).
		Create(row).Error
}

func (r *UserRepository) Delete(ctx context.Context, uid string) error {
	result := r.db.WithContext(ctx).Where("id = ?", uid).Delete(&userDatamodel.User{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UserRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *UserRepository) ListIDsByRoles(ctx context.Context, rs []roles.Role) ([]string, error) {
	if len(rs) == 0 {
		return nil, nil
	}
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("role IN ?", roles.Strings(rs)).
		Order("id").
		Pluck("id", &ids).Error
	return ids, err
}
