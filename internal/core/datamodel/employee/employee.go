package employee

import "time"

type Employee struct {
	ID           string     `gorm:"primaryKey;column:id"`
	FullName     *string    `gorm:"column:full_name"`
	Email        *string    `gorm:"column:email"`
	Role         *string    `gorm:"column:role"`
	Department   *string    `gorm:"column:department"`
	Team         *string    `gorm:"column:team"`
	IsActive     bool       `gorm:"column:is_active;not null"`
	LinkedUserID *string    `gorm:"column:linked_user_id"`
	LinkedAt     *time.Time `gorm:"column:linked_at"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

func (Employee) TableName() string {
	return "employees"
}
