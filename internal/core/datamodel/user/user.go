package user

import "time"

type User struct {
	ID                string    `gorm:"primaryKey;column:id"`
	Email             *string   `gorm:"column:email"`
	FirstName         *string   `gorm:"column:first_name"`
	LastName          *string   `gorm:"column:last_name"`
	DisplayName       *string   `gorm:"column:display_name"`
	Role              string    `gorm:"column:role;index;not null"`
	Disabled          bool      `gorm:"column:disabled;not null"`
	EmployeeID        *string   `gorm:"column:employee_id"`
	LinkedEmployeeDoc *string   `gorm:"column:linked_employee_doc"`
	CreatedBy         *string   `gorm:"column:created_by"`
	UpdatedBy         *string   `gorm:"column:updated_by"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (User) TableName() string {
	return "users"
}
