package fact

import "time"

type Fact struct {
	ID        string    `gorm:"primaryKey;column:id"`
	Message   string    `gorm:"column:message;not null"`
	Roles     string    `gorm:"column:roles;not null"`
	Priority  string    `gorm:"column:priority;not null"`
	Type      string    `gorm:"column:type;not null"`
	CreatedBy string    `gorm:"column:created_by"`
	CreatedAt time.Time `gorm:"column:created_at"`
	ViewCount int64     `gorm:"column:view_count;not null"`
}

func (Fact) TableName() string {
	return "facts"
}
