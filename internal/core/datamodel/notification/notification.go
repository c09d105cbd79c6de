package notification

import "time"

type Notification struct {
	ID        string    `gorm:"primaryKey;column:id"`
	UserID    string    `gorm:"column:user_id;index;not null"`
	Type      string    `gorm:"column:type;not null"`
	RefID     *string   `gorm:"column:ref_id"`
	Title     string    `gorm:"column:title;not null"`
	Message   string    `gorm:"column:message"`
	Read      bool      `gorm:"column:read;not null"`
	CreatedAt time.Time `gorm:"column:created_at;index"`
}

func (Notification) TableName() string {
	return "notifications"
}
