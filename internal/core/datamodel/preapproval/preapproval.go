package preapproval

import "time"

type Preapproval struct {
	UserID     string     `gorm:"primaryKey;column:user_id"`
	Role       string     `gorm:"column:role;not null"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	ConsumedAt *time.Time `gorm:"column:consumed_at"`
}

func (Preapproval) TableName() string {
	return "preapprovals"
}
