package identity

import "time"

type Account struct {
	ID               string    `gorm:"primaryKey;column:id"`
	Email            string    `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash     string    `gorm:"column:password_hash;not null"`
	DisplayName      string    `gorm:"column:display_name"`
	Disabled         bool      `gorm:"column:disabled;not null"`
	CustomClaims     string    `gorm:"column:custom_claims"`
	SessionVersion   int64     `gorm:"column:session_version;not null"`
	TokensValidAfter time.Time `gorm:"column:tokens_valid_after"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (Account) TableName() string {
	return "identity_accounts"
}
