package identity

import (
	"time"

	"gorm.io/gorm"
)

// Identity is an authenticated principal, independent of what role it plays
// in the application. Role attachments (client_users, admin_users rows) are
// keyed by this id.
type Identity struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	Email          string         `json:"email" gorm:"type:varchar(100);uniqueIndex;not null"`
	PasswordHash   string         `json:"-" gorm:"type:varchar(255);not null"`
	EmailConfirmed bool           `json:"email_confirmed" gorm:"default:false"`
	LastSignInAt   *time.Time     `json:"last_sign_in_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName keeps the identity store visually separate from the application
// tables.
func (Identity) TableName() string {
	return "identities"
}
