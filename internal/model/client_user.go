package model

import (
	"time"

	"gorm.io/gorm"
)

// ClientRole is the role of a client user within their practice. There is a
// single role today; it is an enum rather than a bare string so new roles do
// not require a migration of meaning later.
type ClientRole string

const (
	ClientRoleOwner ClientRole = "owner"
)

// ClientUser is the tenant-membership attachment: it ties an identity to
// exactly one practice. An identity with a ClientUser row is a client; an
// identity with an AdminUser row is an operator. The same identity must never
// carry both.
type ClientUser struct {
	ID         uint           `json:"id" gorm:"primaryKey"` // identity id
	Email      string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Role       ClientRole     `json:"role" gorm:"type:varchar(20);not null;default:'owner'"`
	PracticeID uint           `json:"practice_id" gorm:"index;not null"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Practice Practice `json:"practice,omitempty" gorm:"foreignKey:PracticeID"`
}
