package model

import (
	"time"

	"gorm.io/gorm"
)

// AdminRole is the role of a console operator. Roles form a strict total
// order: super_admin > admin > viewer.
type AdminRole string

const (
	RoleSuperAdmin AdminRole = "super_admin"
	RoleAdmin      AdminRole = "admin"
	RoleViewer     AdminRole = "viewer"
)

// AdminUser is the operator attachment on an identity. The mere existence of
// this row is what distinguishes an admin identity from a client identity.
//
// The partial unique index on role permits at most one super_admin row, so
// two concurrent bootstrap calls cannot both succeed even though the handler
// checks existence before inserting.
type AdminUser struct {
	ID        uint           `json:"id" gorm:"primaryKey"` // identity id
	Email     string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	FullName  string         `json:"full_name" gorm:"type:varchar(200)"`
	Role      AdminRole      `json:"role" gorm:"type:varchar(20);not null;default:'viewer';index:idx_admin_users_one_super,unique,where:role = 'super_admin'"`
	LastLogin *time.Time     `json:"last_login,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Rank returns the position of r in the role order. Unknown roles rank below
// every real role so a corrupted row can never manage anyone.
func (r AdminRole) Rank() int {
	switch r {
	case RoleSuperAdmin:
		return 3
	case RoleAdmin:
		return 2
	case RoleViewer:
		return 1
	}
	return 0
}

// Valid reports whether r is a known admin role.
func (r AdminRole) Valid() bool {
	return r.Rank() > 0
}

// Assignable reports whether r may be granted through ordinary admin
// creation. super_admin is excluded: it is only ever created by the one-time
// bootstrap operation.
func (r AdminRole) Assignable() bool {
	return r == RoleAdmin || r == RoleViewer
}

// CanManage reports whether actor may delete or change the role of target.
// An actor manages a target only from strictly higher rank, and never
// themselves. Strict inequality means peers cannot manage each other; a
// super_admin dispute requires manual intervention at the store.
func CanManage(actor, target *AdminUser) bool {
	if actor == nil || target == nil {
		return false
	}
	if actor.ID == target.ID {
		return false
	}
	return actor.Role.Rank() > target.Role.Rank()
}
