package models

import (
	"time"

	"gorm.io/gorm"
)

// Role values for User.Role
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// User represents a storefront customer or an administrator
type User struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"not null" json:"name"`
	Email            string         `gorm:"uniqueIndex:idx_users_email_active,where:deleted_at IS NULL;not null" json:"email"`
	PasswordHash     string         `gorm:"not null" json:"-"`
	Role             string         `gorm:"not null;default:'USER'" json:"role"` // "USER" or "ADMIN"
	ResetToken       *string        `gorm:"index" json:"-"`
	ResetTokenExpiry *time.Time     `json:"-"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsAdmin reports whether the user holds the ADMIN role
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsValidRole reports whether role is one of the known roles
func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}
