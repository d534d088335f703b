// Package models contains domain entities and persisted records for the prospecting workbench
package models

import "time"

// Defaults for users created on first login
const (
	UserPlanFree   = "free"
	UserRoleMember = "member"
)

// User is keyed by its normalized email.
// Table: users
type User struct {
	Email           string     `gorm:"primaryKey;size:255" json:"email"`
	PasswordHash    string     `gorm:"size:255" json:"-"` // Never serialize password hash
	Name            *string    `gorm:"size:255" json:"name,omitempty"`
	CompanyName     *string    `gorm:"size:255" json:"company_name,omitempty"`
	LogoURL         *string    `gorm:"size:1024" json:"logo_url,omitempty"`
	Plan            string     `gorm:"size:32;not null;default:'free'" json:"plan"`
	Role            string     `gorm:"size:32;not null;default:'member'" json:"role"`
	CreatedAt       time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_users_created_at" json:"created_at"`
	LastSeen        time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"last_seen"`
	RecoveryCode    *string    `gorm:"size:16" json:"-"`
	RecoveryExpires *time.Time `json:"-"`
}

func (User) TableName() string { return "users" }

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	Email *string
}
