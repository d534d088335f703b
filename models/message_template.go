package models

import "time"

// MessageTemplate is the single active outbound message template of a user.
// Table: message_templates
type MessageTemplate struct {
	UserEmail string    `gorm:"primaryKey;size:255" json:"user_email"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	User *User `gorm:"foreignKey:UserEmail;references:Email" json:"-"`
}

func (MessageTemplate) TableName() string { return "message_templates" }
