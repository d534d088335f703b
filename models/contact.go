package models

import (
	"time"

	"gorm.io/datatypes"
)

// Contact is the persisted form of a Prospect. Prospect ids are only unique
// within one upload, so the key is (upload_id, id).
// Table: contacts
type Contact struct {
	UploadID  uint           `gorm:"primaryKey;autoIncrement:false" json:"upload_id"`
	ID        string         `gorm:"primaryKey;size:64" json:"id"`
	UserEmail string         `gorm:"size:255;not null;index:idx_contacts_user_email" json:"user_email"`
	RowIndex  int            `gorm:"not null;default:0" json:"row_index"`
	Data      datatypes.JSON `gorm:"type:jsonb;not null" json:"data"`
	Status    string         `gorm:"size:255;not null;default:'Nuevo';index:idx_contacts_status" json:"status"`
	UpdatedAt time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Upload *Upload `gorm:"foreignKey:UploadID;references:ID" json:"-"`
	User   *User   `gorm:"foreignKey:UserEmail;references:Email" json:"-"`
}

func (Contact) TableName() string { return "contacts" }

// ContactFilter represents filter criteria for contact queries
type ContactFilter struct {
	UploadID  *uint
	UserEmail *string
}
