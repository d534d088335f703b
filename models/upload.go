package models

import "time"

// Upload is one completed import: a file, the chosen sheet and its column mapping.
// Table: uploads
type Upload struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	UserEmail    string        `gorm:"size:255;not null;index:idx_uploads_user_email_created_at,priority:1" json:"user_email"`
	Filename     string        `gorm:"size:512;not null" json:"filename"`
	SheetName    string        `gorm:"size:255;not null" json:"sheet_name"`
	MappedConfig ColumnMapping `gorm:"type:jsonb" json:"mapped_config"`
	CreatedAt    time.Time     `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_uploads_user_email_created_at,priority:2,sort:desc" json:"created_at"`

	// Relations
	User     *User     `gorm:"foreignKey:UserEmail;references:Email" json:"-"`
	Contacts []Contact `gorm:"foreignKey:UploadID" json:"-"`
}

func (Upload) TableName() string { return "uploads" }

// UploadSummary is an upload with its contact counters, as listed in the history.
type UploadSummary struct {
	ID             uint      `json:"id"`
	Filename       string    `json:"filename"`
	SheetName      string    `json:"sheet_name"`
	CreatedAt      time.Time `json:"created_at"`
	TotalContacts  int64     `json:"total_contacts"`
	ContactedCount int64     `json:"contacted_count"`
}
