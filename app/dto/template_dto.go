package dto

import "time"

// TemplateResponse is the active message template of the user
type TemplateResponse struct {
	Content   string     `json:"content"`
	IsDefault bool       `json:"is_default"`
	Variables []string   `json:"variables"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// SaveTemplateRequest replaces the message template
type SaveTemplateRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}
