package dto

import "github.com/amirphl/humanflow/models"

// UploadHistoryResponse lists the latest uploads of the user
type UploadHistoryResponse struct {
	Uploads []models.UploadSummary `json:"uploads"`
}

// ResumeResponse is a persisted upload ready to continue working on
type ResumeResponse struct {
	UploadID      uint                 `json:"upload_id"`
	Filename      string               `json:"filename"`
	Sheet         string               `json:"sheet"`
	Mapping       models.ColumnMapping `json:"mapping"`
	Contacts      []models.Prospect    `json:"contacts"`
	Variables     []string             `json:"variables"`
	FilterOptions map[string][]string  `json:"filter_options"`
	SentIDs       []string             `json:"sent_ids"`
	Stats         DashboardStatsDTO    `json:"stats"`
}
