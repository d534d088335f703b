package dto

import "github.com/amirphl/humanflow/models"

// DashboardStatsDTO are the counters of a dashboard view
type DashboardStatsDTO struct {
	Total            int `json:"total"`
	Pending          int `json:"pending"`
	SessionSentCount int `json:"session_sent_count"`
	ContactedTotal   int `json:"contacted_total"`
	TotalDatabase    int `json:"total_database"`
	ProgressPercent  int `json:"progress_percent"`
}

// ProspectView is a prospect with its status badge
type ProspectView struct {
	models.Prospect
	Badge string `json:"badge"`
	Sent  bool   `json:"sent"`
}

// DashboardComputeRequest computes a view over client-held prospects
type DashboardComputeRequest struct {
	Contacts          []models.Prospect `json:"contacts" validate:"max=50000"`
	Filters           map[string]string `json:"filters"`
	SentIDs           []string          `json:"sent_ids"`
	View              string            `json:"view" validate:"omitempty,oneof=active sent"`
	FilterableColumns []string          `json:"filterable_columns"`
}

// DashboardQuery selects a view over a persisted upload
type DashboardQuery struct {
	Filters map[string]string
	View    string
}

// DashboardResponse is one rendered view of the prospect list
type DashboardResponse struct {
	UploadID      *uint               `json:"upload_id,omitempty"`
	View          string              `json:"view"`
	Contacts      []ProspectView      `json:"contacts"`
	Stats         DashboardStatsDTO   `json:"stats"`
	FilterOptions map[string][]string `json:"filter_options"`
	SentIDs       []string            `json:"sent_ids"`
}

// BuildLinkRequest renders a message for a client-held prospect
type BuildLinkRequest struct {
	Template string          `json:"template" validate:"max=4000"`
	Contact  models.Prospect `json:"contact"`
}

// SendRequest optionally overrides the saved template for one send
type SendRequest struct {
	Template string `json:"template" validate:"max=4000"`
}

// OutboundLinkResponse is a messaging deep link
type OutboundLinkResponse struct {
	URL     string          `json:"url"`
	Message string          `json:"message"`
	Contact models.Prospect `json:"contact"`
	Queued  bool            `json:"queued"`
}
