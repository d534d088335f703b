package dto

import "github.com/amirphl/humanflow/models"

// ColumnSuggestionDTO holds the guessed name and phone columns of a sheet
type ColumnSuggestionDTO struct {
	NameGuess  string `json:"name_guess"`
	PhoneGuess string `json:"phone_guess"`
}

// SheetPreview describes one sheet of an uploaded workbook
type SheetPreview struct {
	Name       string              `json:"name"`
	Headers    []string            `json:"headers"`
	RowCount   int                 `json:"row_count"`
	Suggestion ColumnSuggestionDTO `json:"suggestion"`
	SampleRows [][]string          `json:"sample_rows,omitempty"`
}

// ImportPreviewResponse is returned after a workbook upload
type ImportPreviewResponse struct {
	ImportToken string         `json:"import_token"`
	Filename    string         `json:"filename"`
	Sheets      []SheetPreview `json:"sheets"`
	ExpiresIn   int            `json:"expires_in"`
}

// ImportConfirmRequest confirms the column mapping of a previewed workbook
type ImportConfirmRequest struct {
	ImportToken       string   `json:"import_token" validate:"required,uuid"`
	Sheet             string   `json:"sheet" validate:"required,max=255"`
	NameColumn        string   `json:"name_column" validate:"max=255"`
	PhoneColumn       string   `json:"phone_column" validate:"max=255"`
	VisibleColumns    []string `json:"visible_columns" validate:"max=100,dive,max=255"`
	FilterableColumns []string `json:"filterable_columns" validate:"max=100,dive,max=255"`
}

// ImportConfirmResponse carries the extracted prospects and the persistence outcome
type ImportConfirmResponse struct {
	UploadID      *uint                `json:"upload_id,omitempty"`
	Filename      string               `json:"filename"`
	Sheet         string               `json:"sheet"`
	Mapping       models.ColumnMapping `json:"mapping"`
	Contacts      []models.Prospect    `json:"contacts"`
	Skipped       int                  `json:"skipped"`
	TotalRows     int                  `json:"total_rows"`
	Persisted     bool                 `json:"persisted"`
	Warning       string               `json:"warning,omitempty"`
	Variables     []string             `json:"variables"`
	FilterOptions map[string][]string  `json:"filter_options"`
	Stats         DashboardStatsDTO    `json:"stats"`
}
