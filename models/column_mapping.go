package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ColumnMapping is the confirmed association between semantic fields and sheet headers.
// It is stored as JSON in uploads.mapped_config.
type ColumnMapping struct {
	NameColumn        string   `json:"nameColumn"`
	PhoneColumn       string   `json:"phoneColumn"`
	VisibleColumns    []string `json:"visibleColumns"`
	FilterableColumns []string `json:"filterableColumns"`
}

// Value implements the driver.Valuer interface for ColumnMapping
func (m ColumnMapping) Value() (driver.Value, error) {
	if m.VisibleColumns == nil {
		m.VisibleColumns = []string{}
	}
	if m.FilterableColumns == nil {
		m.FilterableColumns = []string{}
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for ColumnMapping
func (m *ColumnMapping) Scan(value any) error {
	if value == nil {
		*m = ColumnMapping{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into ColumnMapping", value)
	}

	return json.Unmarshal(bytes, m)
}
