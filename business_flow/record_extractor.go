package businessflow

import (
	"strconv"
	"strings"

	"github.com/amirphl/humanflow/models"
)

// ExtractOptions tune row validation and defaults
type ExtractOptions struct {
	MinPhoneDigits int
	DefaultName    string
	DefaultStatus  string
}

// ExtractResult is the outcome of turning a grid into prospects
type ExtractResult struct {
	Contacts  []models.Prospect `json:"contacts"`
	Skipped   int               `json:"skipped"`
	TotalRows int               `json:"total_rows"`
}

// ExtractContacts converts the data rows of grid into prospects using mapping.
// Rows whose phone has at most MinPhoneDigits digits are dropped and counted in
// Skipped. Every other header is kept under its exact name in Extras, except a
// header spelled exactly "estado", which seeds the status. The id of a prospect is row-<n>, n being the 0-based position of its
// row among the non-blank data rows.
func ExtractContacts(grid [][]string, mapping models.ColumnMapping, opts ExtractOptions) ExtractResult {
	result := ExtractResult{Contacts: []models.Prospect{}}
	if len(grid) == 0 {
		return result
	}

	keys := headerKeys(grid[0])
	nameIdx, phoneIdx := -1, -1
	for i, k := range keys {
		if k == "" {
			continue
		}
		if k == mapping.NameColumn && nameIdx < 0 {
			nameIdx = i
		}
		if k == mapping.PhoneColumn && phoneIdx < 0 {
			phoneIdx = i
		}
	}

	ordinal := 0
	for _, row := range grid[1:] {
		if isBlankRow(row) {
			continue
		}
		n := ordinal
		ordinal++
		result.TotalRows++

		telefono := digitsOnly(cell(row, phoneIdx))
		if len(telefono) <= opts.MinPhoneDigits {
			result.Skipped++
			continue
		}

		nombre := strings.TrimSpace(cell(row, nameIdx))
		if nombre == "" {
			nombre = opts.DefaultName
		}

		p := models.Prospect{
			ID:       "row-" + strconv.Itoa(n),
			Nombre:   nombre,
			Telefono: telefono,
			Estado:   opts.DefaultStatus,
			Extras:   map[string]string{},
		}
		for i, k := range keys {
			if k == "" || i == nameIdx || i == phoneIdx {
				continue
			}
			v := strings.TrimSpace(cell(row, i))
			// only the exact key overrides the status; "Estado" stays an ordinary column
			if k == models.FieldEstado {
				if v != "" {
					p.Estado = v
				}
				continue
			}
			p.Extras[k] = v
		}
		result.Contacts = append(result.Contacts, p)
	}
	return result
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
