package businessflow

import (
	"fmt"
	"slices"
	"strings"

	"github.com/amirphl/humanflow/models"
)

// MappingKeywords are the lower-case fragments used to guess the name and phone columns
type MappingKeywords struct {
	Name  []string
	Phone []string
}

// ColumnSuggestion holds the guessed name and phone headers. Empty means no match.
type ColumnSuggestion struct {
	NameGuess  string `json:"name_guess"`
	PhoneGuess string `json:"phone_guess"`
}

// SuggestColumns returns, for each semantic field, the first header whose
// lower-cased form contains one of the field keywords.
func SuggestColumns(headers []string, keywords MappingKeywords) ColumnSuggestion {
	return ColumnSuggestion{
		NameGuess:  firstMatchingHeader(headers, keywords.Name),
		PhoneGuess: firstMatchingHeader(headers, keywords.Phone),
	}
}

func firstMatchingHeader(headers, keywords []string) string {
	for _, h := range headers {
		lower := strings.ToLower(h)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return h
			}
		}
	}
	return ""
}

// MappingSelection is the editable mapping state for one sheet. A new sheet
// always gets a new selection.
type MappingSelection struct {
	Sheet             string
	Headers           []string
	NameColumn        string
	PhoneColumn       string
	VisibleColumns    []string
	FilterableColumns []string
}

// NewMappingSelection starts a selection seeded with the suggested columns
func NewMappingSelection(sheet string, headers []string, keywords MappingKeywords) *MappingSelection {
	s := SuggestColumns(headers, keywords)
	return &MappingSelection{
		Sheet:       sheet,
		Headers:     slices.Clone(headers),
		NameColumn:  s.NameGuess,
		PhoneColumn: s.PhoneGuess,
	}
}

// Confirm validates the selection and freezes it into a ColumnMapping
func (s *MappingSelection) Confirm() (models.ColumnMapping, error) {
	if strings.TrimSpace(s.NameColumn) == "" {
		return models.ColumnMapping{}, ErrNameColumnRequired
	}
	if strings.TrimSpace(s.PhoneColumn) == "" {
		return models.ColumnMapping{}, ErrPhoneColumnRequired
	}

	known := make(map[string]struct{}, len(s.Headers))
	for _, h := range s.Headers {
		known[h] = struct{}{}
	}
	check := func(col string) error {
		if _, ok := known[col]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, col)
		}
		return nil
	}

	for _, col := range []string{s.NameColumn, s.PhoneColumn} {
		if err := check(col); err != nil {
			return models.ColumnMapping{}, err
		}
	}
	for _, col := range append(slices.Clone(s.VisibleColumns), s.FilterableColumns...) {
		if err := check(col); err != nil {
			return models.ColumnMapping{}, err
		}
	}

	return models.ColumnMapping{
		NameColumn:        s.NameColumn,
		PhoneColumn:       s.PhoneColumn,
		VisibleColumns:    dedupe(s.VisibleColumns),
		FilterableColumns: dedupe(s.FilterableColumns),
	}, nil
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
