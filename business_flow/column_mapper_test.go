package businessflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKeywords = MappingKeywords{
	Name:  []string{"nombre", "name", "cliente", "lead", "prospecto"},
	Phone: []string{"tel", "cel", "phone", "whatsapp", "movil"},
}

func TestSuggestColumns(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		want    ColumnSuggestion
	}{
		{
			name:    "spanish headers",
			headers: []string{"ID", "Nombre Completo", "Teléfono", "Empresa"},
			want:    ColumnSuggestion{NameGuess: "Nombre Completo", PhoneGuess: "Teléfono"},
		},
		{
			name:    "first matching header wins",
			headers: []string{"Lead Source", "Name", "WhatsApp", "Phone"},
			want:    ColumnSuggestion{NameGuess: "Lead Source", PhoneGuess: "WhatsApp"},
		},
		{
			name:    "case insensitive",
			headers: []string{"CLIENTE", "MOVIL"},
			want:    ColumnSuggestion{NameGuess: "CLIENTE", PhoneGuess: "MOVIL"},
		},
		{
			name:    "no match",
			headers: []string{"Empresa", "Ciudad"},
			want:    ColumnSuggestion{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SuggestColumns(tt.headers, testKeywords))
		})
	}
}

func TestMappingSelection_Confirm(t *testing.T) {
	headers := []string{"Nombre", "WhatsApp", "Empresa", "Ciudad"}

	t.Run("seeded from suggestion", func(t *testing.T) {
		sel := NewMappingSelection("Hoja1", headers, testKeywords)
		sel.VisibleColumns = []string{"Empresa", "Empresa"}
		sel.FilterableColumns = []string{"Ciudad"}

		mapping, err := sel.Confirm()
		require.NoError(t, err)
		assert.Equal(t, "Nombre", mapping.NameColumn)
		assert.Equal(t, "WhatsApp", mapping.PhoneColumn)
		assert.Equal(t, []string{"Empresa"}, mapping.VisibleColumns)
		assert.Equal(t, []string{"Ciudad"}, mapping.FilterableColumns)
	})

	t.Run("missing name column", func(t *testing.T) {
		sel := NewMappingSelection("Hoja1", []string{"Empresa", "Tel"}, testKeywords)
		_, err := sel.Confirm()
		assert.ErrorIs(t, err, ErrNameColumnRequired)
		assert.True(t, IsMappingInvalid(err))
	})

	t.Run("missing phone column", func(t *testing.T) {
		sel := NewMappingSelection("Hoja1", []string{"Nombre", "Empresa"}, testKeywords)
		_, err := sel.Confirm()
		assert.ErrorIs(t, err, ErrPhoneColumnRequired)
	})

	t.Run("unknown column", func(t *testing.T) {
		sel := NewMappingSelection("Hoja1", headers, testKeywords)
		sel.FilterableColumns = []string{"Pais"}
		_, err := sel.Confirm()
		assert.ErrorIs(t, err, ErrUnknownColumn)
		assert.True(t, IsMappingInvalid(err))
	})

	t.Run("switching sheets starts over", func(t *testing.T) {
		first := NewMappingSelection("Hoja1", headers, testKeywords)
		first.NameColumn = "Empresa"
		first.VisibleColumns = []string{"Ciudad"}

		second := NewMappingSelection("Hoja2", headers, testKeywords)
		assert.Equal(t, "Nombre", second.NameColumn)
		assert.Empty(t, second.VisibleColumns)
	})
}
