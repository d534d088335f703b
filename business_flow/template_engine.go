package businessflow

import (
	"regexp"
	"sort"
	"strings"

	"github.com/amirphl/humanflow/models"
)

var placeholderPattern = regexp.MustCompile(`{{(.*?)}}`)

// fallbackVariables are offered when no contacts are loaded yet
var fallbackVariables = []string{models.FieldNombre, "apellido", "empresa"}

// RenderTemplate substitutes every {{key}} in template with the prospect
// field of that (trimmed, case-sensitive) key. Unknown or empty fields leave
// the placeholder untouched. Substituted values are never re-scanned.
func RenderTemplate(template string, p models.Prospect) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(token string) string {
		key := strings.TrimSpace(token[2 : len(token)-2])
		if v := p.Field(key); v != "" {
			return v
		}
		return token
	})
}

// TemplateVariables lists the keys usable as placeholders for the given
// prospects: nombre first, then the extra columns in lexical order.
func TemplateVariables(prospects []models.Prospect) []string {
	if len(prospects) == 0 {
		return append([]string(nil), fallbackVariables...)
	}

	seen := make(map[string]struct{})
	for _, p := range prospects {
		for k := range p.Extras {
			switch strings.ToLower(k) {
			case models.FieldID, models.FieldTelefono, models.FieldEstado, models.FieldNombre:
				continue
			}
			seen[k] = struct{}{}
		}
	}

	extras := make([]string, 0, len(seen))
	for k := range seen {
		extras = append(extras, k)
	}
	sort.Strings(extras)
	return append([]string{models.FieldNombre}, extras...)
}
