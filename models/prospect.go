package models

// Well-known prospect field keys. Anything else lives in Extras.
const (
	FieldID       = "id"
	FieldNombre   = "nombre"
	FieldTelefono = "telefono"
	FieldEstado   = "estado"
)

// Prospect is one contact extracted from a workbook row. Only Estado changes
// after extraction.
type Prospect struct {
	ID       string            `json:"id"`
	Nombre   string            `json:"nombre"`
	Telefono string            `json:"telefono"`
	Estado   string            `json:"estado"`
	Extras   map[string]string `json:"extras,omitempty"`
}

// Field returns the value stored under key, looking at the fixed fields first
// and then at the extras. Missing keys yield "".
func (p Prospect) Field(key string) string {
	switch key {
	case FieldID:
		return p.ID
	case FieldNombre:
		return p.Nombre
	case FieldTelefono:
		return p.Telefono
	case FieldEstado:
		return p.Estado
	}
	return p.Extras[key]
}

// WithEstado returns a copy of the prospect carrying the given status.
func (p Prospect) WithEstado(estado string) Prospect {
	p.Extras = cloneExtras(p.Extras)
	p.Estado = estado
	return p
}

func cloneExtras(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
