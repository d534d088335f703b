package businessflow

import (
	"bytes"
	"strings"

	"github.com/amirphl/humanflow/models"
	"github.com/xuri/excelize/v2"
)

const exportSheetName = "Contactos"

// ExportContacts writes prospects to a single-sheet xlsx workbook with the
// name, phone and status columns followed by the visible columns of mapping
func ExportContacts(contacts []models.Prospect, mapping models.ColumnMapping) (*bytes.Buffer, error) {
	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	if err := xl.SetSheetName(xl.GetSheetName(0), exportSheetName); err != nil {
		return nil, err
	}

	extras := make([]string, 0, len(mapping.VisibleColumns))
	for _, col := range mapping.VisibleColumns {
		if col == mapping.NameColumn || col == mapping.PhoneColumn || strings.EqualFold(col, models.FieldEstado) {
			continue
		}
		extras = append(extras, col)
	}

	header := []any{labelOr(mapping.NameColumn, "Nombre"), labelOr(mapping.PhoneColumn, "Telefono"), "Estado"}
	for _, col := range extras {
		header = append(header, col)
	}
	if err := xl.SetSheetRow(exportSheetName, "A1", &header); err != nil {
		return nil, err
	}

	for i, p := range contacts {
		record := []any{p.Nombre, p.Telefono, p.Estado}
		for _, col := range extras {
			record = append(record, p.Field(col))
		}
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := xl.SetSheetRow(exportSheetName, cellRef, &record); err != nil {
			return nil, err
		}
	}

	return xl.WriteToBuffer()
}

func labelOr(label, fallback string) string {
	if strings.TrimSpace(label) == "" {
		return fallback
	}
	return label
}
