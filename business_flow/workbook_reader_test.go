package businessflow

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildXLSX(t *testing.T, sheets map[string][][]string, order []string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName(f.GetSheetName(0), name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for ri, row := range sheets[name] {
			cells := make([]any, len(row))
			for ci, v := range row {
				cells[ci] = v
			}
			ref, err := excelize.CoordinatesToCellName(1, ri+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, ref, &cells))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadWorkbook_XLSX(t *testing.T) {
	data := buildXLSX(t, map[string][][]string{
		"Leads": {
			{"Nombre", "Celular", "Empresa"},
			{"Ana", "555-111-2222", "Acme"},
			{"", "", ""},
			{"Luis", "600 123 456", "Globex"},
		},
		"Otros": {
			{"Name", "Phone"},
		},
	}, []string{"Leads", "Otros"})

	wb, err := ReadWorkbook("leads.xlsx", bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"Leads", "Otros"}, wb.SheetNames)
	assert.Equal(t, []string{"Nombre", "Celular", "Empresa"}, wb.Headers("Leads"))
	assert.Equal(t, 2, wb.RowCount("Leads"))
	assert.Equal(t, 0, wb.RowCount("Otros"))

	grid, err := wb.Sheet("Leads")
	require.NoError(t, err)
	assert.Equal(t, "Luis", grid[2][0])
}

func TestReadWorkbook_XLSXSniffedWithoutExtension(t *testing.T) {
	data := buildXLSX(t, map[string][][]string{"Hoja1": {{"Nombre", "Tel"}}}, []string{"Hoja1"})

	wb, err := ReadWorkbook("export", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"Hoja1"}, wb.SheetNames)
}

func TestReadWorkbook_CSV(t *testing.T) {
	tests := []struct {
		name    string
		content string
		headers []string
		rows    int
	}{
		{
			name:    "comma delimited",
			content: "Nombre,Telefono,Empresa\nAna,5551112222,Acme\nLuis,600123456,Globex\n",
			headers: []string{"Nombre", "Telefono", "Empresa"},
			rows:    2,
		},
		{
			name:    "semicolon delimited spanish export",
			content: "Nombre;Teléfono;Empresa, S.A.\nAna;555 111 2222;Acme\n;;\nLuis;600123456;Globex\n",
			headers: []string{"Nombre", "Teléfono", "Empresa, S.A."},
			rows:    2,
		},
		{
			name:    "byte order mark and blank header cells",
			content: "\ufeffNombre,,Tel\nAna,x,555111\n",
			headers: []string{"Nombre", "Tel"},
			rows:    1,
		},
		{
			name:    "duplicate headers get suffixes",
			content: "Tel,Tel,Nombre\n1,2,Ana\n",
			headers: []string{"Tel", "Tel_1", "Nombre"},
			rows:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wb, err := ReadWorkbook("contacts.csv", strings.NewReader(tt.content))
			require.NoError(t, err)
			assert.Equal(t, []string{CSVSheetName}, wb.SheetNames)
			assert.Equal(t, tt.headers, wb.Headers(CSVSheetName))
			assert.Equal(t, tt.rows, wb.RowCount(CSVSheetName))
		})
	}
}

func TestReadWorkbook_Errors(t *testing.T) {
	t.Run("empty stream", func(t *testing.T) {
		_, err := ReadWorkbook("empty.csv", strings.NewReader("  \n"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrWorkbookEmpty))
		assert.False(t, errors.Is(err, ErrWorkbookUnreadable))

		var pe *ParseError
		require.True(t, errors.As(err, &pe))
		assert.Equal(t, ParseEmpty, pe.Kind)
		assert.Equal(t, "empty.csv", pe.Filename)
	})

	t.Run("corrupt xlsx", func(t *testing.T) {
		_, err := ReadWorkbook("broken.xlsx", strings.NewReader("definitely not a zip archive"))
		require.Error(t, err)
		assert.True(t, IsWorkbookUnreadable(err))
		assert.False(t, IsWorkbookEmpty(err))
	})

	t.Run("corrupt xls", func(t *testing.T) {
		_, err := ReadWorkbook("broken.xls", strings.NewReader("not a compound document"))
		require.Error(t, err)
		assert.True(t, IsWorkbookUnreadable(err))
	})
}

func TestWorkbook_SheetNotFound(t *testing.T) {
	wb, err := ReadWorkbook("a.csv", strings.NewReader("Nombre,Tel\nAna,5551112222\n"))
	require.NoError(t, err)

	_, err = wb.Sheet("Missing")
	assert.True(t, IsSheetNotFound(err))
	assert.Nil(t, wb.Headers("Missing"))
}
