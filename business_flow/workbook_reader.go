package businessflow

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// CSVSheetName is the single sheet name given to delimited text files
const CSVSheetName = "Sheet1"

var (
	zipSignature  = []byte("PK\x03\x04")
	ole2Signature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
	utf8BOM       = []byte{0xEF, 0xBB, 0xBF}
)

// Workbook is a parsed spreadsheet: sheet names in file order and one
// row-major grid of cell strings per sheet. Row 0 of every grid is the header.
type Workbook struct {
	SheetNames []string              `json:"sheet_names"`
	Grids      map[string][][]string `json:"grids"`
}

// Sheet returns the grid of the named sheet
func (w *Workbook) Sheet(name string) ([][]string, error) {
	grid, ok := w.Grids[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	return grid, nil
}

// Headers returns the non-empty header keys of the sheet, in column order.
// Unknown sheets yield nil.
func (w *Workbook) Headers(sheet string) []string {
	grid := w.Grids[sheet]
	if len(grid) == 0 {
		return nil
	}
	var headers []string
	for _, key := range headerKeys(grid[0]) {
		if key != "" {
			headers = append(headers, key)
		}
	}
	return headers
}

// RowCount returns the number of data rows below the header
func (w *Workbook) RowCount(sheet string) int {
	grid := w.Grids[sheet]
	if len(grid) == 0 {
		return 0
	}
	return len(grid) - 1
}

// headerKeys returns one key per column of the header row. Blank headers get
// "" and repeated headers are suffixed _1, _2, ... so every key is unique.
func headerKeys(row []string) []string {
	keys := make([]string, len(row))
	seen := make(map[string]int, len(row))
	for i, cell := range row {
		h := strings.TrimSpace(cell)
		if h == "" {
			continue
		}
		key := h
		if n, dup := seen[h]; dup {
			for {
				n++
				key = h + "_" + strconv.Itoa(n)
				if _, taken := seen[key]; !taken {
					break
				}
			}
			seen[h] = n
		}
		if _, ok := seen[key]; !ok {
			seen[key] = 0
		}
		keys[i] = key
	}
	return keys
}

// ReadWorkbook decodes an uploaded spreadsheet. The format is chosen by file
// extension; unknown extensions are sniffed from the content.
func ReadWorkbook(filename string, r io.Reader) (*Workbook, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Kind: ParseUnreadable, Filename: filename, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Kind: ParseEmpty, Filename: filename}
	}

	var wb *Workbook
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		wb, err = readXLSX(data)
	case ".xls":
		wb, err = readXLS(data)
	case ".csv", ".txt":
		wb, err = readCSV(data)
	default:
		switch {
		case bytes.HasPrefix(data, zipSignature):
			wb, err = readXLSX(data)
		case bytes.HasPrefix(data, ole2Signature):
			wb, err = readXLS(data)
		default:
			wb, err = readCSV(data)
		}
	}
	if err != nil {
		return nil, &ParseError{Kind: ParseUnreadable, Filename: filename, Err: err}
	}
	if len(wb.SheetNames) == 0 {
		return nil, &ParseError{Kind: ParseEmpty, Filename: filename}
	}
	return wb, nil
}

func newWorkbook() *Workbook {
	return &Workbook{Grids: make(map[string][][]string)}
}

func (w *Workbook) addSheet(name string, rows [][]string) {
	w.SheetNames = append(w.SheetNames, name)
	w.Grids[name] = dropBlankRows(rows)
}

func readXLSX(data []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	wb := newWorkbook()
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		wb.addSheet(name, rows)
	}
	return wb, nil
}

func readXLS(data []byte) (wb *Workbook, err error) {
	// the BIFF decoder panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			wb, err = nil, fmt.Errorf("legacy workbook decode failed: %v", r)
		}
	}()

	book, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}

	wb = newWorkbook()
	for i := 0; i < book.NumSheets(); i++ {
		sheet := book.GetSheet(i)
		if sheet == nil {
			continue
		}
		var rows [][]string
		for ri := 0; ri <= int(sheet.MaxRow); ri++ {
			row := sheet.Row(ri)
			if row == nil {
				rows = append(rows, nil)
				continue
			}
			cells := make([]string, row.LastCol())
			for ci := row.FirstCol(); ci < row.LastCol(); ci++ {
				cells[ci] = row.Col(ci)
			}
			rows = append(rows, cells)
		}
		wb.addSheet(sheet.Name, rows)
	}
	return wb, nil
}

func readCSV(data []byte) (*Workbook, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bufio.NewReader(bytes.NewReader(data)))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, record)
	}

	wb := newWorkbook()
	wb.addSheet(CSVSheetName, rows)
	return wb, nil
}

// detectDelimiter picks ';' when the header line has more semicolons than commas
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

func dropBlankRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		if !isBlankRow(row) {
			out = append(out, row)
		}
	}
	return out
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
