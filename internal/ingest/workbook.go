// File path: internal/ingest/workbook.go
package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ErrInvalidWorkbook indicates the input is not a readable spreadsheet
// container.
var ErrInvalidWorkbook = errors.New("invalid workbook")

var spreadsheetExtensions = []string{".xlsx", ".xls"}

// dateTimeLayout renders date-styled cells the way they appear in stored plans.
const dateTimeLayout = "2006-01-02 15:04:05"

// Workbook exposes the named sheets of a parsed spreadsheet.
type Workbook interface {
	SheetNames() []string
	Rows(sheet string) ([][]string, error)
}

// Opener parses raw upload bytes into a Workbook. The returned closer releases
// parser resources.
type Opener func(data []byte) (Workbook, io.Closer, error)

// ExcelWorkbook adapts an excelize file to Workbook. It is not safe for
// concurrent use.
type ExcelWorkbook struct {
	file      *excelize.File
	date1904  bool
	dateStyle map[int]bool
}

// Open parses an OOXML workbook from r. Inputs that are not a valid container
// return an error wrapping ErrInvalidWorkbook.
func Open(r io.Reader) (*ExcelWorkbook, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	wb := &ExcelWorkbook{file: file, dateStyle: make(map[int]bool)}
	if props, err := file.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		wb.date1904 = *props.Date1904
	}
	return wb, nil
}

// OpenBytes parses an in-memory workbook.
func OpenBytes(data []byte) (*ExcelWorkbook, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrInvalidWorkbook)
	}
	return Open(bytes.NewReader(data))
}

// OpenFile reads and parses the workbook stored at path.
func OpenFile(path string) (Workbook, io.Closer, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, nil, fmt.Errorf("read workbook: %w", err)
	}
	return ExcelOpener(data)
}

// ExcelOpener is the default Opener used by the API. Compound files
// (legacy .xls) are read by the BIFF reader, everything else as OOXML.
func ExcelOpener(data []byte) (Workbook, io.Closer, error) {
	if IsLegacyWorkbook(data) {
		wb, err := OpenLegacyBytes(data)
		if err != nil {
			return nil, nil, err
		}
		return wb, wb, nil
	}
	wb, err := OpenBytes(data)
	if err != nil {
		return nil, nil, err
	}
	return wb, wb, nil
}

// SheetNames lists the workbook's sheets in tab order.
func (w *ExcelWorkbook) SheetNames() []string {
	if w == nil || w.file == nil {
		return nil
	}
	return w.file.GetSheetList()
}

// Rows returns the stored cell values of a sheet, row by row. Number formats
// are not applied, except that date-styled numbers are rendered as
// "2006-01-02 15:04:05" and booleans as True/False.
func (w *ExcelWorkbook) Rows(sheet string) ([][]string, error) {
	if w == nil || w.file == nil {
		return nil, errors.New("workbook not open")
	}
	rows, err := w.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	for r, row := range rows {
		for c, value := range row {
			if value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			if row[c], err = w.cellText(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("cell %s: %w", cell, err)
			}
		}
	}
	return rows, nil
}

func (w *ExcelWorkbook) cellText(sheet, cell, raw string) (string, error) {
	kind, err := w.file.GetCellType(sheet, cell)
	if err != nil {
		return "", err
	}
	switch kind {
	case excelize.CellTypeBool:
		switch raw {
		case "1":
			return "True", nil
		case "0":
			return "False", nil
		}
		return raw, nil
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t.Format(dateTimeLayout), nil
		}
		return raw, nil
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
	default:
		return raw, nil
	}
	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw, nil
	}
	isDate, err := w.isDateStyled(sheet, cell)
	if err != nil || !isDate {
		return raw, err
	}
	t, err := excelize.ExcelDateToTime(serial, w.date1904)
	if err != nil {
		return raw, nil
	}
	return t.Format(dateTimeLayout), nil
}

func (w *ExcelWorkbook) isDateStyled(sheet, cell string) (bool, error) {
	idx, err := w.file.GetCellStyle(sheet, cell)
	if err != nil {
		return false, err
	}
	if isDate, ok := w.dateStyle[idx]; ok {
		return isDate, nil
	}
	isDate := false
	if style, err := w.file.GetStyle(idx); err == nil && style != nil {
		isDate = isDateNumFmt(style.NumFmt, style.CustomNumFmt)
	}
	w.dateStyle[idx] = isDate
	return isDate, nil
}

// isDateNumFmt reports whether a number format displays a date or time.
// Built-in ids follow ECMA-376 plus the CJK and Thai locale ranges.
func isDateNumFmt(id int, custom *string) bool {
	if custom != nil {
		return isDateFormatCode(*custom)
	}
	switch {
	case id >= 14 && id <= 22, id >= 27 && id <= 36, id >= 45 && id <= 47,
		id >= 50 && id <= 58, id >= 71 && id <= 81:
		return true
	}
	return false
}

func isDateFormatCode(code string) bool {
	var b strings.Builder
	quoted, bracket := false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			quoted = !quoted
		case quoted:
		case r == '[':
			bracket = true
		case r == ']':
			bracket = false
		case bracket:
		default:
			b.WriteRune(r)
		}
	}
	return strings.ContainsAny(b.String(), "ydhms")
}

// Close releases the temporary resources held by the parser.
func (w *ExcelWorkbook) Close() error {
	if w == nil || w.file == nil {
		return nil
	}
	return w.file.Close()
}

// IsSpreadsheetName reports whether a file name carries a recognized
// spreadsheet extension.
func IsSpreadsheetName(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, ext := range spreadsheetExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
