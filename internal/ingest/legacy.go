// File path: internal/ingest/legacy.go
package ingest

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"

	"github.com/extrame/xls"
)

var compoundFileSignature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

const (
	cfbSectorSize = 512
	cfbDirEntry   = 128
	cfbEndOfChain = 0xFFFFFFFE

	// BIFF8 sheets have at most 256 columns.
	biffMaxColumns = 256
)

// IsLegacyWorkbook reports whether data starts with the compound file
// signature used by BIFF (.xls) workbooks.
func IsLegacyWorkbook(data []byte) bool {
	return bytes.HasPrefix(data, compoundFileSignature)
}

// LegacyWorkbook adapts a BIFF workbook to Workbook. Sheets are parsed when
// the workbook is opened.
type LegacyWorkbook struct {
	names  []string
	sheets map[string]*xls.WorkSheet
}

// OpenLegacyBytes parses an in-memory .xls workbook. Inputs that are not a
// well-formed compound file return an error wrapping ErrInvalidWorkbook.
func OpenLegacyBytes(data []byte) (wb *LegacyWorkbook, err error) {
	if !IsLegacyWorkbook(data) {
		return nil, fmt.Errorf("%w: missing compound file signature", ErrInvalidWorkbook)
	}
	// The BIFF reader exits the process on some broken sector chains, so the
	// container is walked here first.
	if err := checkCompoundFile(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			wb = nil
			err = fmt.Errorf("%w: %v", ErrInvalidWorkbook, recovered)
		}
	}()
	book, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkbook, err)
	}
	if book == nil || book.NumSheets() == 0 {
		return nil, fmt.Errorf("%w: no worksheets", ErrInvalidWorkbook)
	}
	wb = &LegacyWorkbook{sheets: make(map[string]*xls.WorkSheet, book.NumSheets())}
	for i := 0; i < book.NumSheets(); i++ {
		sheet := book.GetSheet(i)
		if sheet == nil {
			continue
		}
		if _, dup := wb.sheets[sheet.Name]; dup {
			continue
		}
		wb.names = append(wb.names, sheet.Name)
		wb.sheets[sheet.Name] = sheet
	}
	return wb, nil
}

// SheetNames lists the workbook's sheets in tab order.
func (w *LegacyWorkbook) SheetNames() []string {
	if w == nil {
		return nil
	}
	return append([]string(nil), w.names...)
}

// Rows returns the cell text of a sheet, row by row.
func (w *LegacyWorkbook) Rows(sheet string) ([][]string, error) {
	if w == nil {
		return nil, errors.New("workbook not open")
	}
	ws, ok := w.sheets[sheet]
	if !ok {
		return nil, fmt.Errorf("sheet %q not found", sheet)
	}
	grid := make([][]string, 0, int(ws.MaxRow)+1)
	for i := 0; i <= int(ws.MaxRow); i++ {
		grid = append(grid, legacyRow(ws, i))
	}
	return grid, nil
}

// Close is a no-op; the workbook holds no parser resources.
func (w *LegacyWorkbook) Close() error {
	return nil
}

func legacyRow(ws *xls.WorkSheet, index int) (cells []string) {
	// Row panics for rows without any cell record.
	defer func() {
		if recover() != nil {
			cells = nil
		}
	}()
	row := ws.Row(index)
	limit := biffMaxColumns
	// Rows backed by a ROW record know their width; others are scanned.
	if width := row.LastCol(); width > 0 && width < biffMaxColumns {
		limit = width + 1
	}
	cells = make([]string, limit)
	last := -1
	for col := 0; col < limit; col++ {
		cells[col] = row.Col(col)
		if cells[col] != "" {
			last = col
		}
	}
	return cells[:last+1]
}

// checkCompoundFile walks the sector chains the BIFF reader will follow
// (directory, workbook stream, short-stream tables) and rejects any chain
// that leaves the allocation table or loops.
func checkCompoundFile(data []byte) error {
	if len(data) < 3*cfbSectorSize {
		return errors.New("truncated compound file")
	}
	le := binary.LittleEndian
	if le.Uint16(data[0x1C:]) != 0xFFFE || le.Uint16(data[0x1E:]) != 9 {
		return errors.New("unsupported compound file header")
	}
	// Sector reads use 32-bit offsets, wrapping like the reader does.
	sectorAt := func(sid uint32) []byte {
		buf := make([]byte, cfbSectorSize)
		if off := uint32(cfbSectorSize) + sid*cfbSectorSize; int64(off) < int64(len(data)) {
			copy(buf, data[off:])
		}
		return buf
	}
	values := func(sector []byte, n int) []uint32 {
		out := make([]uint32, n)
		for i := range out {
			out[i] = le.Uint32(sector[4*i:])
		}
		return out
	}

	var fat []uint32
	fatSectors := le.Uint32(data[0x2C:])
	for i := uint32(0); i < fatSectors && i < 109; i++ {
		fat = append(fat, values(sectorAt(le.Uint32(data[0x4C+4*i:])), cfbSectorSize/4)...)
	}
	maxSteps := len(data)/cfbSectorSize + 1
	for sid, steps := le.Uint32(data[0x44:]), 0; sid != cfbEndOfChain; steps++ {
		if steps > maxSteps || int64(sid) >= int64(len(data)/cfbSectorSize) {
			return errors.New("corrupt master allocation table")
		}
		sector := sectorAt(sid)
		for _, fatSID := range values(sector, cfbSectorSize/4-1) {
			fat = append(fat, values(sectorAt(fatSID), cfbSectorSize/4)...)
		}
		sid = le.Uint32(sector[cfbSectorSize-4:])
	}

	chain := func(start uint32, table []uint32) ([]uint32, error) {
		var sids []uint32
		for sid := start; sid != cfbEndOfChain; sid = table[sid] {
			if int64(sid) >= int64(len(table)) || len(sids) > len(table) {
				return nil, errors.New("corrupt sector chain")
			}
			sids = append(sids, sid)
		}
		return sids, nil
	}

	dirSectors, err := chain(le.Uint32(data[0x30:]), fat)
	if err != nil {
		return fmt.Errorf("directory: %w", err)
	}
	var book, root []byte
entries:
	for _, sid := range dirSectors {
		sector := sectorAt(sid)
		for off := 0; off < cfbSectorSize; off += cfbDirEntry {
			entry := sector[off : off+cfbDirEntry]
			if entry[66] == 0 {
				break entries
			}
			switch directoryName(entry) {
			case "Workbook", "Book":
				book = entry
			case "Root Entry":
				root = entry
			}
		}
	}
	if book == nil {
		return errors.New("no workbook stream")
	}
	start, size := le.Uint32(book[116:]), le.Uint32(book[120:])
	if size >= le.Uint32(data[0x38:]) {
		if _, err := chain(start, fat); err != nil {
			return fmt.Errorf("workbook stream: %w", err)
		}
		return nil
	}
	if root == nil {
		return errors.New("no root entry")
	}
	if _, err := chain(le.Uint32(root[116:]), fat); err != nil {
		return fmt.Errorf("short stream container: %w", err)
	}
	var shortFAT []uint32
	if sid := le.Uint32(data[0x3C:]); sid != cfbEndOfChain {
		for i := uint32(0); i < le.Uint32(data[0x40:]); i++ {
			shortFAT = append(shortFAT, values(sectorAt(sid), cfbSectorSize/4-1)...)
			if len(shortFAT) > len(data) {
				return errors.New("corrupt short allocation table")
			}
		}
	}
	if _, err := chain(start, shortFAT); err != nil {
		return fmt.Errorf("workbook stream: %w", err)
	}
	return nil
}

func directoryName(entry []byte) string {
	size := int(binary.LittleEndian.Uint16(entry[64:]))
	if size < 2 || size > 64 {
		return ""
	}
	units := make([]uint16, size/2-1)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(entry[2*i:])
	}
	return string(utf16.Decode(units))
}
