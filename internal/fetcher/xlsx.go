package fetcher

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects the sheet and data region of a workbook.
type XLSXOptions struct {
	SheetName string // default: first sheet
	SkipRows  int    // rows before the data, e.g. 1 when row one is a header
}

// SheetData is the extracted rectangular content of one sheet.
type SheetData struct {
	Header []string   // the row immediately above the data, captured when SkipRows > 0
	Rows   [][]string // data rows after SkipRows
}

// ReadXLSX loads one sheet of a workbook. Watchlist spreadsheets run to a
// few thousand rows at most, so the whole sheet is materialized rather
// than streamed.
func ReadXLSX(path string, opts XLSXOptions) (*SheetData, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open workbook")
	}

	sheet, err := pickSheet(f, opts.SheetName)
	if err != nil {
		return nil, err
	}

	// The last skipped row is taken as the column header; lists that put a
	// title banner above it just skip one more row.
	data := &SheetData{}
	for i, row := range sheet.Rows {
		cells := cellStrings(row)
		if i == opts.SkipRows-1 {
			data.Header = cells
		}
		if i < opts.SkipRows {
			continue
		}
		data.Rows = append(data.Rows, cells)
	}
	return data, nil
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func cellStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		cells[i] = c.String()
	}
	return cells
}
