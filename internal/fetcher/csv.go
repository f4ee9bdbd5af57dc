package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures StreamCSV.
type CSVOptions struct {
	Delimiter rune            // field separator, default ','
	Comment   rune            // lines starting with this rune are skipped (0 = none)
	HasHeader bool            // first record is a header, delivered on HeaderCh
	HeaderCh  chan<- []string // optional destination for the header row
	TrimSpace bool            // trim whitespace around every field
}

// StreamCSV parses r record by record and delivers data rows on the
// returned channel. Watchlist exports are frequently hand-edited, so rows
// with a varying field count and stray quotes are tolerated. The error
// channel carries at most one error; both channels close when parsing
// ends.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rows := make(chan []string, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(rows)
		defer close(errs)

		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.LazyQuotes = true
		if opts.Delimiter != 0 {
			cr.Comma = opts.Delimiter
		}
		if opts.Comment != 0 {
			cr.Comment = opts.Comment
		}

		if opts.HasHeader {
			header, err := cr.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errs <- eris.Wrap(err, "csv: read header")
				return
			}
			if opts.TrimSpace {
				trimFields(header)
			}
			if opts.HeaderCh != nil {
				select {
				case opts.HeaderCh <- header:
				case <-ctx.Done():
					errs <- eris.Wrap(ctx.Err(), "csv: deliver header")
					return
				}
			}
		}

		for {
			if err := ctx.Err(); err != nil {
				errs <- eris.Wrap(err, "csv: cancelled")
				return
			}

			record, err := cr.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errs <- eris.Wrap(err, "csv: read row")
				return
			}
			if opts.TrimSpace {
				trimFields(record)
			}

			select {
			case rows <- record:
			case <-ctx.Done():
				errs <- eris.Wrap(ctx.Err(), "csv: cancelled")
				return
			}
		}
	}()

	return rows, errs
}

func trimFields(record []string) {
	for i, f := range record {
		record[i] = strings.TrimSpace(f)
	}
}
