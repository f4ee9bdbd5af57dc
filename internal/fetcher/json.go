package fetcher

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"unicode"

	"github.com/rotisserie/eris"
)

// StreamJSON decodes a JSON source into records of type T and delivers
// them on the returned channel. Both a top-level array ([{...},{...}])
// and newline-delimited objects (the NDJSON form some list publishers
// export) are accepted; the shape is sniffed from the first byte. The
// error channel carries at most one error; both channels close when
// decoding ends.
func StreamJSON[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	out := make(chan T, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		br := bufio.NewReader(r)
		isArray, err := startsWithArray(br)
		if err == io.EOF {
			return // empty input, no records
		}
		if err != nil {
			errs <- eris.Wrap(err, "json: read input")
			return
		}

		dec := json.NewDecoder(br)
		if isArray {
			if _, err := dec.Token(); err != nil {
				errs <- eris.Wrap(err, "json: read array open")
				return
			}
		}

		for {
			if isArray && !dec.More() {
				break
			}

			var item T
			if err := dec.Decode(&item); err != nil {
				if !isArray && err == io.EOF {
					return
				}
				errs <- eris.Wrap(err, "json: decode record")
				return
			}

			select {
			case out <- item:
			case <-ctx.Done():
				errs <- eris.Wrap(ctx.Err(), "json: cancelled")
				return
			}
		}

		// Trailing ']' of the array form.
		if _, err := dec.Token(); err != nil && err != io.EOF {
			errs <- eris.Wrap(err, "json: read array close")
		}
	}()

	return out, errs
}

// startsWithArray reports whether the first non-space byte is '[',
// leaving it unread. io.EOF means the input held nothing but whitespace.
func startsWithArray(br *bufio.Reader) (bool, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return false, err
		}
		if unicode.IsSpace(rune(b)) {
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return false, err
		}
		return b == '[', nil
	}
}
