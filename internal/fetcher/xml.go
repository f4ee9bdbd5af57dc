package fetcher

import (
	"context"
	"encoding/xml"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// StreamXML decodes every element whose local name matches element (case
// insensitive) into a T and delivers it on the returned channel. Non-UTF-8
// documents are transcoded via their declared charset; government list
// feeds still ship ISO-8859-1 and Windows-1252 occasionally. The error
// channel carries at most one error; both channels close when decoding
// ends.
func StreamXML[T any](ctx context.Context, r io.Reader, element string) (<-chan T, <-chan error) {
	out := make(chan T, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		dec := xml.NewDecoder(r)
		dec.CharsetReader = charsetReader

		for {
			if err := ctx.Err(); err != nil {
				errs <- eris.Wrap(err, "xml: cancelled")
				return
			}

			tok, err := dec.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				errs <- eris.Wrap(err, "xml: read token")
				return
			}

			start, ok := tok.(xml.StartElement)
			if !ok || !strings.EqualFold(start.Name.Local, element) {
				continue
			}

			var item T
			if err := dec.DecodeElement(&item, &start); err != nil {
				errs <- eris.Wrap(err, "xml: decode element")
				return
			}

			select {
			case out <- item:
			case <-ctx.Done():
				errs <- eris.Wrap(ctx.Err(), "xml: cancelled")
				return
			}
		}
	}()

	return out, errs
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "xml: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(input), nil
}
