package parser

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"

	"github.com/couchcryptid/geo-timeline-etl/internal/domain"
	"golang.org/x/text/encoding/htmlindex"
)

var dtdRe = regexp.MustCompile(`(?i)<!\s*(doctype|entity)`)

// rejectDTD refuses documents carrying a document type or entity declaration.
func rejectDTD(content []byte) error {
	if dtdRe.Match(content) {
		return fmt.Errorf("document type declaration not allowed: %w", domain.ErrMalformedInput)
	}
	return nil
}

// newXMLDecoder returns a strict decoder that understands the non-UTF-8
// encodings common in Japanese exports (Shift_JIS, EUC-JP).
func newXMLDecoder(r io.Reader) *xml.Decoder {
	d := xml.NewDecoder(r)
	d.Strict = true
	d.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, fmt.Errorf("unsupported charset %q: %w", label, err)
		}
		return enc.NewDecoder().Reader(input), nil
	}
	return d
}
