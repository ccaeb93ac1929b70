package ndv

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/Iron-Ham/ndvlink/internal/errors"
)

// Codepage is a resolved single-byte client codepage.
type Codepage struct {
	// Name is the name announced to the server: the preferred MIME name
	// when the registry has one, the IANA name otherwise.
	Name    string
	charmap *charmap.Charmap
}

// ResolveCodepage looks up name in the IANA registry and accepts it only if
// it is a single-byte codepage. Multi-byte encodings are rejected by the
// server with a codepage mismatch, so they are refused here before any
// connection is attempted.
func ResolveCodepage(name string) (Codepage, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultClientCodepage
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return Codepage{}, errors.NewValidationError("unknown client codepage").
			WithField("client_codepage").WithValue(name).WithCause(errors.ErrUnsupportedCodepage)
	}

	cm, ok := enc.(*charmap.Charmap)
	if !ok {
		return Codepage{}, errors.NewValidationError("client codepage must be single-byte").
			WithField("client_codepage").WithValue(name).WithCause(errors.ErrUnsupportedCodepage)
	}

	return Codepage{Name: announcedName(enc, name), charmap: cm}, nil
}

// announcedName prefers the MIME name ("ISO-8859-1") over the IANA registry
// name ("ISO_8859-1:1987"). EBCDIC pages such as IBM037 have no MIME entry.
func announcedName(enc encoding.Encoding, fallback string) string {
	if n, err := ianaindex.MIME.Name(enc); err == nil && n != "" {
		return n
	}
	if n, err := ianaindex.IANA.Name(enc); err == nil && n != "" {
		return n
	}
	return fallback
}

// CheckLines returns an error naming the first line containing a character
// the codepage cannot represent.
func (c Codepage) CheckLines(lines []string) error {
	if c.charmap == nil {
		return nil
	}
	enc := c.charmap.NewEncoder()
	for i, line := range lines {
		if _, err := enc.String(line); err != nil {
			return fmt.Errorf("line %d: %w (%s)", i+1, errors.ErrUnrepresentableText, c.Name)
		}
	}
	return nil
}
