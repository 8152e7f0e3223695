// Package representation renders buffered upstream responses into the
// representation a caller asked for.
package representation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRepresentation is returned for names outside the recognized set.
var ErrInvalidRepresentation = errors.New("invalid representation: must be 'xml', 'json', 'text', 'html' or 'binary'")

// Representation is the shape of the outward response.
type Representation int

// Recognized representations. The zero value is not valid.
const (
	XML Representation = iota + 1
	JSON
	Text
	HTML
	Binary
)

// Content types written for each representation. Binary uses the upstream
// content type and falls back to ContentTypeOctetStream.
const (
	ContentTypeXML         = "application/xml"
	ContentTypeJSON        = "application/json"
	ContentTypeText        = "text/plain"
	ContentTypeHTML        = "text/html"
	ContentTypeOctetStream = "application/octet-stream"
)

var names = map[string]Representation{
	"xml":    XML,
	"json":   JSON,
	"text":   Text,
	"html":   HTML,
	"binary": Binary,
}

// Parse maps a case-insensitive name to a Representation.
func Parse(name string) (Representation, error) {
	r, ok := names[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%w: got %q", ErrInvalidRepresentation, name)
	}
	return r, nil
}

func (r Representation) String() string {
	switch r {
	case XML:
		return "xml"
	case JSON:
		return "json"
	case Text:
		return "text"
	case HTML:
		return "html"
	case Binary:
		return "binary"
	}
	return fmt.Sprintf("Representation(%d)", int(r))
}

// Valid reports whether r is one of the recognized representations.
func (r Representation) Valid() bool {
	return r >= XML && r <= Binary
}

// honorsLegacyCharset reports whether the legacy flag switches decoding of
// the upstream body to ISO-8859-1. JSON is always UTF-8 and binary is never
// decoded.
func (r Representation) honorsLegacyCharset() bool {
	return r == XML || r == Text || r == HTML
}
