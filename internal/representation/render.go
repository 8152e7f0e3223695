package representation

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/beevik/etree"

	"apiproxy-go/internal/charset"
	"apiproxy-go/internal/model"
)

// ErrMalformedResponse is returned when an upstream body cannot be parsed as
// the requested representation.
var ErrMalformedResponse = errors.New("malformed upstream response")

// filenameLayout is YYYYMMDDHHMMSS.
const filenameLayout = "20060102150405"

// Renderer transcodes upstream responses. It holds no per-request state.
type Renderer struct {
	now func() time.Time
}

// NewRenderer creates a Renderer. now supplies the timestamp for binary
// download filenames; nil means time.Now.
func NewRenderer(now func() time.Time) *Renderer {
	if now == nil {
		now = time.Now
	}
	return &Renderer{now: now}
}

// Render produces the outward response for rep. The status code is always
// the upstream status code.
func (r *Renderer) Render(rep Representation, legacy bool, up *model.UpstreamResponse) (*model.RenderedResponse, error) {
	if !rep.Valid() {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidRepresentation, rep)
	}

	out := &model.RenderedResponse{StatusCode: up.StatusCode}

	if rep == Binary {
		out.Body = up.Body
		out.ContentType = binaryContentType(up.ContentType)
		out.Filename = "response_" + r.now().Format(filenameLayout)
		return out, nil
	}

	text, err := decodeBody(up.Body, legacy && rep.honorsLegacyCharset())
	if err != nil {
		return nil, err
	}

	switch rep {
	case XML:
		canonical, err := canonicalXML(text)
		if err != nil {
			return nil, err
		}
		out.Body = []byte(canonical)
		out.ContentType = ContentTypeXML
	case JSON:
		out.Body = []byte(text)
		out.ContentType = ContentTypeJSON
	case Text:
		out.Body = []byte(text)
		out.ContentType = ContentTypeText
	case HTML:
		out.Body = []byte(text)
		out.ContentType = ContentTypeHTML
	}
	return out, nil
}

func decodeBody(body []byte, latin1 bool) (string, error) {
	if latin1 {
		return charset.Decode(body)
	}
	return string(bytes.ToValidUTF8(body, []byte("\uFFFD"))), nil
}

// canonicalXML parses s as a single XML document and re-serializes its root
// element indented by two spaces. The XML declaration is not kept.
func canonicalXML(s string) (string, error) {
	doc := etree.NewDocument()
	// The body is already decoded to UTF-8, so a declared encoding such as
	// ISO-8859-1 must not trigger a second conversion.
	doc.ReadSettings.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	// Keep repeated attributes so checkElement can reject them.
	doc.ReadSettings.PreserveDuplicateAttrs = true
	if err := doc.ReadFromString(s); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	if n := len(doc.ChildElements()); n != 1 {
		return "", fmt.Errorf("%w: expected one root element, found %d", ErrMalformedResponse, n)
	}
	for _, tok := range doc.Child {
		if cd, ok := tok.(*etree.CharData); ok && strings.TrimSpace(cd.Data) != "" {
			return "", fmt.Errorf("%w: text outside root element", ErrMalformedResponse)
		}
	}

	if err := checkElement(doc.Root()); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	out := etree.NewDocument()
	out.SetRoot(doc.Root().Copy())
	out.Indent(2)
	res, err := out.WriteToString()
	if err != nil {
		return "", fmt.Errorf("serialize xml: %w", err)
	}
	return strings.TrimSpace(res), nil
}

// checkElement enforces the well-formedness rules encoding/xml does not:
// unique attribute names and declared namespace prefixes.
func checkElement(e *etree.Element) error {
	if needsDeclaration(e.Space) && e.NamespaceURI() == "" {
		return fmt.Errorf("element <%s>: undeclared namespace prefix %q", e.FullTag(), e.Space)
	}

	seen := make(map[string]bool, len(e.Attr))
	for i := range e.Attr {
		a := &e.Attr[i]
		name := a.FullKey()
		if seen[name] {
			return fmt.Errorf("element <%s>: duplicate attribute %q", e.FullTag(), name)
		}
		seen[name] = true
		if needsDeclaration(a.Space) && a.Space != "xmlns" && a.NamespaceURI() == "" {
			return fmt.Errorf("element <%s>: undeclared namespace prefix %q", e.FullTag(), a.Space)
		}
	}

	for _, child := range e.ChildElements() {
		if err := checkElement(child); err != nil {
			return err
		}
	}
	return nil
}

// needsDeclaration reports whether prefix needs an xmlns declaration in scope.
func needsDeclaration(prefix string) bool {
	return prefix != "" && prefix != "xml"
}

func binaryContentType(header string) string {
	if header == "" {
		return ContentTypeOctetStream
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil || mt == "" {
		return ContentTypeOctetStream
	}
	return mt
}
