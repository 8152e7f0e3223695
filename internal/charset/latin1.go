// Package charset converts between UTF-8 and the ISO-8859-1 (Latin-1)
// single-byte charset required by some upstream servers.
package charset

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/charmap"

	"apiproxy-go/internal/model"
)

// Replacement is written for every rune ISO-8859-1 cannot represent.
const Replacement byte = '?'

// Encode transliterates s into ISO-8859-1 bytes. Runes outside the charset,
// and invalid UTF-8 sequences, become one Replacement byte each.
func Encode(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := charmap.ISO8859_1.EncodeRune(r)
		if !ok {
			b = Replacement
		}
		out = append(out, b)
	}
	return out
}

// Decode converts ISO-8859-1 bytes to a UTF-8 string. Every byte maps to a
// rune, so decoding cannot fail.
func Decode(b []byte) (string, error) {
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode iso-8859-1: %w", err)
	}
	return string(s), nil
}

// EncodeParams joins params as key=value pairs separated by '&' and encodes
// the result as ISO-8859-1. Keys and values are not percent-encoded.
func EncodeParams(params model.Params) []byte {
	var buf bytes.Buffer
	for i, kv := range params {
		if i > 0 {
			buf.WriteByte('&')
		}
		buf.Write(Encode(kv.Key))
		buf.WriteByte('=')
		buf.Write(Encode(kv.Value))
	}
	return buf.Bytes()
}
