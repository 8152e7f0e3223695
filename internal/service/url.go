package service

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"apiproxy-go/internal/model"
)

// ErrInvalidQuery is returned when a literal query would not survive the
// request line: spaces and control bytes break it, '#' truncates it.
var ErrInvalidQuery = errors.New("invalid query parameter")

// BuildURL concatenates base and option and appends params as a query string.
// Slashes between base and option are not normalized. Unless escape is set,
// keys and values are inserted verbatim, so callers must supply URL-safe
// values; this matches the legacy gateway and permits query injection.
func BuildURL(base, option string, params model.Params, escape bool) string {
	u := base + option
	if params.Len() == 0 {
		return u
	}

	var sb strings.Builder
	sb.WriteString(u)
	sb.WriteByte('?')
	for i, kv := range params {
		if i > 0 {
			sb.WriteByte('&')
		}
		if escape {
			sb.WriteString(url.QueryEscape(kv.Key))
			sb.WriteByte('=')
			sb.WriteString(url.QueryEscape(kv.Value))
			continue
		}
		sb.WriteString(kv.Key)
		sb.WriteByte('=')
		sb.WriteString(kv.Value)
	}
	return sb.String()
}

// checkLiteralQuery rejects params that BuildURL cannot insert verbatim.
func checkLiteralQuery(params model.Params) error {
	for _, kv := range params {
		for _, s := range []string{kv.Key, kv.Value} {
			if i := strings.IndexFunc(s, breaksRequestLine); i >= 0 {
				return fmt.Errorf("%w: %q contains %q", ErrInvalidQuery, kv.Key, s[i])
			}
		}
	}
	return nil
}

func breaksRequestLine(r rune) bool {
	return r <= ' ' || r == 0x7f || r == '#'
}
