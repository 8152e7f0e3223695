package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/net/http/httpguts"

	"apiproxy-go/internal/charset"
	"apiproxy-go/internal/model"
)

// ErrTransport wraps failures reaching the upstream server.
var ErrTransport = errors.New("upstream transport failed")

// ErrInvalidMethod is returned for methods that are not valid HTTP tokens.
var ErrInvalidMethod = errors.New("invalid HTTP method")

const (
	contentTypeForm = "application/x-www-form-urlencoded"
	contentTypeJSON = "application/json"
	userAgent       = "apiproxy-go/1.0"
)

// Transport sends one request and returns the fully buffered response.
type Transport interface {
	Send(ctx context.Context, method, url string, header http.Header, body []byte) (*model.UpstreamResponse, error)
}

// Dispatch builds the outbound request and sends it through the transport.
// Only POST and PUT carry a body. With legacy set, non-empty params become
// ISO-8859-1 form bytes; otherwise any params present, even an empty
// object, become a JSON object. A nil params sends no body. method must
// already be uppercase.
func (s *ProxyService) Dispatch(ctx context.Context, method, url string, params model.Params, legacy bool) (*model.UpstreamResponse, error) {
	if !httpguts.ValidHeaderFieldName(method) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, method)
	}

	header := http.Header{}
	header.Set("User-Agent", userAgent)

	var body []byte
	switch {
	case !hasBody(method):
	case legacy:
		if params.Len() > 0 {
			body = charset.EncodeParams(params)
			header.Set("Content-Type", contentTypeForm)
		}
	case params != nil:
		b, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode parameters: %w", err)
		}
		body = b
		header.Set("Content-Type", contentTypeJSON)
	}

	resp, err := s.transport.Send(ctx, method, url, header, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return resp, nil
}

func hasBody(method string) bool {
	return method == http.MethodPost || method == http.MethodPut
}
