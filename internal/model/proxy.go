// Package model defines shared types for the gateway.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ProxyRequest describes one call through the gateway.
type ProxyRequest struct {
	Server         string `json:"server" validate:"required"`
	Method         string `json:"method" validate:"required"`
	Option         string `json:"option"`
	Representation string `json:"representation" validate:"required"`
	LegacyEncoding bool   `json:"legacyEncoding"`
	Parameters     Params `json:"parameters"`
}

// wireRequest accepts both the current field names and the Spanish names
// sent by clients of the legacy gateway. When both are present the current
// name wins.
type wireRequest struct {
	Server         *string `json:"server"`
	Method         *string `json:"method"`
	Option         *string `json:"option"`
	Representation *string `json:"representation"`
	LegacyEncoding *bool   `json:"legacyEncoding"`
	Parameters     *Params `json:"parameters"`

	Servidor        *string `json:"servidor"`
	Metodo          *string `json:"metodo"`
	Opcion          *string `json:"opcion"`
	Body            *string `json:"body"`
	CorregirISO8859 *bool   `json:"corregirISO8859"`
	Parametros      *Params `json:"parametros"`
}

// UnmarshalJSON decodes a request written with either set of field names.
// Field names match case-insensitively.
func (r *ProxyRequest) UnmarshalJSON(data []byte) error {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*r = ProxyRequest{
		Server:         pick(w.Server, w.Servidor),
		Method:         pick(w.Method, w.Metodo),
		Option:         pick(w.Option, w.Opcion),
		Representation: pick(w.Representation, w.Body),
		LegacyEncoding: pick(w.LegacyEncoding, w.CorregirISO8859),
		Parameters:     pick(w.Parameters, w.Parametros),
	}
	return nil
}

func pick[T any](current, legacy *T) T {
	if current != nil {
		return *current
	}
	if legacy != nil {
		return *legacy
	}
	var zero T
	return zero
}

// UpstreamResponse is the fully buffered response from the upstream server.
type UpstreamResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// RenderedResponse is what the gateway sends back to the caller.
type RenderedResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
	// Filename is set only for binary downloads.
	Filename string
}

// Param is a single key/value pair.
type Param struct {
	Key   string
	Value string
}

// Params is an ordered string mapping. Iteration follows insertion order,
// which for decoded JSON is the order keys appear in the document.
type Params []Param

// Len returns the number of pairs.
func (p Params) Len() int { return len(p) }

// Set replaces the value of an existing key in place or appends a new pair.
func (p *Params) Set(key, value string) {
	for i := range *p {
		if (*p)[i].Key == key {
			(*p)[i].Value = value
			return
		}
	}
	*p = append(*p, Param{Key: key, Value: value})
}

// UnmarshalJSON decodes a JSON object preserving key order. Scalars are
// taken as their literal text and null as the empty string.
func (p *Params) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("parameters: invalid JSON")
	}
	res := gjson.ParseBytes(data)
	switch {
	case res.Type == gjson.Null:
		*p = nil
		return nil
	case !res.IsObject():
		return fmt.Errorf("parameters: expected object, got %s", res.Type)
	}

	out := Params{}
	var err error
	res.ForEach(func(key, value gjson.Result) bool {
		if value.IsObject() || value.IsArray() {
			err = fmt.Errorf("parameters: value of %q must be a scalar", key.String())
			return false
		}
		out.Set(key.String(), value.String())
		return true
	})
	if err != nil {
		return err
	}
	*p = out
	return nil
}

// MarshalJSON encodes the pairs as a JSON object in order.
func (p Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
