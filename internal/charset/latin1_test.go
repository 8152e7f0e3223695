package charset

import (
	"bytes"
	"testing"

	"go.uber.org/goleak"

	"apiproxy-go/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []byte
	}{
		{"ascii", "name=abc", []byte("name=abc")},
		{"latin1 accent", "café", []byte{'c', 'a', 'f', 0xE9}},
		{"upper range", "ÿÀ", []byte{0xFF, 0xC0}},
		{"euro replaced", "5€", []byte{'5', '?'}},
		{"cjk replaced per rune", "a日本b", []byte{'a', '?', '?', 'b'}},
		{"emoji replaced", "😀", []byte{'?'}},
		{"invalid utf8", "a\xffb", []byte{'a', '?', 'b'}},
		{"empty", "", []byte{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Encode(tt.in); !bytes.Equal(got, tt.want) {
				t.Errorf("Encode(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []string{"café", "Ñandú ¿qué?", "°±²³µ¶·", "plain ascii", ""} {
		got, err := Decode(Encode(s))
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if got != s {
			t.Errorf("Decode(Encode(%q)) = %q", s, got)
		}
	}
}

func TestRoundTrip_OutsideRepertoireIsDeterministic(t *testing.T) {
	for range 2 {
		got, err := Decode(Encode("price: 10€"))
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		if got != "price: 10?" {
			t.Errorf("Decode(Encode()) = %q, want %q", got, "price: 10?")
		}
	}
}

func TestDecode_AllBytes(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	s, err := Decode(all)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	i := 0
	for _, r := range s {
		if r != rune(i) {
			t.Errorf("rune %d = %U, want %U", i, r, rune(i))
		}
		i++
	}
	if i != 256 {
		t.Errorf("decoded %d runes, want 256", i)
	}
}

func TestEncodeParams(t *testing.T) {
	tests := []struct {
		name   string
		params model.Params
		want   []byte
	}{
		{
			name:   "latin1 values",
			params: model.Params{{Key: "name", Value: "café"}, {Key: "city", Value: "São Paulo"}},
			want:   []byte("name=caf\xe9&city=S\xe3o Paulo"),
		},
		{
			name:   "not percent-encoded",
			params: model.Params{{Key: "q", Value: "a b&c=d"}},
			want:   []byte("q=a b&c=d"),
		},
		{"nil", nil, nil},
		{"empty", model.Params{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeParams(tt.params); !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeParams() = %q, want %q", got, tt.want)
			}
		})
	}
}
