package logstore

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NotAvailable is the on-disk marker for an attribute the client did not report.
const NotAvailable = "N/A"

// Field is one optional record attribute. It keeps the submitted JSON value
// (string, number or boolean) verbatim so rewrites are lossless; an unset
// Field serializes as "N/A".
type Field struct {
	raw json.RawMessage
}

// RawField wraps a submitted JSON value. null, empty input and the "N/A"
// marker all produce an unset Field.
func RawField(raw json.RawMessage) Field {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte(`"N/A"`)) {
		return Field{}
	}
	return Field{raw: append(json.RawMessage(nil), raw...)}
}

// StringField returns a Field holding s as a JSON string.
func StringField(s string) Field {
	if s == NotAvailable {
		return Field{}
	}
	return Field{raw: encodeString(s)}
}

// IsSet reports whether the client supplied a value.
func (f Field) IsSet() bool {
	return len(f.raw) > 0
}

// String returns the value for display: string values unquoted, other JSON
// values as written, "N/A" when unset.
func (f Field) String() string {
	if !f.IsSet() {
		return NotAvailable
	}
	return f.text()
}

// Text is like String but returns "" when unset.
func (f Field) Text() string {
	if !f.IsSet() {
		return ""
	}
	return f.text()
}

func (f Field) text() string {
	if f.raw[0] == '"' {
		var s string
		if err := json.Unmarshal(f.raw, &s); err == nil {
			return s
		}
	}
	return string(f.raw)
}

// Float parses the value as a finite decimal number. Numeric strings such as
// "31.221140" are accepted; "NaN" and infinities are not.
func (f Field) Float() (float64, bool) {
	if !f.IsSet() {
		return 0, false
	}
	switch f.raw[0] {
	case 't', 'f', '{', '[':
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(f.text()), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// MarshalJSON implements json.Marshaler.
func (f Field) MarshalJSON() ([]byte, error) {
	if !f.IsSet() {
		return []byte(`"N/A"`), nil
	}
	return f.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Field) UnmarshalJSON(b []byte) error {
	*f = RawField(b)
	return nil
}

// encodeString quotes s without HTML escaping so stored text stays readable.
func encodeString(s string) json.RawMessage {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // Encoding a string cannot fail
	return bytes.TrimRight(buf.Bytes(), "\n")
}
