// Package logstore persists fingerprint records as a single JSON array and
// provides the read, sort, filter and shaping logic the admin surfaces share.
package logstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/locplace/fingerprint/internal/geo"
)

// TimestampLayout is the fixed-width local time format stored in the log.
const TimestampLayout = "2006-01-02 15:04:05"

// Timestamp is a record capture time. Values that do not match
// TimestampLayout keep their original JSON.
type Timestamp struct {
	Time time.Time
	raw  Field
}

// NewTimestamp returns t truncated to whole seconds in local time.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.Local().Truncate(time.Second)}
}

// ParseTimestamp parses s as local time in TimestampLayout.
func ParseTimestamp(s string) Timestamp {
	if s == "" {
		return Timestamp{}
	}
	t, err := time.ParseInLocation(TimestampLayout, s, time.Local)
	if err != nil {
		return Timestamp{raw: StringField(s)}
	}
	return Timestamp{Time: t}
}

// Valid reports whether the timestamp was parsed into a time value.
func (t Timestamp) Valid() bool {
	return !t.Time.IsZero()
}

// String renders the timestamp in TimestampLayout, the original text for
// unparseable values, or "N/A" when unset.
func (t Timestamp) String() string {
	if t.Valid() {
		return t.Time.Format(TimestampLayout)
	}
	return t.raw.String()
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Valid() {
		return encodeString(t.Time.Format(TimestampLayout)), nil
	}
	return t.raw.MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	f := RawField(b)
	if !f.IsSet() {
		*t = Timestamp{}
		return nil
	}
	if f.raw[0] == '"' {
		if ts := ParseTimestamp(f.Text()); ts.Valid() {
			*t = ts
			return nil
		}
	}
	*t = Timestamp{raw: f}
	return nil
}

// Record is one captured fingerprint event.
type Record struct {
	Timestamp Timestamp

	// Hardware and platform
	OS           Field
	Platform     Field
	CPUCores     Field
	DeviceMemory Field
	GPUVendor    Field
	GPU          Field
	Resolution   Field
	Viewport     Field
	Browser      Field

	// Network identity and location
	PublicIP            Field
	City                Field
	Region              Field
	Country             Field
	Latitude            Field
	Longitude           Field
	GeolocationAccuracy Field
	ISP                 Field
	Timezone            Field

	// Display and locale
	ColorDepth          Field
	PixelRatio          Field
	Language            Field
	LanguagePreferences Field
	DeviceType          Field

	// Capabilities and power
	Online         Field
	CookieEnabled  Field
	TouchSupport   Field
	MaxTouchPoints Field
	BatteryLevel   Field
	Charging       Field
	LocalStorage   Field
	SessionStorage Field

	// Extra holds keys this version does not know about, kept for rewrites.
	Extra map[string]json.RawMessage

	// Position is the record's index in the backing array in append order.
	// It is what Delete consumes and is never serialized.
	Position int
}

type namedField struct {
	key   string
	field *Field
}

// fields lists the attributes in on-disk key order.
func (r *Record) fields() []namedField {
	return []namedField{
		{"os", &r.OS},
		{"platform", &r.Platform},
		{"cpuCores", &r.CPUCores},
		{"deviceMemory", &r.DeviceMemory},
		{"gpuVendor", &r.GPUVendor},
		{"gpu", &r.GPU},
		{"resolution", &r.Resolution},
		{"viewport", &r.Viewport},
		{"browser", &r.Browser},
		{"public_ip", &r.PublicIP},
		{"city", &r.City},
		{"region", &r.Region},
		{"country", &r.Country},
		{"latitude", &r.Latitude},
		{"longitude", &r.Longitude},
		{"geolocationAccuracy", &r.GeolocationAccuracy},
		{"isp", &r.ISP},
		{"timezone", &r.Timezone},
		{"colorDepth", &r.ColorDepth},
		{"pixelRatio", &r.PixelRatio},
		{"language", &r.Language},
		{"languagePreferences", &r.LanguagePreferences},
		{"deviceType", &r.DeviceType},
		{"online", &r.Online},
		{"cookieEnabled", &r.CookieEnabled},
		{"touchSupport", &r.TouchSupport},
		{"maxTouchPoints", &r.MaxTouchPoints},
		{"batteryLevel", &r.BatteryLevel},
		{"charging", &r.Charging},
		{"localStorage", &r.LocalStorage},
		{"sessionStorage", &r.SessionStorage},
	}
}

// Keys returns the record keys in on-disk order.
func Keys() []string {
	var r Record
	keys := []string{"timestamp"}
	for _, nf := range r.fields() {
		keys = append(keys, nf.key)
	}
	return keys
}

// NewRecord builds a record from a submitted key/value payload stamped with
// now. Keys missing from the payload are stored as "N/A"; a submitted
// timestamp and unknown keys are ignored.
func NewRecord(now time.Time, submission map[string]json.RawMessage) Record {
	r := Record{Timestamp: NewTimestamp(now)}
	for _, nf := range r.fields() {
		*nf.field = RawField(submission[nf.key])
	}
	return r
}

// Get returns the named attribute, or an unset Field for unknown keys.
func (r Record) Get(key string) Field {
	if key == "timestamp" {
		return StringField(r.Timestamp.String())
	}
	for _, nf := range r.fields() {
		if nf.key == key {
			return *nf.field
		}
	}
	return RawField(r.Extra[key])
}

// MarshalJSON writes the record with every known key in fixed order,
// followed by preserved unknown keys sorted by name.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"timestamp":`)
	ts, _ := r.Timestamp.MarshalJSON() //nolint:errcheck // Never fails
	buf.Write(ts)

	for _, nf := range r.fields() {
		if err := writeMember(&buf, nf.key, *nf.field); err != nil {
			return nil, err
		}
	}

	extra := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, k := range extra {
		if err := writeMember(&buf, k, RawField(r.Extra[k])); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, f Field) error {
	v, err := f.MarshalJSON()
	if err != nil {
		return fmt.Errorf("field %s: %w", key, err)
	}
	buf.WriteByte(',')
	buf.Write(encodeString(key))
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(b []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}

	*r = Record{}
	if err := r.Timestamp.UnmarshalJSON(m["timestamp"]); err != nil {
		return err
	}
	delete(m, "timestamp")

	for _, nf := range r.fields() {
		*nf.field = RawField(m[nf.key])
		delete(m, nf.key)
	}

	if len(m) > 0 {
		r.Extra = m
	}
	return nil
}

// Coordinate returns the reported WGS-84 position when both latitude and
// longitude parse as numbers.
func (r Record) Coordinate() (geo.Coordinate, bool) {
	lat, ok := r.Latitude.Float()
	if !ok {
		return geo.Coordinate{}, false
	}
	lng, ok := r.Longitude.Float()
	if !ok {
		return geo.Coordinate{}, false
	}
	return geo.Coordinate{Lng: lng, Lat: lat}, true
}

// MapURL returns the AMap marker link for the record's reported position.
func (r Record) MapURL() string {
	return geo.MapLink(r.Longitude.Text(), r.Latitude.Text())
}

// PlatformClass is the platform bucket derived from the os and platform fields.
func (r Record) PlatformClass() string {
	return Platform(r.OS.Text(), r.Platform.Text())
}
