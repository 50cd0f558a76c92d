package logstore

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locplace/fingerprint/internal/geo"
)

func TestRawField(t *testing.T) {
	tests := []struct {
		raw     string
		wantSet bool
		want    string
	}{
		{``, false, NotAvailable},
		{`null`, false, NotAvailable},
		{`"N/A"`, false, NotAvailable},
		{`""`, true, ""},
		{`"Chrome 120"`, true, "Chrome 120"},
		{`8`, true, "8"},
		{`1.5`, true, "1.5"},
		{`true`, true, "true"},
		{`"<b>&</b>"`, true, "<b>&</b>"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			f := RawField(json.RawMessage(tt.raw))
			assert.Equal(t, tt.wantSet, f.IsSet())
			assert.Equal(t, tt.want, f.String())
		})
	}
}

func TestField_Float(t *testing.T) {
	tests := []struct {
		raw    string
		want   float64
		wantOK bool
	}{
		{`31.22114`, 31.22114, true},
		{`"121.544090"`, 121.54409, true},
		{`" 39.9 "`, 39.9, true},
		{`"N/A"`, 0, false},
		{`"north"`, 0, false},
		{`true`, 0, false},
		{`null`, 0, false},
		{`"NaN"`, 0, false},
		{`"Inf"`, 0, false},
		{`"-Infinity"`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := RawField(json.RawMessage(tt.raw)).Float()
			assert.Equal(t, tt.wantOK, ok)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestNewRecord(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 999_000_000, time.Local)
	rec := NewRecord(now, submission(t, `{
		"timestamp": "1999-01-01 00:00:00",
		"browser": "Firefox 125",
		"batteryLevel": null,
		"surprise": 1
	}`))

	assert.Equal(t, "2024-05-01 10:00:00", rec.Timestamp.String())
	assert.Equal(t, "Firefox 125", rec.Browser.String())
	assert.False(t, rec.BatteryLevel.IsSet())
	assert.Nil(t, rec.Extra)
	assert.False(t, rec.Get("surprise").IsSet())
}

func TestRecord_NARoundTrip(t *testing.T) {
	rec := NewRecord(at("2024-05-01 10:00:00"), nil)

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var m map[string]string
	require.NoError(t, json.Unmarshal(data, &m))
	for _, k := range Keys()[1:] {
		assert.Equal(t, NotAvailable, m[k], k)
	}

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.False(t, back.GPU.IsSet())
	assert.Equal(t, rec.Timestamp.String(), back.Timestamp.String())
}

func TestRecord_MarshalKeyOrder(t *testing.T) {
	rec := NewRecord(at("2024-05-01 10:00:00"), nil)
	rec.Extra = map[string]json.RawMessage{"zeta": json.RawMessage(`1`), "alpha": json.RawMessage(`2`)}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	text := string(data)

	last := -1
	for _, k := range append(Keys(), "alpha", "zeta") {
		i := strings.Index(text, `"`+k+`":`)
		require.GreaterOrEqual(t, i, 0, k)
		assert.Greater(t, i, last, k)
		last = i
	}
}

func TestRecord_UnparseableTimestampKept(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp": "sometime"}`), &rec))

	assert.False(t, rec.Timestamp.Valid())
	assert.Equal(t, "sometime", rec.Timestamp.String())

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timestamp":"sometime"`)
}

func TestRecord_NonStringTimestampKept(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"timestamp": 1714557600}`), &rec))

	assert.False(t, rec.Timestamp.Valid())
	assert.Equal(t, "1714557600", rec.Timestamp.String())

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"timestamp":1714557600`)
}

func TestRecord_NonFiniteCoordinateNotLocated(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"latitude": "NaN", "longitude": "121.47"}`), &rec))

	_, ok := rec.Coordinate()
	assert.False(t, ok)
	assert.Equal(t, geo.RawMarkerURL("121.47", "NaN"), rec.MapURL())
}

func TestRecord_MapURL(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "no location",
			body: `{}`,
			want: "#",
		},
		{
			name: "latitude only",
			body: `{"latitude": 39.9}`,
			want: "#",
		},
		{
			name: "inside China converted",
			body: `{"latitude": 39.90923, "longitude": 116.397428}`,
			want: "https://uri.amap.com/marker?position=116.403672,39.910634&name=当前位置&coordinate=gaode",
		},
		{
			name: "outside China unchanged",
			body: `{"latitude": "48.858370", "longitude": "2.294481"}`,
			want: "https://uri.amap.com/marker?position=2.294481,48.858370&name=当前位置&coordinate=gaode",
		},
		{
			name: "unparseable kept raw",
			body: `{"latitude": "north", "longitude": "east"}`,
			want: "https://uri.amap.com/marker?position=east,north&name=当前位置&coordinate=gaode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecord(at("2024-05-01 10:00:00"), submission(t, tt.body))
			assert.Equal(t, tt.want, rec.MapURL())
		})
	}
}
