package logstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	rec := NewRecord(at("2024-05-01 10:00:00"), submission(t, `{
		"public_ip": "1.2.3.4",
		"os": "Android 14",
		"gpuVendor": "Qualcomm",
		"gpu": "Adreno 740",
		"cpuCores": 8,
		"city": "Shanghai"
	}`))
	rec.Position = 3

	got := Summarize(rec)
	assert.Equal(t, 3, got.Position)
	assert.Equal(t, "2024-05-01 10:00:00", got.Time)
	assert.Equal(t, "1.2.3.4", got.IP)
	assert.Equal(t, PlatformAndroid, got.PlatformClass)
	assert.Equal(t, "Qualcomm Adreno 740", got.GPU)
	assert.Equal(t, "8", got.CPUCores)
	assert.Equal(t, "Shanghai", got.City)
	assert.Equal(t, NotAvailable, got.Lat)
	assert.Equal(t, "#", got.MapURL)
}

func TestSummarize_MissingGPU(t *testing.T) {
	got := Summarize(NewRecord(at("2024-05-01 10:00:00"), nil))
	assert.Equal(t, "N/A N/A", got.GPU)
	assert.Equal(t, PlatformUnknown, got.PlatformClass)
}

func TestComputeStats(t *testing.T) {
	records := []Record{
		NewRecord(at("2024-05-02 08:00:00"), submission(t, `{"public_ip": "10.0.0.1", "latitude": 31.2, "longitude": 121.5}`)),
		NewRecord(at("2024-05-02 09:00:00"), submission(t, `{"public_ip": "10.0.0.1"}`)),
		NewRecord(at("2024-05-01 09:00:00"), submission(t, `{"public_ip": "10.0.0.2"}`)),
		NewRecord(at("2024-05-01 09:00:00"), nil),
	}

	got := ComputeStats(records, at("2024-05-02 23:00:00"))
	assert.Equal(t, Stats{Total: 4, UniqueIPs: 2, Today: 2, Located: 1}, got)
}

func TestComputeStats_Empty(t *testing.T) {
	assert.Equal(t, Stats{}, ComputeStats(nil, at("2024-05-02 23:00:00")))
}
