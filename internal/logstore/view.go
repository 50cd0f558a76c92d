package logstore

import (
	"strings"
	"time"

	"github.com/locplace/fingerprint/pkg/api"
)

// Summarize shapes a record into the row both admin surfaces display.
func Summarize(r Record) api.LogEntry {
	return api.LogEntry{
		Position:      r.Position,
		Time:          r.Timestamp.String(),
		IP:            r.PublicIP.String(),
		Lat:           r.Latitude.String(),
		Lng:           r.Longitude.String(),
		MapURL:        r.MapURL(),
		DeviceType:    r.DeviceType.String(),
		Browser:       r.Browser.String(),
		OS:            r.OS.String(),
		Platform:      r.Platform.String(),
		PlatformClass: r.PlatformClass(),
		CPUCores:      r.CPUCores.String(),
		DeviceMemory:  r.DeviceMemory.String(),
		Resolution:    r.Resolution.String(),
		GPU:           r.GPUVendor.String() + " " + r.GPU.String(),
		Country:       r.Country.String(),
		Region:        r.Region.String(),
		City:          r.City.String(),
		ISP:           r.ISP.String(),
		Timezone:      r.Timezone.String(),
	}
}

// SummarizeAll shapes every record, preserving order.
func SummarizeAll(records []Record) []api.LogEntry {
	entries := make([]api.LogEntry, 0, len(records))
	for _, r := range records {
		entries = append(entries, Summarize(r))
	}
	return entries
}

// Stats are the dashboard counters over a set of records.
type Stats struct {
	Total     int
	UniqueIPs int
	Today     int
	Located   int
}

// ComputeStats counts records, distinct reported IPs, records captured on
// now's calendar day and records carrying a parseable position.
func ComputeStats(records []Record, now time.Time) Stats {
	today := now.Local().Format("2006-01-02")
	ips := make(map[string]struct{})

	s := Stats{Total: len(records)}
	for _, r := range records {
		if r.PublicIP.IsSet() {
			ips[r.PublicIP.String()] = struct{}{}
		}
		if strings.HasPrefix(r.Timestamp.String(), today) {
			s.Today++
		}
		if _, ok := r.Coordinate(); ok {
			s.Located++
		}
	}
	s.UniqueIPs = len(ips)
	return s
}
