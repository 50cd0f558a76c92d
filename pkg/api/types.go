// Package api contains shared types for the collector HTTP API.
package api

// --- Collection API Types ---

// Submission statuses returned by POST /api/save-log.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// SaveLogResponse is the response for POST /api/save-log.
type SaveLogResponse struct {
	Status string `json:"status"`
}

// IPInfoResponse is the response for GET /api/ip-info.
// Unknown values are reported as "N/A".
type IPInfoResponse struct {
	PublicIP string `json:"public_ip"`
	Country  string `json:"country"`
	Region   string `json:"region"`
	City     string `json:"city"`
	Loc      string `json:"loc"`
	Timezone string `json:"timezone"`
	ISP      string `json:"isp"`
}

// --- Admin API Types ---

// LogEntry is one fingerprint record shaped for the admin surfaces.
type LogEntry struct {
	Position      int    `json:"position"`
	Time          string `json:"time"`
	IP            string `json:"ip"`
	Lat           string `json:"lat"`
	Lng           string `json:"lng"`
	MapURL        string `json:"map_url"`
	DeviceType    string `json:"device_type"`
	Browser       string `json:"browser"`
	OS            string `json:"os"`
	Platform      string `json:"platform"`
	PlatformClass string `json:"platform_class"`
	CPUCores      string `json:"cpu_cores"`
	DeviceMemory  string `json:"device_memory"`
	Resolution    string `json:"resolution"`
	GPU           string `json:"gpu"`
	Country       string `json:"country"`
	Region        string `json:"region"`
	City          string `json:"city"`
	ISP           string `json:"isp"`
	Timezone      string `json:"timezone"`
}

// LogsResponse is the response for GET /api/admin/logs.
// The counters describe the whole log; Logs holds the filtered view.
type LogsResponse struct {
	Logs      []LogEntry `json:"logs"`
	TotalLogs int        `json:"total_logs"`
	UniqueIPs int        `json:"unique_ips"`
	TodayLogs int        `json:"today_logs"`
	Matched   int        `json:"matched"`
}

// DeleteLogsRequest is the request body for POST /api/admin/logs/delete.
// Positions are append-order positions as reported in LogEntry.Position.
type DeleteLogsRequest struct {
	Positions []int `json:"positions"`
}

// DeleteLogsResponse is the response for POST /api/admin/logs/delete.
type DeleteLogsResponse struct {
	Deleted int `json:"deleted"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// --- GeoJSON Types (RFC 7946) ---

// GeoJSONFeatureCollection is a GeoJSON FeatureCollection.
type GeoJSONFeatureCollection struct {
	Type     string           `json:"type"` // Always "FeatureCollection"
	Features []GeoJSONFeature `json:"features"`
}

// GeoJSONFeature is a GeoJSON Feature with Point geometry.
type GeoJSONFeature struct {
	Type       string         `json:"type"` // Always "Feature"
	Geometry   GeoJSONPoint   `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// GeoJSONPoint is a GeoJSON Point geometry.
type GeoJSONPoint struct {
	Type        string    `json:"type"`        // Always "Point"
	Coordinates []float64 `json:"coordinates"` // [longitude, latitude], WGS-84
}
