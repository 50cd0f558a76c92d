// Package handlers provides HTTP handlers for the collector.
package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/locplace/fingerprint/internal/collector/metrics"
	"github.com/locplace/fingerprint/internal/collector/middleware"
	"github.com/locplace/fingerprint/internal/collector/session"
	"github.com/locplace/fingerprint/internal/export"
	"github.com/locplace/fingerprint/internal/logstore"
	"github.com/locplace/fingerprint/pkg/api"
)

// Admin page paths.
const (
	LoginPath = "/admin"
	HomePath  = "/admin/home"
)

// Template names looked up in AdminHandlers.Pages.
const (
	loginTemplate     = "admin_login.html"
	dashboardTemplate = "admin.html"
)

// wrongPassword is shown on the login page after a failed attempt.
const wrongPassword = "密码错误"

// AdminHandlers contains handlers for the admin dashboard and admin API.
type AdminHandlers struct {
	Store    logstore.Store
	Sessions *session.Manager
	Password string
	Pages    *template.Template
	// SecureCookie marks the session cookie Secure; enable behind TLS.
	SecureCookie bool
	Now          func() time.Time
}

// LoginData is the login page template input.
type LoginData struct {
	Error string
}

// DashboardData is the dashboard template input.
type DashboardData struct {
	Logs      []api.LogEntry
	TotalLogs int
	UniqueIPs int
	TodayLogs int
	Matched   int
	Filter    FilterForm
	// ExportQuery carries the applied filter to the export links.
	ExportQuery string
	Platforms   []string
	Error       string
}

// FilterForm echoes the filter query back into the dashboard form.
type FilterForm struct {
	IP         string
	DeviceType string
	Platform   string
	Date       string
	TimeRange  string
}

// Query encodes the non-empty filter fields as a URL query with a leading
// "?", or returns "" when no filter is set.
func (f FilterForm) Query() string {
	q := url.Values{}
	for k, v := range map[string]string{
		"ip":          f.IP,
		"device_type": f.DeviceType,
		"platform":    f.Platform,
		"date":        f.Date,
		"time_range":  f.TimeRange,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// LoginPage handles GET /admin.
func (h *AdminHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	if h.loggedIn(r) {
		http.Redirect(w, r, HomePath, http.StatusSeeOther)
		return
	}
	h.render(w, http.StatusOK, loginTemplate, LoginData{})
}

// Login handles POST /admin.
func (h *AdminHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if h.loggedIn(r) {
		http.Redirect(w, r, HomePath, http.StatusSeeOther)
		return
	}

	password := r.FormValue("password")
	if h.Password == "" || subtle.ConstantTimeCompare([]byte(password), []byte(h.Password)) != 1 {
		metrics.AdminLoginsTotal.WithLabelValues("failure").Inc()
		log.Printf("Admin login failed from %s", clientIP(r))
		h.render(w, http.StatusOK, loginTemplate, LoginData{Error: wrongPassword})
		return
	}

	token, s, err := h.Sessions.Create()
	if err != nil {
		log.Printf("Admin login: failed to create session: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	metrics.AdminLoginsTotal.WithLabelValues("success").Inc()
	log.Printf("Admin session %s started from %s", s.ID, clientIP(r))

	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(h.Sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, HomePath, http.StatusSeeOther)
}

// Logout handles GET /admin/logout.
func (h *AdminHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(session.CookieName); err == nil {
		h.Sessions.Revoke(c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, LoginPath, http.StatusSeeOther)
}

// Home handles GET /admin/home. It accepts the same filter parameters as
// the logs API; an invalid time range is reported on the page.
func (h *AdminHandlers) Home(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ReadAll(r.Context())
	if err != nil {
		log.Printf("Admin home: failed to read records: %v", err)
		http.Error(w, "failed to read logs", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	data := DashboardData{
		Filter: FilterForm{
			IP:         q.Get("ip"),
			DeviceType: q.Get("device_type"),
			Platform:   q.Get("platform"),
			Date:       q.Get("date"),
			TimeRange:  q.Get("time_range"),
		},
		Platforms: []string{
			logstore.PlatformIOS, logstore.PlatformAndroid, logstore.PlatformMacOS,
			logstore.PlatformWindows, logstore.PlatformLinux, logstore.PlatformUnknown,
		},
	}

	stats := logstore.ComputeStats(records, h.now())
	data.TotalLogs, data.UniqueIPs, data.TodayLogs = stats.Total, stats.UniqueIPs, stats.Today

	criteria, err := criteriaFromQuery(q)
	if err != nil {
		data.Error = err.Error()
		criteria = logstore.Criteria{}
	} else {
		data.ExportQuery = data.Filter.Query()
	}
	view := logstore.Filter(records, criteria)
	data.Logs = logstore.SummarizeAll(view)
	data.Matched = len(view)

	h.render(w, http.StatusOK, dashboardTemplate, data)
}

// ListLogs handles GET /api/admin/logs.
func (h *AdminHandlers) ListLogs(w http.ResponseWriter, r *http.Request) {
	records, view, ok := h.filtered(w, r)
	if !ok {
		return
	}

	matched := len(view)
	if limit := parseIntParam(r, "limit", 0); limit > 0 && limit < len(view) {
		view = view[:limit]
	}

	stats := logstore.ComputeStats(records, h.now())
	writeJSON(w, http.StatusOK, api.LogsResponse{
		Logs:      logstore.SummarizeAll(view),
		TotalLogs: stats.Total,
		UniqueIPs: stats.UniqueIPs,
		TodayLogs: stats.Today,
		Matched:   matched,
	})
}

// DeleteLogs handles POST /api/admin/logs/delete.
func (h *AdminHandlers) DeleteLogs(w http.ResponseWriter, r *http.Request) {
	var req api.DeleteLogsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Positions) == 0 {
		writeError(w, "positions is required", http.StatusBadRequest)
		return
	}

	deleted, err := h.Store.Delete(r.Context(), req.Positions)
	if err != nil {
		log.Printf("Delete logs: %v", err)
		writeError(w, "failed to delete logs", http.StatusInternalServerError)
		return
	}

	metrics.RecordsDeletedTotal.Add(float64(deleted))
	who := "api key"
	if s, ok := middleware.GetSession(r.Context()); ok {
		who = "session " + s.ID.String()
	}
	log.Printf("Deleted %d log records (requested %d) by %s", deleted, len(req.Positions), who)

	writeJSON(w, http.StatusOK, api.DeleteLogsResponse{Deleted: deleted})
}

// ExportCSV handles GET /api/admin/logs.csv. With compress=xz the CSV is
// sent xz-compressed.
func (h *AdminHandlers) ExportCSV(w http.ResponseWriter, r *http.Request) {
	_, view, ok := h.filtered(w, r)
	if !ok {
		return
	}

	name := "device_logs_" + h.now().Format("20060102_150405") + ".csv"
	write := export.WriteCSV
	contentType := "text/csv; charset=utf-8"
	if r.URL.Query().Get("compress") == "xz" {
		name += ".xz"
		write = export.WriteCSVXZ
		contentType = "application/x-xz"
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if err := write(w, view); err != nil {
		log.Printf("Export CSV: %v", err)
	}
}

// GetLogsGeoJSON handles GET /api/admin/logs.geojson.
// Located records become Point features with WGS-84 coordinates; the
// GCJ-02 map link is carried in the properties.
func (h *AdminHandlers) GetLogsGeoJSON(w http.ResponseWriter, r *http.Request) {
	_, view, ok := h.filtered(w, r)
	if !ok {
		return
	}

	features := make([]api.GeoJSONFeature, 0, len(view))
	for _, rec := range view {
		c, located := rec.Coordinate()
		if !located {
			continue
		}
		e := logstore.Summarize(rec)
		features = append(features, api.GeoJSONFeature{
			Type: "Feature",
			Geometry: api.GeoJSONPoint{
				Type:        "Point",
				Coordinates: []float64{c.Lng, c.Lat},
			},
			Properties: map[string]any{
				"position":    e.Position,
				"time":        e.Time,
				"ip":          e.IP,
				"device_type": e.DeviceType,
				"platform":    e.PlatformClass,
				"city":        e.City,
				"map_url":     e.MapURL,
			},
		})
	}

	data, err := json.Marshal(api.GeoJSONFeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	})
	if err != nil {
		writeError(w, "failed to encode geojson", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data) // Error is client disconnect, can't recover
}

// filtered reads every record and applies the request's filter. On failure
// it writes the error response and returns ok=false.
func (h *AdminHandlers) filtered(w http.ResponseWriter, r *http.Request) (all, view []logstore.Record, ok bool) {
	criteria, err := criteriaFromQuery(r.URL.Query())
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return nil, nil, false
	}

	records, err := h.Store.ReadAll(r.Context())
	if err != nil {
		log.Printf("Admin API: failed to read records: %v", err)
		writeError(w, "failed to read logs", http.StatusInternalServerError)
		return nil, nil, false
	}
	return records, logstore.Filter(records, criteria), true
}

func (h *AdminHandlers) loggedIn(r *http.Request) bool {
	c, err := r.Cookie(session.CookieName)
	if err != nil {
		return false
	}
	_, ok := h.Sessions.Lookup(c.Value)
	return ok
}

func (h *AdminHandlers) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.Pages.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("Render %s: %v", name, err)
	}
}

func (h *AdminHandlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// criteriaFromQuery reads ip, device_type, platform, date and time_range.
func criteriaFromQuery(q url.Values) (logstore.Criteria, error) {
	c := logstore.Criteria{
		IP:         q.Get("ip"),
		DeviceType: q.Get("device_type"),
		Platform:   q.Get("platform"),
		Date:       q.Get("date"),
	}
	if tr := q.Get("time_range"); tr != "" {
		cr, err := logstore.ParseClockRange(tr)
		if err != nil {
			return logstore.Criteria{}, err
		}
		c.Clock = &cr
	}
	return c, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) // Error is client disconnect, can't recover
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, api.ErrorResponse{Error: message})
}
