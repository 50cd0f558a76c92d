package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/locplace/fingerprint/internal/collector/metrics"
	"github.com/locplace/fingerprint/internal/geoip"
	"github.com/locplace/fingerprint/internal/logstore"
	"github.com/locplace/fingerprint/internal/publisher"
	"github.com/locplace/fingerprint/pkg/api"
)

// maxSubmissionSize caps a save-log body.
const maxSubmissionSize = 64 << 10

// IPLookup resolves an address to a coarse location.
type IPLookup interface {
	Lookup(ctx context.Context, ip string) (geoip.Info, error)
}

// PublicHandlers contains handlers for the collection page endpoints.
type PublicHandlers struct {
	Store     logstore.Store
	GeoIP     IPLookup
	Publisher publisher.Publisher
	Now       func() time.Time
}

// SaveLog handles POST /api/save-log.
func (h *PublicHandlers) SaveLog(w http.ResponseWriter, r *http.Request) {
	var submission map[string]json.RawMessage
	body := http.MaxBytesReader(w, r.Body, maxSubmissionSize)
	if err := json.NewDecoder(body).Decode(&submission); err != nil {
		log.Printf("Save log: invalid body from %s: %v", clientIP(r), err)
		metrics.SubmissionsTotal.WithLabelValues(api.StatusError).Inc()
		writeJSON(w, http.StatusBadRequest, api.SaveLogResponse{Status: api.StatusError})
		return
	}

	rec := logstore.NewRecord(h.now(), submission)
	if err := h.Store.Append(r.Context(), rec); err != nil {
		log.Printf("Save log: failed to store record: %v", err)
		metrics.SubmissionsTotal.WithLabelValues(api.StatusError).Inc()
		writeJSON(w, http.StatusInternalServerError, api.SaveLogResponse{Status: api.StatusError})
		return
	}
	metrics.SubmissionsTotal.WithLabelValues(api.StatusSuccess).Inc()
	logSubmission(rec)

	if h.Publisher != nil {
		if err := h.Publisher.Publish(r.Context(), rec); err != nil {
			metrics.PublishFailuresTotal.Inc()
			log.Printf("Save log: failed to publish record: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, api.SaveLogResponse{Status: api.StatusSuccess})
}

// IPInfo handles GET /api/ip-info.
// Lookup failures still answer 200 with whatever is known.
func (h *PublicHandlers) IPInfo(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	var info geoip.Info
	if h.GeoIP != nil {
		var err error
		info, err = h.GeoIP.Lookup(r.Context(), ip)
		if err != nil && !errors.Is(err, geoip.ErrNoProvider) {
			log.Printf("IP info: lookup for %s failed: %v", ip, err)
		}
	}

	writeJSON(w, http.StatusOK, api.IPInfoResponse{
		PublicIP: orNA(ip),
		Country:  orNA(info.Country),
		Region:   orNA(info.Region),
		City:     orNA(info.City),
		Loc:      orNA(info.Loc),
		Timezone: orNA(info.Timezone),
		ISP:      orNA(info.ISP),
	})
}

func (h *PublicHandlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// logSubmission prints the operator-facing summary of a stored record.
func logSubmission(rec logstore.Record) {
	browser := rec.Browser.String()
	if len([]rune(browser)) > 50 {
		browser = string([]rune(browser)[:50]) + "..."
	}
	log.Printf("Submission: time=%s ip=%s coords=%s,%s map=%s device=%s os=%s browser=%q",
		rec.Timestamp, rec.PublicIP, rec.Latitude, rec.Longitude, rec.MapURL(),
		rec.DeviceType, rec.OS, browser)
}

// clientIP returns the requester address: the first X-Forwarded-For hop,
// then X-Real-IP, then the connection's remote address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func orNA(s string) string {
	if s == "" {
		return logstore.NotAvailable
	}
	return s
}

func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	return v
}
