// Package metrics provides Prometheus metrics for the collector.
//
// # Metric Types
//
// This package exposes two categories of metrics:
//
// ## Gauges (Store State)
//
// These metrics reflect the current contents of the record store, updated
// periodically (default: every 15 seconds). They show "how many X exist" at
// a point in time.
//
// ## Counters (Events)
//
// These metrics increment on each event. Use rate(counter[5m]) to derive
// throughput such as submissions per second.
package metrics

import (
	"net/url"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Build information, set at compile time.
var (
	Version = "dev"
	Commit  = "unknown"
)

// ========================================
// GAUGES - Store State (periodic snapshot)
// ========================================

var (
	// RecordsTotal is the number of stored fingerprint records.
	RecordsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fingerprint_records_total",
		Help: "Number of fingerprint records in the store (gauge, from store).",
	})

	// UniqueIPs is the number of distinct reported public IPs.
	UniqueIPs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fingerprint_unique_ips",
		Help: "Number of distinct public IPs across stored records (gauge, from store).",
	})

	// RecordsToday is the number of records captured on the current local day.
	RecordsToday = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fingerprint_records_today",
		Help: "Number of records captured today, local time (gauge, from store).",
	})

	// RecordsLocated is the number of records carrying a usable GPS position.
	RecordsLocated = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fingerprint_records_located",
		Help: "Number of records with parseable latitude and longitude (gauge, from store).",
	})

	// AdminSessions is the number of admin sessions held in memory.
	AdminSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fingerprint_admin_sessions",
		Help: "Number of admin dashboard sessions currently held.",
	})
)

// Database pool metrics. Only updated with the postgres store driver.
var (
	DBPoolTotalConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fingerprint_db_pool_total_conns",
		Help: "Total number of connections in the database pool.",
	})

	DBPoolAcquiredConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fingerprint_db_pool_acquired_conns",
		Help: "Number of currently acquired database connections.",
	})

	DBPoolIdleConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fingerprint_db_pool_idle_conns",
		Help: "Number of idle database connections in the pool.",
	})

	DBPoolMaxConns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fingerprint_db_pool_max_conns",
		Help: "Maximum number of connections allowed in the pool.",
	})
)

// ========================================
// COUNTERS - Events (real-time)
// ========================================

var (
	// SubmissionsTotal counts save-log requests by result ("success" or "error").
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fingerprint_submissions_total",
		Help: "Total number of fingerprint submissions by result (counter).",
	}, []string{"result"})

	// RecordsDeletedTotal counts records removed through the admin surfaces.
	RecordsDeletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fingerprint_records_deleted_total",
		Help: "Total number of records deleted by administrators (counter).",
	})

	// GeoIPLookupsTotal counts provider attempts by provider and result.
	GeoIPLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fingerprint_geoip_lookups_total",
		Help: "Total number of GeoIP provider attempts by provider and result (counter).",
	}, []string{"provider", "result"})

	// PublishFailuresTotal counts records that could not be forwarded to the bus.
	PublishFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fingerprint_publish_failures_total",
		Help: "Total number of records that failed to publish (counter).",
	})

	// AdminLoginsTotal counts admin login attempts by result ("success" or "failure").
	AdminLoginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fingerprint_admin_logins_total",
		Help: "Total number of admin login attempts by result (counter).",
	}, []string{"result"})

	// ReaperRunsTotal counts reaper execution cycles.
	ReaperRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fingerprint_reaper_runs_total",
		Help: "Total number of reaper execution cycles (counter).",
	})

	// ReaperSessionsExpiredTotal counts sessions dropped by the reaper.
	ReaperSessionsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fingerprint_reaper_sessions_expired_total",
		Help: "Total number of admin sessions expired by the reaper (counter).",
	})
)

// ========================================
// HTTP Metrics
// ========================================

var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fingerprint_http_requests_total",
		Help: "Total number of HTTP requests by method, path, and status code.",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request latency by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fingerprint_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "path"})

	// HTTPRequestsInFlight tracks concurrent request count.
	HTTPRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fingerprint_http_requests_in_flight",
		Help: "Number of HTTP requests currently being processed.",
	})

	// HTTPReferrerRequests counts requests by referrer domain.
	HTTPReferrerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fingerprint_http_referrer_requests_total",
		Help: "Total number of HTTP requests by referrer domain (direct if no referrer).",
	}, []string{"referrer"})
)

// ========================================
// Build Info
// ========================================

var (
	// BuildInfo exports build information as a metric.
	BuildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fingerprint_build_info",
		Help: "Build information with version and commit labels. Value is always 1.",
	}, []string{"version", "commit"})
)

// Register registers all metrics with the default Prometheus registry.
func Register() {
	// Gauges - Store
	prometheus.MustRegister(RecordsTotal)
	prometheus.MustRegister(UniqueIPs)
	prometheus.MustRegister(RecordsToday)
	prometheus.MustRegister(RecordsLocated)
	prometheus.MustRegister(AdminSessions)

	// DB pool
	prometheus.MustRegister(DBPoolTotalConns)
	prometheus.MustRegister(DBPoolAcquiredConns)
	prometheus.MustRegister(DBPoolIdleConns)
	prometheus.MustRegister(DBPoolMaxConns)

	// Counters
	prometheus.MustRegister(SubmissionsTotal)
	prometheus.MustRegister(RecordsDeletedTotal)
	prometheus.MustRegister(GeoIPLookupsTotal)
	prometheus.MustRegister(PublishFailuresTotal)
	prometheus.MustRegister(AdminLoginsTotal)
	prometheus.MustRegister(ReaperRunsTotal)
	prometheus.MustRegister(ReaperSessionsExpiredTotal)

	// HTTP
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestsInFlight)
	prometheus.MustRegister(HTTPReferrerRequests)

	// Build info
	prometheus.MustRegister(BuildInfo)
	BuildInfo.WithLabelValues(Version, Commit).Set(1)
}

// ObserveGeoIP records one GeoIP provider attempt. It matches geoip.Observer.
func ObserveGeoIP(provider, result string) {
	GeoIPLookupsTotal.WithLabelValues(provider, result).Inc()
}

// NormalizePath normalizes URL paths for metric labels to avoid high cardinality.
// Static assets collapse to one label; hex or UUID segments become :id.
func NormalizePath(path string) string {
	if strings.HasPrefix(path, "/static/") || strings.HasPrefix(path, "/assets/") {
		return "/static/*"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		// Replace UUID-like strings (8-4-4-4-12 hex pattern)
		if len(part) == 36 && strings.Count(part, "-") == 4 {
			parts[i] = ":id"
			continue
		}
		// Replace any segment that looks like an ID (long hex string)
		if len(part) >= 32 && isHex(part) {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// ExtractReferrerDomain extracts the domain from a Referer header value.
// Returns "direct" if the referrer is empty or invalid.
func ExtractReferrerDomain(referer string) string {
	if referer == "" {
		return "direct"
	}
	u, err := url.Parse(referer)
	if err != nil || u.Host == "" {
		return "direct"
	}
	return u.Host
}
