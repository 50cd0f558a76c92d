// Package collector provides the fingerprint collection server.
package collector

import (
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/locplace/fingerprint/frontend"
	"github.com/locplace/fingerprint/internal/collector/handlers"
	"github.com/locplace/fingerprint/internal/collector/middleware"
	"github.com/locplace/fingerprint/internal/collector/session"
	"github.com/locplace/fingerprint/internal/logstore"
	"github.com/locplace/fingerprint/internal/publisher"
)

// Config holds server configuration.
type Config struct {
	AdminPassword string
	AdminAPIKey   string
	SecureCookie  bool
}

// Deps are the collaborators the server routes into.
type Deps struct {
	Store     logstore.Store
	Sessions  *session.Manager
	GeoIP     handlers.IPLookup
	Publisher publisher.Publisher
	Pages     *template.Template
	// Now overrides the clock in tests.
	Now func() time.Time
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps Deps, cfg Config) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	now := deps.Now
	if now == nil {
		now = time.Now
	}
	pub := deps.Publisher
	if pub == nil {
		pub = publisher.Nop{}
	}

	// Initialize handlers
	publicHandlers := &handlers.PublicHandlers{
		Store:     deps.Store,
		GeoIP:     deps.GeoIP,
		Publisher: pub,
		Now:       now,
	}
	adminHandlers := &handlers.AdminHandlers{
		Store:        deps.Store,
		Sessions:     deps.Sessions,
		Password:     cfg.AdminPassword,
		Pages:        deps.Pages,
		SecureCookie: cfg.SecureCookie,
		Now:          now,
	}

	// Collection page endpoints (no authentication)
	r.Get("/api/ip-info", publicHandlers.IPInfo)
	r.Post("/api/save-log", publicHandlers.SaveLog)

	// Admin pages (session cookie)
	r.Get(handlers.LoginPath, adminHandlers.LoginPage)
	r.Post(handlers.LoginPath, adminHandlers.Login)
	r.Get("/admin/logout", adminHandlers.Logout)
	r.With(middleware.RequireSession(deps.Sessions, handlers.LoginPath)).
		Get(handlers.HomePath, adminHandlers.Home)

	// Admin API (session cookie or API key)
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.AdminAuth(cfg.AdminAPIKey, deps.Sessions))
		r.Get("/logs", adminHandlers.ListLogs)
		r.Post("/logs/delete", adminHandlers.DeleteLogs)
		r.Get("/logs.csv", adminHandlers.ExportCSV)
		r.Get("/logs.geojson", adminHandlers.GetLogsGeoJSON)
	})

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok")) // Error is client disconnect, can't recover
	})

	// Serve frontend (must be last to not override API routes)
	r.Handle("/*", frontend.Handler())

	return r
}
