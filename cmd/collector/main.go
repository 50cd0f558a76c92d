package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"

	"github.com/locplace/fingerprint/frontend"
	"github.com/locplace/fingerprint/internal/collector"
	"github.com/locplace/fingerprint/internal/collector/db"
	"github.com/locplace/fingerprint/internal/collector/metrics"
	"github.com/locplace/fingerprint/internal/collector/reaper"
	"github.com/locplace/fingerprint/internal/collector/session"
	"github.com/locplace/fingerprint/internal/config"
	"github.com/locplace/fingerprint/internal/geoip"
	"github.com/locplace/fingerprint/internal/logstore"
	"github.com/locplace/fingerprint/internal/publisher"
)

func main() {
	// Configuration from .env and environment
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Register Prometheus metrics
	metrics.Register()

	ctx := context.Background()

	// Open the record store
	var (
		store      logstore.Store
		updaterCfg = metrics.UpdaterConfig{Interval: cfg.MetricsInterval}
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		log.Println("Connected to database")

		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		store = db.NewStore(database)
		updaterCfg.Pool = database.Pool
	default:
		store = logstore.NewFileStore(cfg.LogFile)
		log.Printf("Logging submissions to %s", cfg.LogFile)
	}
	defer store.Close() //nolint:errcheck // Close error not actionable at exit

	// Event publisher
	var pub publisher.Publisher = publisher.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		pub = publisher.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		log.Printf("Publishing records to Kafka topic %s via %v", cfg.KafkaTopic, cfg.KafkaBrokers)
	}
	defer pub.Close() //nolint:errcheck // Close error not actionable at exit

	lookup := geoip.NewClient(cfg.GeoIPTimeout, cfg.IPGeolocationAPIKey)
	lookup.Observe = metrics.ObserveGeoIP

	pages, err := frontend.Templates()
	if err != nil {
		log.Fatalf("Failed to parse templates: %v", err)
	}

	sessions := session.NewManager(cfg.SessionTTL)

	// Create server
	handler := collector.NewServer(collector.Deps{
		Store:     store,
		Sessions:  sessions,
		GeoIP:     lookup,
		Publisher: pub,
		Pages:     pages,
	}, collector.Config{
		AdminPassword: cfg.AdminPassword,
		AdminAPIKey:   cfg.AdminAPIKey,
		SecureCookie:  cfg.CookieSecure,
	})

	// Wrap with metrics middleware
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      metrics.Middleware(handler),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Create background context for all goroutines
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	// Start metrics updater
	go metrics.NewUpdater(store, sessions, updaterCfg).Run(bgCtx)

	// Start metrics HTTP server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		log.Printf("Metrics server listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	// Start session reaper
	r := &reaper.Reaper{
		Sessions: sessions,
		Interval: cfg.ReaperInterval,
	}
	go r.Run(bgCtx)

	// Start main server
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", cfg.ListenAddr, err)
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
		log.Printf("Connection limit: %d", cfg.MaxConnections)
	}
	go func() {
		log.Printf("Collector listening on %s", cfg.ListenAddr)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	cancelBg() // Stop all background goroutines

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown both servers
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics server shutdown error: %v", err)
	}
	log.Println("Goodbye")
}
