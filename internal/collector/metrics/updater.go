package metrics

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/locplace/fingerprint/internal/logstore"
)

// UpdaterConfig holds configuration for the metrics updater.
type UpdaterConfig struct {
	Interval time.Duration
	// Pool, when set, has its connection stats exported.
	Pool *pgxpool.Pool
}

// SessionCounter reports how many admin sessions are held.
type SessionCounter interface {
	Len() int
}

// Updater periodically updates gauge metrics from the record store.
type Updater struct {
	store    logstore.Store
	sessions SessionCounter
	config   UpdaterConfig
	now      func() time.Time
}

// NewUpdater creates a new metrics updater.
func NewUpdater(store logstore.Store, sessions SessionCounter, config UpdaterConfig) *Updater {
	return &Updater{
		store:    store,
		sessions: sessions,
		config:   config,
		now:      time.Now,
	}
}

// Run starts the updater loop. It blocks until the context is canceled.
func (u *Updater) Run(ctx context.Context) {
	log.Printf("Metrics updater started: interval=%s", u.config.Interval)

	// Update immediately on start
	u.update(ctx)

	ticker := time.NewTicker(u.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Metrics updater stopped")
			return
		case <-ticker.C:
			u.update(ctx)
		}
	}
}

func (u *Updater) update(ctx context.Context) {
	records, err := u.store.ReadAll(ctx)
	if err != nil {
		log.Printf("Metrics updater: failed to read records: %v", err)
		return
	}

	stats := logstore.ComputeStats(records, u.now())
	RecordsTotal.Set(float64(stats.Total))
	UniqueIPs.Set(float64(stats.UniqueIPs))
	RecordsToday.Set(float64(stats.Today))
	RecordsLocated.Set(float64(stats.Located))

	if u.sessions != nil {
		AdminSessions.Set(float64(u.sessions.Len()))
	}

	if u.config.Pool != nil {
		poolStats := u.config.Pool.Stat()
		DBPoolTotalConns.Set(float64(poolStats.TotalConns()))
		DBPoolAcquiredConns.Set(float64(poolStats.AcquiredConns()))
		DBPoolIdleConns.Set(float64(poolStats.IdleConns()))
		DBPoolMaxConns.Set(float64(poolStats.MaxConns()))
	}
}
