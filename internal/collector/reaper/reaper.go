// Package reaper provides background cleanup of expired admin sessions.
package reaper

import (
	"context"
	"log"
	"time"

	"github.com/locplace/fingerprint/internal/collector/metrics"
)

// Sweeper drops expired entries and reports how many it removed.
type Sweeper interface {
	Sweep() int
}

// Reaper periodically sweeps expired admin sessions.
type Reaper struct {
	Sessions Sweeper
	Interval time.Duration
}

// Run starts the reaper loop. It blocks until the context is canceled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	log.Printf("Reaper started: interval=%s", r.Interval)

	for {
		select {
		case <-ctx.Done():
			log.Println("Reaper stopped")
			return
		case <-ticker.C:
			metrics.ReaperRunsTotal.Inc()
			if removed := r.Sessions.Sweep(); removed > 0 {
				metrics.ReaperSessionsExpiredTotal.Add(float64(removed))
				log.Printf("Reaper expired %d admin sessions", removed)
			}
		}
	}
}
