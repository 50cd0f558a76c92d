package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/locplace/fingerprint/internal/logstore"
)

func newWatchCmd(v *viewer) *cobra.Command {
	var interval time.Duration

	c := &cobra.Command{
		Use:   "watch",
		Short: "Print records as the collector appends them",
		Long: `Poll the log file and print records appended since the last poll.

Records are recognized by content, so deletions made while watching do not
hide or repeat anything.
`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if interval <= 0 {
				return fmt.Errorf("invalid interval %s", interval)
			}
			ctx, stop := signal.NotifyContext(c.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store := v.store()
			records, err := store.ReadAll(ctx)
			if err != nil {
				return err
			}
			w := newWatcher(records)
			fmt.Fprintf(c.OutOrStdout(), "Watching %s (%d records), polling every %s\n", store.Path(), len(records), interval)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					records, err := store.ReadAll(ctx)
					if err != nil {
						return err
					}
					if fresh := w.next(records); len(fresh) > 0 {
						if err := printRecords(c.OutOrStdout(), fresh); err != nil {
							return err
						}
					}
				}
			}
		},
	}
	c.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")
	return c
}

// watcher remembers which records of the log were already printed. Records
// carry no identifier and deletions shift positions, so a record is known by
// its encoded content; identical records are counted.
type watcher struct {
	seen map[string]int
}

func newWatcher(records []logstore.Record) *watcher {
	w := &watcher{}
	w.next(records)
	return w
}

// next returns the records not present at the previous call, in append order.
func (w *watcher) next(records []logstore.Record) []logstore.Record {
	ordered := append([]logstore.Record(nil), records...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Position < ordered[j].Position })

	current := make(map[string]int, len(ordered))
	var fresh []logstore.Record
	for _, r := range ordered {
		key := recordKey(r)
		current[key]++
		if current[key] > w.seen[key] {
			fresh = append(fresh, r)
		}
	}
	w.seen = current
	return fresh
}

func recordKey(r logstore.Record) string {
	data, _ := json.Marshal(r) //nolint:errcheck // Record encoding does not fail
	return string(data)
}
