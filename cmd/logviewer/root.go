package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/locplace/fingerprint/internal/config"
	"github.com/locplace/fingerprint/internal/logstore"
)

// viewer carries the flags shared by every subcommand.
type viewer struct {
	file string
}

func (v *viewer) store() *logstore.FileStore {
	return logstore.NewFileStore(v.file)
}

func newRootCmd() *cobra.Command {
	v := &viewer{}

	root := &cobra.Command{
		Use:   "logviewer",
		Short: "Browse the fingerprint collector log",
		Long: `Browse, filter, export and prune the collector's JSON log file.

Positions printed in the first column are append positions in the file. They
are what "show", "map" and "delete" take, whatever filter produced the list.

Example:
  logviewer list --limit 20
  logviewer filter --platform iOS --time 22:00-02:00
  logviewer delete 3 7 --yes
`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&v.file, "file", config.LogFile(), "Log file path (defaults to $LOG_FILE)")

	root.AddCommand(
		newListCmd(v),
		newFilterCmd(v),
		newShowCmd(v),
		newMapCmd(v),
		newDeleteCmd(v),
		newExportCmd(v),
		newStatsCmd(v),
		newWatchCmd(v),
	)
	return root
}

// filterFlags are the record selectors shared by filter and export.
type filterFlags struct {
	ip       string
	device   string
	platform string
	date     string
	clock    string
}

func (f *filterFlags) register(c *cobra.Command) {
	c.Flags().StringVar(&f.ip, "ip", "", "IP address substring")
	c.Flags().StringVar(&f.device, "device", "", "Device type (exact)")
	c.Flags().StringVar(&f.platform, "platform", "", "Platform (iOS, Android, macOS, Windows, Linux, Unknown)")
	c.Flags().StringVar(&f.date, "date", "", "Capture date prefix (YYYY-MM-DD)")
	c.Flags().StringVar(&f.clock, "time", "", "Time of day range HH:MM-HH:MM, may cross midnight")
}

func (f *filterFlags) criteria() (logstore.Criteria, error) {
	c := logstore.Criteria{
		IP:         f.ip,
		DeviceType: f.device,
		Platform:   f.platform,
		Date:       f.date,
	}
	if f.clock != "" {
		cr, err := logstore.ParseClockRange(f.clock)
		if err != nil {
			return logstore.Criteria{}, err
		}
		c.Clock = &cr
	}
	return c, nil
}

// printRecords writes one line per record.
func printRecords(w io.Writer, records []logstore.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "POS\tTIME\tIP\tDEVICE\tPLATFORM\tLOCATION\tCITY")
	for _, r := range records {
		e := logstore.Summarize(r)
		location := logstore.NotAvailable
		if _, ok := r.Coordinate(); ok {
			location = e.Lat + "," + e.Lng
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			e.Position, e.Time, e.IP, e.DeviceType, e.PlatformClass, location, e.City)
	}
	return tw.Flush()
}

// printRecord writes every attribute of r, one per line.
func printRecord(w io.Writer, r logstore.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "position\t%d\n", r.Position)
	for _, key := range logstore.Keys() {
		fmt.Fprintf(tw, "%s\t%s\n", key, r.Get(key))
	}
	extra := make([]string, 0, len(r.Extra))
	for key := range r.Extra {
		extra = append(extra, key)
	}
	sort.Strings(extra)
	for _, key := range extra {
		fmt.Fprintf(tw, "%s\t%s\n", key, strings.TrimSpace(string(r.Extra[key])))
	}
	fmt.Fprintf(tw, "platform class\t%s\n", r.PlatformClass())
	fmt.Fprintf(tw, "map\t%s\n", r.MapURL())
	return tw.Flush()
}
