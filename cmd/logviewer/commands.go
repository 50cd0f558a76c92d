package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/locplace/fingerprint/internal/export"
	"github.com/locplace/fingerprint/internal/logstore"
)

var errNoSuchPosition = errors.New("no record at position")

func newListCmd(v *viewer) *cobra.Command {
	var limit int

	c := &cobra.Command{
		Use:   "list",
		Short: "List records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			records, err := v.store().ReadAll(c.Context())
			if err != nil {
				return err
			}
			if limit > 0 && limit < len(records) {
				records = records[:limit]
			}
			return printRecords(c.OutOrStdout(), records)
		},
	}
	c.Flags().IntVar(&limit, "limit", 0, "Show at most this many records (0 = all)")
	return c
}

func newFilterCmd(v *viewer) *cobra.Command {
	var f filterFlags

	c := &cobra.Command{
		Use:   "filter",
		Short: "List records matching every given filter",
		Long: `List records matching every given filter, newest first.

Example:
  logviewer filter --ip 203.0.113
  logviewer filter --device Mobile --date 2024-05-01
  logviewer filter --time 22:00-02:00
`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			criteria, err := f.criteria()
			if err != nil {
				return err
			}
			records, err := v.store().ReadAll(c.Context())
			if err != nil {
				return err
			}
			matched := logstore.Filter(records, criteria)
			if err := printRecords(c.OutOrStdout(), matched); err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "\n%d of %d records\n", len(matched), len(records))
			return nil
		},
	}
	f.register(c)
	return c
}

func newShowCmd(v *viewer) *cobra.Command {
	return &cobra.Command{
		Use:   "show POS",
		Short: "Print every attribute of one record",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			rec, err := v.recordAt(c, args[0])
			if err != nil {
				return err
			}
			return printRecord(c.OutOrStdout(), rec)
		},
	}
}

func newMapCmd(v *viewer) *cobra.Command {
	return &cobra.Command{
		Use:   "map POS",
		Short: "Print the AMap link for one record's position",
		Long: `Print the AMap marker link for one record.

Coordinates are converted to GCJ-02. Unparseable coordinates are linked as
stored, and records without a position print "#".
`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			rec, err := v.recordAt(c, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), rec.MapURL())
			return nil
		},
	}
}

func newDeleteCmd(v *viewer) *cobra.Command {
	var yes bool

	c := &cobra.Command{
		Use:   "delete POS...",
		Short: "Delete records by position",
		Long: `Delete records by the positions printed in the first column of list.

Unknown positions are ignored. Without --yes the deletion is confirmed
interactively.
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			positions, err := parsePositions(args)
			if err != nil {
				return err
			}

			if !yes {
				fmt.Fprintf(c.OutOrStdout(), "Delete %d record(s) at positions %v? [y/N] ", len(positions), positions)
				answer, _ := bufio.NewReader(c.InOrStdin()).ReadString('\n')
				if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
					fmt.Fprintln(c.OutOrStdout(), "Aborted")
					return nil
				}
			}

			deleted, err := v.store().Delete(c.Context(), positions)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.OutOrStdout(), "Deleted %d record(s)\n", deleted)
			return nil
		},
	}
	c.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking")
	return c
}

func newExportCmd(v *viewer) *cobra.Command {
	var (
		out        string
		compressed bool
		f          filterFlags
	)

	c := &cobra.Command{
		Use:   "export",
		Short: "Write records to a CSV file",
		Long: `Write records, newest first, to a UTF-8 CSV file readable by spreadsheet tools.

Example:
  logviewer export --out logs.csv
  logviewer export --out logs.csv.xz --xz --platform Android
`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			criteria, err := f.criteria()
			if err != nil {
				return err
			}
			records, err := v.store().ReadAll(c.Context())
			if err != nil {
				return err
			}
			view := logstore.Filter(records, criteria)

			file, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			write := export.WriteCSV
			if compressed {
				write = export.WriteCSVXZ
			}
			if err := write(file, view); err != nil {
				file.Close() //nolint:errcheck // already failing
				return fmt.Errorf("write %s: %w", out, err)
			}
			if err := file.Close(); err != nil {
				return fmt.Errorf("close %s: %w", out, err)
			}

			fmt.Fprintf(c.OutOrStdout(), "Exported %d record(s) to %s\n", len(view), out)
			return nil
		},
	}
	c.Flags().StringVarP(&out, "out", "o", "", "Output file")
	c.Flags().BoolVar(&compressed, "xz", false, "Compress the CSV with xz")
	f.register(c)
	_ = c.MarkFlagRequired("out")
	return c
}

func newStatsCmd(v *viewer) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print record counts",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			records, err := v.store().ReadAll(c.Context())
			if err != nil {
				return err
			}
			s := logstore.ComputeStats(records, time.Now())

			w := c.OutOrStdout()
			fmt.Fprintf(w, "Total records: %d\n", s.Total)
			fmt.Fprintf(w, "Unique IPs:    %d\n", s.UniqueIPs)
			fmt.Fprintf(w, "Today:         %d\n", s.Today)
			fmt.Fprintf(w, "With location: %d\n", s.Located)

			byPlatform := make(map[string]int)
			for _, r := range records {
				byPlatform[r.PlatformClass()]++
			}
			platforms := make([]string, 0, len(byPlatform))
			for p := range byPlatform {
				platforms = append(platforms, p)
			}
			sort.Strings(platforms)
			if len(platforms) > 0 {
				fmt.Fprintln(w, "By platform:")
			}
			for _, p := range platforms {
				fmt.Fprintf(w, "  %-10s %d\n", p, byPlatform[p])
			}
			return nil
		},
	}
}

// recordAt finds the record whose append position is arg.
func (v *viewer) recordAt(c *cobra.Command, arg string) (logstore.Record, error) {
	pos, err := strconv.Atoi(arg)
	if err != nil || pos < 0 {
		return logstore.Record{}, fmt.Errorf("invalid position %q", arg)
	}
	records, err := v.store().ReadAll(c.Context())
	if err != nil {
		return logstore.Record{}, err
	}
	for _, r := range records {
		if r.Position == pos {
			return r, nil
		}
	}
	return logstore.Record{}, fmt.Errorf("%w %d", errNoSuchPosition, pos)
}

func parsePositions(args []string) ([]int, error) {
	positions := make([]int, 0, len(args))
	for _, a := range args {
		for _, part := range strings.Split(a, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			p, err := strconv.Atoi(part)
			if err != nil || p < 0 {
				return nil, fmt.Errorf("invalid position %q", part)
			}
			positions = append(positions, p)
		}
	}
	if len(positions) == 0 {
		return nil, errors.New("no positions given")
	}
	return positions, nil
}
