// Package export renders record views as spreadsheet-friendly CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ulikunitz/xz"

	"github.com/locplace/fingerprint/internal/logstore"
)

// bom makes spreadsheet tools detect UTF-8 for the Chinese place names.
const bom = "\ufeff"

// Header is the CSV column row.
var Header = []string{
	"Position", "Time", "IP", "Device Type", "Browser", "OS", "Platform",
	"Latitude", "Longitude", "Country", "Region", "City", "Timezone", "ISP",
	"Map Link",
}

// Row renders one record in Header order.
func Row(r logstore.Record) []string {
	e := logstore.Summarize(r)
	return []string{
		strconv.Itoa(e.Position), e.Time, e.IP, e.DeviceType, e.Browser, e.OS,
		e.PlatformClass, e.Lat, e.Lng, e.Country, e.Region, e.City, e.Timezone,
		e.ISP, e.MapURL,
	}
}

// WriteCSV writes a BOM, the header row and one row per record in the
// order given.
func WriteCSV(w io.Writer, records []logstore.Record) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for _, r := range records {
		if err := cw.Write(Row(r)); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteCSVXZ is WriteCSV wrapped in an xz stream.
func WriteCSVXZ(w io.Writer, records []logstore.Record) error {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create xz writer: %w", err)
	}
	if err := WriteCSV(xw, records); err != nil {
		xw.Close() //nolint:errcheck // Already failing
		return err
	}
	if err := xw.Close(); err != nil {
		return fmt.Errorf("close xz writer: %w", err)
	}
	return nil
}
