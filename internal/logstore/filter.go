package logstore

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Platform buckets produced by Platform.
const (
	PlatformIOS     = "iOS"
	PlatformAndroid = "Android"
	PlatformMacOS   = "macOS"
	PlatformWindows = "Windows"
	PlatformLinux   = "Linux"
	PlatformUnknown = "Unknown"
)

// Platform classifies a device from its reported os string, falling back to
// the capitalized raw platform value and then to "Unknown".
func Platform(osName, platform string) string {
	o := strings.ToLower(osName)
	switch {
	case strings.Contains(o, "ios"), strings.Contains(o, "iphone"), strings.Contains(o, "ipad"):
		return PlatformIOS
	case strings.Contains(o, "android"):
		return PlatformAndroid
	case strings.Contains(o, "mac"):
		return PlatformMacOS
	case strings.Contains(o, "win"):
		return PlatformWindows
	case strings.Contains(o, "linux"):
		return PlatformLinux
	case platform != "":
		return capitalize(platform)
	default:
		return PlatformUnknown
	}
}

// capitalize upper-cases the first rune and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

// ErrInvalidClockRange is returned for time-of-day ranges that do not parse.
var ErrInvalidClockRange = errors.New("invalid clock range")

// ClockRange is an inclusive time-of-day window in minutes after midnight.
// A window whose start is later than its end wraps past midnight.
type ClockRange struct {
	Start int
	End   int
}

// ParseClockRange parses "HH:MM-HH:MM". "24:00" is accepted as an end of day.
func ParseClockRange(s string) (ClockRange, error) {
	start, end, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return ClockRange{}, fmt.Errorf("%w: %q", ErrInvalidClockRange, s)
	}
	from, err := parseClock(start)
	if err != nil {
		return ClockRange{}, fmt.Errorf("%w: %q", ErrInvalidClockRange, s)
	}
	to, err := parseClock(end)
	if err != nil {
		return ClockRange{}, fmt.Errorf("%w: %q", ErrInvalidClockRange, s)
	}
	return ClockRange{Start: from, End: to}, nil
}

func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, ErrInvalidClockRange
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, err
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, ErrInvalidClockRange
	}
	return h*60 + m, nil
}

// CrossesMidnight reports whether the window wraps past midnight.
func (c ClockRange) CrossesMidnight() bool {
	return c.Start > c.End
}

// Contains reports whether hour:minute falls inside the window.
func (c ClockRange) Contains(hour, minute int) bool {
	t := hour*60 + minute
	if c.CrossesMidnight() {
		return t >= c.Start || t <= c.End
	}
	return t >= c.Start && t <= c.End
}

func (c ClockRange) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", c.Start/60, c.Start%60, c.End/60, c.End%60)
}

// Criteria selects records. Zero-valued criteria match everything; set
// criteria combine with AND.
type Criteria struct {
	// IP matches as a substring of public_ip.
	IP string
	// DeviceType must equal deviceType exactly.
	DeviceType string
	// Platform must equal the derived platform bucket.
	Platform string
	// Date is a timestamp prefix, normally YYYY-MM-DD.
	Date string
	// Clock restricts the capture time of day.
	Clock *ClockRange
}

// IsZero reports whether no criterion is set.
func (c Criteria) IsZero() bool {
	return c.IP == "" && c.DeviceType == "" && c.Platform == "" && c.Date == "" && c.Clock == nil
}

// Match reports whether r satisfies every set criterion.
func (c Criteria) Match(r Record) bool {
	if c.IP != "" && !strings.Contains(r.PublicIP.String(), c.IP) {
		return false
	}
	if c.DeviceType != "" && r.DeviceType.String() != c.DeviceType {
		return false
	}
	if c.Platform != "" && r.PlatformClass() != c.Platform {
		return false
	}
	if c.Date != "" && !strings.HasPrefix(r.Timestamp.String(), c.Date) {
		return false
	}
	if c.Clock != nil {
		if !r.Timestamp.Valid() {
			return false
		}
		if !c.Clock.Contains(r.Timestamp.Time.Hour(), r.Timestamp.Time.Minute()) {
			return false
		}
	}
	return true
}

// Filter returns the records matching c, newest first. It never touches
// storage and leaves the input slice untouched.
func Filter(records []Record, c Criteria) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if c.Match(r) {
			out = append(out, r)
		}
	}
	SortNewestFirst(out)
	return out
}

// SortNewestFirst orders records by capture time, newest first. Records
// captured in the same second keep their relative order, and records with
// unparseable timestamps sort after all others.
func SortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return newer(records[i].Timestamp, records[j].Timestamp)
	})
}

func newer(a, b Timestamp) bool {
	switch {
	case a.Valid() && b.Valid():
		return a.Time.After(b.Time)
	case a.Valid() != b.Valid():
		return a.Valid()
	default:
		return a.String() > b.String()
	}
}
