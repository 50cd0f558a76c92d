package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/locplace/fingerprint/internal/logstore"
)

// seedLog writes records in append order, one hour apart from 23:00, and returns
// the log path.
func seedLog(t *testing.T, bodies ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "device_info.json")
	store := logstore.NewFileStore(path)

	start := time.Date(2024, 5, 1, 23, 0, 0, 0, time.Local)
	for i, body := range bodies {
		var m map[string]json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(body), &m))
		rec := logstore.NewRecord(start.Add(time.Duration(i)*time.Hour), m)
		require.NoError(t, store.Append(context.Background(), rec))
	}
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

var fixtures = []string{
	`{"public_ip":"1.1.1.1","os":"Windows 10","deviceType":"Desktop","city":"北京"}`,
	`{"public_ip":"2.2.2.2","os":"iOS 17","deviceType":"Mobile","latitude":31.2304,"longitude":121.4737}`,
	`{"public_ip":"1.1.1.9","os":"Android 14","deviceType":"Mobile"}`,
}

func TestList(t *testing.T) {
	path := seedLog(t, fixtures...)

	out, err := run(t, "", "list", "--file", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "POS"))
	assert.True(t, strings.HasPrefix(lines[1], "2 "), lines[1])
	assert.True(t, strings.HasPrefix(lines[3], "0 "), lines[3])
	assert.Contains(t, lines[2], "31.2304,121.4737")

	out, err = run(t, "", "list", "--file", path, "--limit", "1")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 2)
}

func TestFilter(t *testing.T) {
	path := seedLog(t, fixtures...)

	tests := []struct {
		name string
		args []string
		want []string
		skip []string
	}{
		{"ip substring", []string{"--ip", "1.1.1"}, []string{"1.1.1.1", "1.1.1.9"}, []string{"2.2.2.2"}},
		{"device", []string{"--device", "Mobile"}, []string{"2.2.2.2", "1.1.1.9"}, []string{"1.1.1.1"}},
		{"platform", []string{"--platform", "Windows"}, []string{"1.1.1.1"}, []string{"2.2.2.2", "1.1.1.9"}},
		// Captures are at 23:00, 00:00 and 01:00.
		{"clock across midnight", []string{"--time", "23:30-00:30"}, []string{"2.2.2.2"}, []string{"1.1.1.1", "1.1.1.9"}},
		{"date", []string{"--date", "2024-05-02"}, []string{"2.2.2.2", "1.1.1.9"}, []string{"1.1.1.1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, "", append([]string{"filter", "--file", path}, tt.args...)...)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, s := range tt.skip {
				assert.NotContains(t, out, s)
			}
		})
	}

	_, err := run(t, "", "filter", "--file", path, "--time", "late")
	assert.True(t, errors.Is(err, logstore.ErrInvalidClockRange))
}

func TestShowAndMap(t *testing.T) {
	path := seedLog(t, fixtures...)

	out, err := run(t, "", "show", "1", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2.2.2.2")
	assert.Contains(t, out, "iOS 17")
	assert.Contains(t, out, "languagePreferences")

	out, err = run(t, "", "map", "1", "--file", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "https://uri.amap.com/marker?position="), out)

	out, err = run(t, "", "map", "0", "--file", path)
	require.NoError(t, err)
	assert.Equal(t, "#\n", out)

	_, err = run(t, "", "show", "9", "--file", path)
	assert.True(t, errors.Is(err, errNoSuchPosition))

	_, err = run(t, "", "show", "x", "--file", path)
	assert.Error(t, err)
}

func TestDelete(t *testing.T) {
	path := seedLog(t, fixtures...)

	// Declining leaves the log alone.
	out, err := run(t, "n\n", "delete", "1", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Aborted")

	out, err = run(t, "y\n", "delete", "1", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 record(s)")

	out, err = run(t, "", "delete", "0,5", "--yes", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted 1 record(s)")

	records, err := logstore.NewFileStore(path).ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "1.1.1.9", records[0].PublicIP.String())
}

func TestParsePositions(t *testing.T) {
	got, err := parsePositions([]string{"3", "1,2", " 4 "})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 2, 4}, got)

	_, err = parsePositions([]string{"-1"})
	assert.Error(t, err)
	_, err = parsePositions([]string{","})
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	path := seedLog(t, fixtures...)
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "logs.csv")
	out, err := run(t, "", "export", "--file", path, "--out", csvPath, "--device", "Mobile")
	require.NoError(t, err)
	assert.Contains(t, out, "Exported 2 record(s)")

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\ufeff")))
	assert.Equal(t, 3, bytes.Count(data, []byte("\n")))

	xzPath := filepath.Join(dir, "logs.csv.xz")
	_, err = run(t, "", "export", "--file", path, "--out", xzPath, "--xz")
	require.NoError(t, err)

	f, err := os.Open(xzPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck // test
	zr, err := xz.NewReader(f)
	require.NoError(t, err)
	var plain bytes.Buffer
	_, err = plain.ReadFrom(zr)
	require.NoError(t, err)
	assert.Equal(t, 4, bytes.Count(plain.Bytes(), []byte("\n")))

	_, err = run(t, "", "export", "--file", path)
	assert.Error(t, err, "--out is required")
}

func TestStats(t *testing.T) {
	path := seedLog(t, fixtures...)

	out, err := run(t, "", "stats", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Total records: 3")
	assert.Contains(t, out, "Unique IPs:    3")
	assert.Contains(t, out, "With location: 1")
	assert.Contains(t, out, "iOS")
}

func appendFixtures(t *testing.T, store *logstore.FileStore, at time.Time, bodies ...string) {
	t.Helper()
	for i, body := range bodies {
		var m map[string]json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(body), &m))
		rec := logstore.NewRecord(at.Add(time.Duration(i)*time.Second), m)
		require.NoError(t, store.Append(context.Background(), rec))
	}
}

func TestWatcher(t *testing.T) {
	path := seedLog(t, fixtures[:1]...)
	store := logstore.NewFileStore(path)
	ctx := context.Background()

	records, err := store.ReadAll(ctx)
	require.NoError(t, err)
	w := newWatcher(records)
	assert.Empty(t, w.next(records))

	appendFixtures(t, store, time.Date(2024, 5, 2, 8, 0, 0, 0, time.Local), fixtures[1:]...)
	records, err = store.ReadAll(ctx)
	require.NoError(t, err)
	fresh := w.next(records)
	require.Len(t, fresh, 2)
	assert.Equal(t, 1, fresh[0].Position)
	assert.Equal(t, 2, fresh[1].Position)

	// A deletion alone reports nothing.
	_, err = store.Delete(ctx, []int{0, 1})
	require.NoError(t, err)
	records, err = store.ReadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, w.next(records))
}

func TestWatcher_DeleteThenAppendBetweenPolls(t *testing.T) {
	path := seedLog(t, fixtures...)
	store := logstore.NewFileStore(path)
	ctx := context.Background()

	records, err := store.ReadAll(ctx)
	require.NoError(t, err)
	w := newWatcher(records)

	_, err = store.Delete(ctx, []int{0})
	require.NoError(t, err)
	appendFixtures(t, store, time.Date(2024, 5, 2, 8, 0, 0, 0, time.Local),
		`{"public_ip":"5.5.5.5"}`,
		`{"public_ip":"6.6.6.6"}`,
	)

	records, err = store.ReadAll(ctx)
	require.NoError(t, err)
	fresh := w.next(records)
	require.Len(t, fresh, 2)
	assert.Equal(t, "5.5.5.5", fresh[0].PublicIP.String())
	assert.Equal(t, "6.6.6.6", fresh[1].PublicIP.String())
}

func TestWatcher_RepeatedIdenticalRecord(t *testing.T) {
	path := seedLog(t, fixtures[:1]...)
	store := logstore.NewFileStore(path)
	ctx := context.Background()

	records, err := store.ReadAll(ctx)
	require.NoError(t, err)
	w := newWatcher(records)

	// Same content and second as the seeded record.
	appendFixtures(t, store, time.Date(2024, 5, 1, 23, 0, 0, 0, time.Local), fixtures[0])
	records, err = store.ReadAll(ctx)
	require.NoError(t, err)
	fresh := w.next(records)
	require.Len(t, fresh, 1)
	assert.Equal(t, 1, fresh[0].Position)
}
