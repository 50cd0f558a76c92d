package db

import (
	"reflect"
	"testing"
	"time"

	"github.com/locplace/fingerprint/internal/logstore"
)

func TestIDsAt(t *testing.T) {
	ids := []int64{10, 11, 15, 20}

	tests := []struct {
		name      string
		positions []int
		want      []int64
	}{
		{
			name:      "single",
			positions: []int{2},
			want:      []int64{15},
		},
		{
			name:      "several in any order",
			positions: []int{3, 0},
			want:      []int64{20, 10},
		},
		{
			name:      "duplicates ignored",
			positions: []int{1, 1, 1},
			want:      []int64{11},
		},
		{
			name:      "out of range ignored",
			positions: []int{-1, 4, 99},
			want:      nil,
		},
		{
			name:      "empty",
			positions: nil,
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := idsAt(ids, tt.positions)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("idsAt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordedAt(t *testing.T) {
	valid := logstore.Record{Timestamp: logstore.NewTimestamp(time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local))}
	got := recordedAt(valid)
	if got == nil || !got.Equal(valid.Timestamp.Time) {
		t.Errorf("recordedAt(valid) = %v, want %v", got, valid.Timestamp.Time)
	}

	invalid := logstore.Record{Timestamp: logstore.ParseTimestamp("last tuesday")}
	if got := recordedAt(invalid); got != nil {
		t.Errorf("recordedAt(invalid) = %v, want nil", got)
	}
}
