package logstore

import (
	"context"
)

// Store is an append-only fingerprint log with whole-record deletion.
//
// ReadAll returns records newest first, each carrying its Position in append
// order. Delete takes those positions, not indexes into a sorted or filtered
// view.
type Store interface {
	Append(ctx context.Context, rec Record) error
	ReadAll(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, positions []int) (int, error)
	Close() error
}
