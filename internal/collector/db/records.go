package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/locplace/fingerprint/internal/logstore"
)

// Store is a logstore.Store backed by the fingerprint_records table.
// A record's position is its rank by id, which follows insertion order.
type Store struct {
	*DB
}

var _ logstore.Store = (*Store)(nil)

// NewStore returns a record store over db.
func NewStore(db *DB) *Store {
	return &Store{DB: db}
}

// Append inserts rec as one row.
func (s *Store) Append(ctx context.Context, rec logstore.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	_, err = s.Pool.Exec(ctx, `
		INSERT INTO fingerprint_records (recorded_at, payload)
		VALUES ($1, $2)
	`, recordedAt(rec), payload)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// ReadAll returns every record newest first. Rows whose payload no longer
// decodes are logged and skipped but still hold their position.
func (s *Store) ReadAll(ctx context.Context) ([]logstore.Record, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, payload FROM fingerprint_records ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []logstore.Record{}
	pos := 0
	for rows.Next() {
		var (
			id      int64
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		var rec logstore.Record
		if err := json.Unmarshal(payload, &rec); err != nil {
			log.Printf("Record store: skipping malformed row %d: %v", id, err)
			pos++
			continue
		}
		rec.Position = pos
		records = append(records, rec)
		pos++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	logstore.SortNewestFirst(records)
	return records, nil
}

// Delete removes the rows at the given positions in one transaction.
func (s *Store) Delete(ctx context.Context, positions []int) (int, error) {
	if len(positions) == 0 {
		return 0, nil
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // No-op after commit

	ids, err := orderedIDs(ctx, tx)
	if err != nil {
		return 0, err
	}

	victims := idsAt(ids, positions)
	if len(victims) == 0 {
		return 0, nil
	}

	tag, err := tx.Exec(ctx, `DELETE FROM fingerprint_records WHERE id = ANY($1)`, victims)
	if err != nil {
		return 0, fmt.Errorf("delete records: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// orderedIDs locks the table's rows and returns their ids in position order.
func orderedIDs(ctx context.Context, tx pgx.Tx) ([]int64, error) {
	rows, err := tx.Query(ctx, `SELECT id FROM fingerprint_records ORDER BY id FOR UPDATE`)
	if err != nil {
		return nil, fmt.Errorf("query ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan ids: %w", err)
	}
	return ids, nil
}

// idsAt maps positions onto ids, ignoring out-of-range and repeated positions.
func idsAt(ids []int64, positions []int) []int64 {
	seen := make(map[int]struct{}, len(positions))
	var out []int64
	for _, p := range positions {
		if p < 0 || p >= len(ids) {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, ids[p])
	}
	return out
}

// recordedAt is the indexed capture time, or nil for unparseable timestamps.
func recordedAt(rec logstore.Record) *time.Time {
	if !rec.Timestamp.Valid() {
		return nil
	}
	t := rec.Timestamp.Time
	return &t
}
