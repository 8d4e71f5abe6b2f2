package sqliteback

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rzbill/scribe/internal/backend"
)

//go:embed schema.sql
var schemaSQL string

// Store implements backend.Store and backend.Replayer on a SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path, applies the pragmas and
// schema, and returns the store. Safe to call on an existing database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqliteback: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqliteback: connect: %w", err)
	}

	// SQLite allows one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY under the journal's serialized write pattern.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqliteback: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqliteback: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// WriteOne implements backend.Store.
func (s *Store) WriteOne(ctx context.Context, rec backend.Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO journal (stream_id, seq, deleted, sender, payload) VALUES (?, ?, ?, ?, ?)`,
		rec.StreamID, int64(rec.Seq), boolInt(rec.Deleted), rec.Sender, rec.Payload)
	return err
}

// WriteBatch implements backend.Store. All records commit in one
// transaction: either all persist or none do.
func (s *Store) WriteBatch(ctx context.Context, recs []backend.Record) error {
	if len(recs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO journal (stream_id, seq, deleted, sender, payload) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx, rec.StreamID, int64(rec.Seq), boolInt(rec.Deleted), rec.Sender, rec.Payload); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// DeleteRange implements backend.Store. Permanent deletes remove rows;
// non-permanent deletes set the deleted flag so the rows stay visible to
// replay's sequence accounting.
func (s *Store) DeleteRange(ctx context.Context, streamID string, fromSeq, toSeq uint64, permanent bool) error {
	var err error
	if permanent {
		_, err = s.db.ExecContext(ctx,
			`DELETE FROM journal WHERE stream_id = ? AND seq BETWEEN ? AND ?`,
			streamID, int64(fromSeq), int64(toSeq))
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE journal SET deleted = 1 WHERE stream_id = ? AND seq BETWEEN ? AND ?`,
			streamID, int64(fromSeq), int64(toSeq))
	}
	return err
}

// Confirm implements backend.Store. The mark carries the confirmation
// time in milliseconds; re-confirming refreshes it.
func (s *Store) Confirm(ctx context.Context, streamID string, seqNr uint64, channelID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO confirmations (stream_id, seq, channel_id, at_ms) VALUES (?, ?, ?, ?)`,
		streamID, int64(seqNr), channelID, time.Now().UnixMilli())
	return err
}

// ReplayStream implements backend.Replayer. onEach sees non-deleted
// records ascending; the returned max sequence counts deleted records too.
func (s *Store) ReplayStream(ctx context.Context, streamID string, fromSeq, toSeq uint64, onEach func(backend.Record)) (uint64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, deleted, sender, payload FROM journal
		 WHERE stream_id = ? AND seq BETWEEN ? AND ? ORDER BY seq`,
		streamID, int64(fromSeq), int64(toSeq))
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var maxSeq uint64
	for rows.Next() {
		var (
			seq     int64
			deleted int64
			sender  string
			payload []byte
		)
		if err := rows.Scan(&seq, &deleted, &sender, &payload); err != nil {
			return maxSeq, err
		}
		maxSeq = uint64(seq)
		if deleted != 0 {
			continue
		}
		onEach(backend.Record{
			StreamID: streamID,
			Seq:      uint64(seq),
			Sender:   sender,
			Payload:  payload,
		})
	}
	return maxSeq, rows.Err()
}

// Confirmed reports whether channelID has a confirmation mark at seqNr.
func (s *Store) Confirmed(ctx context.Context, streamID string, seqNr uint64, channelID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM confirmations WHERE stream_id = ? AND seq = ? AND channel_id = ?`,
		streamID, int64(seqNr), channelID).Scan(&n)
	return n > 0, err
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
