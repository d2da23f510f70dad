// Package eventstore provides the durable transaction-event index used by
// the simulator backend and the fullnode. Uses SQLite with WAL mode; the
// index is append-only, so epoch transitions never drop historical rows.
package eventstore

import (
	"database/sql"
	_ "embed"
	"encoding/hex"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/chainscript/internal/chain"
)

//go:embed schema.sql
var schemaSQL string

// Store indexes transaction events and checkpoints.
type Store struct {
	db *sql.DB
}

// Open creates or opens the index at path; ":memory:" gives a fresh
// in-memory index, one per scenario.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event index: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to event index: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under the scenario's sequential command stream.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the index.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append writes a transaction's events. Events must already carry their
// within-transaction sequence numbers.
func (s *Store) Append(events []chain.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin event append: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		"INSERT INTO events (tx_digest, event_seq, sender, event_type, payload) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.Exec(
			ev.TxDigest.String(), ev.Seq, ev.Sender.String(), ev.Type, ev.Payload,
		); err != nil {
			return fmt.Errorf("insert event %d of %s: %w", ev.Seq, ev.TxDigest, err)
		}
	}
	return tx.Commit()
}

// QueryByTxAsc returns up to limit events for a transaction digest,
// ordered oldest first. An unknown digest returns an empty slice, and a
// non-positive limit returns nothing.
func (s *Store) QueryByTxAsc(txDigest chain.Digest, limit int) ([]chain.Event, error) {
	if limit <= 0 {
		return []chain.Event{}, nil
	}
	rows, err := s.db.Query(
		"SELECT event_seq, sender, event_type, payload FROM events WHERE tx_digest = ? ORDER BY event_seq ASC LIMIT ?",
		txDigest.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("query events for %s: %w", txDigest, err)
	}
	defer rows.Close()

	events := []chain.Event{}
	for rows.Next() {
		var (
			seq       uint64
			senderHex string
			eventType string
			payload   []byte
		)
		if err := rows.Scan(&seq, &senderHex, &eventType, &payload); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		sender, err := decodeAddress(senderHex)
		if err != nil {
			return nil, fmt.Errorf("corrupt sender in event row: %w", err)
		}
		events = append(events, chain.Event{
			TxDigest: txDigest,
			Seq:      seq,
			Sender:   sender,
			Type:     eventType,
			Payload:  payload,
		})
	}
	return events, rows.Err()
}

// RecordCheckpoint persists a verified checkpoint row.
func (s *Store) RecordCheckpoint(v *chain.VerifiedCheckpoint) error {
	_, err := s.db.Exec(
		"INSERT INTO checkpoints (seq, epoch, timestamp_ms, content_digest, prev_digest, tx_count) VALUES (?, ?, ?, ?, ?, ?)",
		v.SequenceNumber, v.Epoch, v.TimestampMs,
		v.Digest().String(), v.PreviousDigest.String(), len(v.Transactions))
	if err != nil {
		return fmt.Errorf("record checkpoint %d: %w", v.SequenceNumber, err)
	}
	return nil
}

// CheckpointCount returns the number of recorded checkpoints.
func (s *Store) CheckpointCount() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM checkpoints").Scan(&n); err != nil {
		return 0, fmt.Errorf("count checkpoints: %w", err)
	}
	return n, nil
}

func decodeAddress(s string) (chain.Address, error) {
	if len(s) >= 2 && s[:2] == "0x" {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return chain.Address{}, err
	}
	return chain.AddressFromBytes(raw)
}
