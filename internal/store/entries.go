package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/splitq/internal/ir"
)

// DomainEntry separates entry digests from other content addresses.
const DomainEntry = "splitq/cache-entry/v1"

// ErrNotFound is returned by Get for a key that has no entry.
var ErrNotFound = errors.New("store: entry not found")

// Entry describes a stored key without its payload.
type Entry struct {
	Seq     int64
	Key     string
	Digest  string
	DataID  string
	RawSize int64
}

// Put stores payload under key, replacing any previous payload.
//
// The payload is compressed and written under a fresh data id before
// the entry is pointed at it, all in one transaction. A replaced entry keeps
// its position in key order.
func (s *Store) Put(ctx context.Context, key string, payload []byte) error {
	dataID := s.ids.Generate()
	body := s.packer.Compress(payload)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put entry: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO payloads (data_id, raw_size, body) VALUES (?, ?, ?)`,
		dataID, len(payload), body,
	); err != nil {
		return fmt.Errorf("put entry: write payload: %w", err)
	}

	var previous string
	err = tx.QueryRowContext(ctx, `SELECT data_id FROM entries WHERE key = ?`, key).Scan(&previous)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("put entry: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO entries (key, digest, data_id) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data_id = excluded.data_id
	`, key, entryDigest(key), dataID); err != nil {
		return fmt.Errorf("put entry: %w", err)
	}

	if previous != "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM payloads WHERE data_id = ?`, previous); err != nil {
			return fmt.Errorf("put entry: drop old payload: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put entry: %w", err)
	}
	s.log.DebugContext(ctx, "stored entry",
		"key_digest", entryDigest(key), "data_id", dataID,
		"raw_size", len(payload), "stored_size", len(body), "replaced", previous != "")
	return nil
}

// Get returns the payload stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT p.body FROM entries e
		JOIN payloads p ON p.data_id = e.data_id
		WHERE e.key = ?
	`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	payload, err := s.unpack.Decompress(body)
	if err != nil {
		return nil, fmt.Errorf("get entry %s: %w", entryDigest(key), err)
	}
	return payload, nil
}

// Keys returns every stored key in insertion order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM entries ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("list keys: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

// Entries returns the metadata of every entry in insertion order.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.seq, e.key, e.digest, e.data_id, p.raw_size
		FROM entries e JOIN payloads p ON p.data_id = e.data_id
		ORDER BY e.seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.Key, &e.Digest, &e.DataID, &e.RawSize); err != nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return out, nil
}

// Delete removes the entry for key and its payload. Deleting a missing key
// is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	defer tx.Rollback()

	var dataID string
	err = tx.QueryRowContext(ctx, `SELECT data_id FROM entries WHERE key = ?`, key).Scan(&dataID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM payloads WHERE data_id = ?`, dataID); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return tx.Commit()
}

func entryDigest(key string) string {
	return ir.ContentDigest(DomainEntry, []byte(key))
}
