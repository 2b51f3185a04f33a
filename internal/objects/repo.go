package objects

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/starford/tabdex/internal/apperr"
	"github.com/starford/tabdex/internal/models"
)

// DefaultRecentLimit caps Recent when the caller passes no limit.
const DefaultRecentLimit = 50

const recordColumns = `guid, mime, url, hostname, title, body, pinned, timestamp, hidden`

// Put stores rec and returns its guid. A record with a guid replaces any
// record stored under the same guid; a record without one is assigned the
// next number of the store's key sequence.
func (db *DB) Put(ctx context.Context, rec models.ContentRecord) (string, error) {
	hidden := rec.Hidden
	if hidden == nil {
		hidden = map[string]any{}
	}
	hiddenJSON, err := json.Marshal(hidden)
	if err != nil {
		return "", fmt.Errorf("objects: encode hidden fields: %w", err)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("objects: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	args := []any{rec.Mime, rec.URL, rec.Hostname, rec.Title, rec.Body,
		rec.Pinned, rec.Timestamp.UnixMilli(), string(hiddenJSON)}

	guid := rec.GUID
	if guid == "" {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO objects (mime, url, hostname, title, body, pinned, timestamp, hidden)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, args...)
		if err != nil {
			return "", fmt.Errorf("objects: insert: %w", err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return "", fmt.Errorf("objects: insert id: %w", err)
		}
		guid = strconv.FormatInt(seq, 10)
		if _, err := tx.ExecContext(ctx, `UPDATE objects SET guid = ? WHERE seq = ?`, guid, seq); err != nil {
			return "", fmt.Errorf("objects: assign guid: %w", err)
		}
	} else {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO objects (guid, mime, url, hostname, title, body, pinned, timestamp, hidden)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(guid) DO UPDATE SET
				mime      = excluded.mime,
				url       = excluded.url,
				hostname  = excluded.hostname,
				title     = excluded.title,
				body      = excluded.body,
				pinned    = excluded.pinned,
				timestamp = excluded.timestamp,
				hidden    = excluded.hidden
		`, append([]any{guid}, args...)...)
		if err != nil {
			return "", fmt.Errorf("objects: upsert %s: %w", guid, err)
		}
		// Numeric caller keys advance the sequence so later generated keys
		// never collide with them.
		if n, ok := numericKey(guid); ok && n > 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE sqlite_sequence SET seq = MAX(seq, ?) WHERE name = 'objects'`, n); err != nil {
				return "", fmt.Errorf("objects: advance sequence: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("objects: commit: %w", err)
	}
	return guid, nil
}

// Get returns the record stored under guid. The literal key is tried
// first; a numeric-looking guid then falls back to its canonical form, so
// "0042" and "42.0" both find a generated key 42.
func (db *DB) Get(ctx context.Context, guid string) (*models.ContentRecord, error) {
	rec, err := db.get(ctx, guid)
	if !errors.Is(err, apperr.ErrNotFound) {
		return rec, err
	}
	if n, ok := numericKey(guid); ok {
		if alt := strconv.FormatInt(n, 10); alt != guid {
			return db.get(ctx, alt)
		}
	}
	return nil, err
}

func (db *DB) get(ctx context.Context, guid string) (*models.ContentRecord, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM objects WHERE guid = ?`, guid)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("objects: get %s: %w", guid, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("objects: get %s: %w", guid, err)
	}
	return rec, nil
}

// Recent lists records newest first, optionally only pinned ones.
func (db *DB) Recent(ctx context.Context, limit int, pinnedOnly bool) ([]models.ContentRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	q := `SELECT ` + recordColumns + ` FROM objects`
	if pinnedOnly {
		q += ` WHERE pinned = 1`
	}
	q += ` ORDER BY timestamp DESC, seq DESC LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("objects: recent: %w", err)
	}
	defer rows.Close()

	out := []models.ContentRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("objects: recent: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// SetPinned flags or unflags the record stored under guid.
func (db *DB) SetPinned(ctx context.Context, guid string, pinned bool) error {
	rec, err := db.Get(ctx, guid)
	if err != nil {
		return err
	}
	if _, err := db.conn.ExecContext(ctx, `UPDATE objects SET pinned = ? WHERE guid = ?`, pinned, rec.GUID); err != nil {
		return fmt.Errorf("objects: pin %s: %w", guid, err)
	}
	return nil
}

// Count returns the number of stored records.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM objects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("objects: count: %w", err)
	}
	return n, nil
}

// Purge removes every record and restarts the key sequence.
func (db *DB) Purge(ctx context.Context) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("objects: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM objects`); err != nil {
		return fmt.Errorf("objects: purge: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = 'objects'`); err != nil {
		return fmt.Errorf("objects: reset sequence: %w", err)
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.ContentRecord, error) {
	var (
		rec    models.ContentRecord
		ts     int64
		hidden string
	)
	if err := s.Scan(&rec.GUID, &rec.Mime, &rec.URL, &rec.Hostname, &rec.Title, &rec.Body,
		&rec.Pinned, &ts, &hidden); err != nil {
		return nil, err
	}
	rec.Timestamp = time.UnixMilli(ts).UTC()
	if hidden != "" && hidden != "{}" {
		if err := json.Unmarshal([]byte(hidden), &rec.Hidden); err != nil {
			return nil, fmt.Errorf("decode hidden fields: %w", err)
		}
	}
	return &rec, nil
}

// numericKey reports whether guid reads as an integral number.
func numericKey(guid string) (int64, bool) {
	s := strings.TrimSpace(guid)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}
