// Package sqlite provides the SQLite-backed roll history store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/louisbranch/dicenotation/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/dicenotation/internal/services/dice/storage"
	"github.com/louisbranch/dicenotation/internal/services/dice/storage/sqlite/migrations"
)

// Store persists roll history in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.RollStore = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the roll store at path and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	sqlDB, err := sqlitemigrate.Open(context.Background(), filepath.Clean(path), migrations.FS, "")
	if err != nil {
		return nil, fmt.Errorf("open roll store: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// PutRoll inserts one roll record.
func (s *Store) PutRoll(ctx context.Context, record storage.RollRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(record.ID)
	if id == "" {
		return fmt.Errorf("roll id is required")
	}
	if strings.TrimSpace(record.Notation) == "" {
		return fmt.Errorf("notation is required")
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO rolls (
		   id, notation, label, preset, total, modifier, breakdown,
		   seed, seed_source, roll_mode, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		record.Notation,
		record.Label,
		record.Preset,
		record.Total,
		record.Modifier,
		record.Breakdown,
		record.Seed,
		record.SeedSource,
		record.RollMode,
		toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put roll: %w", err)
	}
	return nil
}

const rollColumns = `id, notation, label, preset, total, modifier, breakdown,
		        seed, seed_source, roll_mode, created_at`

// GetRoll returns one roll by id.
func (s *Store) GetRoll(ctx context.Context, id string) (storage.RollRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.RollRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.RollRecord{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.RollRecord{}, fmt.Errorf("roll id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+rollColumns+` FROM rolls WHERE id = ?`, id)
	record, err := scanRoll(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.RollRecord{}, storage.ErrNotFound
		}
		return storage.RollRecord{}, fmt.Errorf("get roll: %w", err)
	}
	return record, nil
}

// ListRecentRolls returns up to limit rolls, newest first. Rolls recorded in
// the same millisecond keep their insertion order reversed.
func (s *Store) ListRecentRolls(ctx context.Context, limit int) ([]storage.RollRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+rollColumns+`
		   FROM rolls
		  ORDER BY created_at DESC, rowid DESC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list rolls: %w", err)
	}
	defer rows.Close()

	records := make([]storage.RollRecord, 0, limit)
	for rows.Next() {
		record, err := scanRoll(rows)
		if err != nil {
			return nil, fmt.Errorf("scan roll: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rolls: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoll(row rowScanner) (storage.RollRecord, error) {
	var record storage.RollRecord
	var createdAt int64
	err := row.Scan(
		&record.ID,
		&record.Notation,
		&record.Label,
		&record.Preset,
		&record.Total,
		&record.Modifier,
		&record.Breakdown,
		&record.Seed,
		&record.SeedSource,
		&record.RollMode,
		&createdAt,
	)
	if err != nil {
		return storage.RollRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	return record, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed: rolls.id")
}
