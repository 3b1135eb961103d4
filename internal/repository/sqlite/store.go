// Package sqlite is an embedded single-writer record store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/migrate"
	"github.com/and161185/car-registry/internal/model"
	"github.com/and161185/car-registry/internal/repository"
)

// Store keeps records in one SQLite database. A single connection serializes
// writers, so every transition runs with exclusive access.
type Store struct {
	db *sql.DB
}

var _ repository.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies migrations.
// Use ":memory:" for a throwaway store.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := migrate.UpSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Atomically runs fn in one SQLite transaction.
func (s *Store) Atomically(ctx context.Context, fn func(context.Context, repository.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(ctx, &sqlTx{tx: tx})
}

// Get selects a committed record.
func (s *Store) Get(ctx context.Context, addr model.Address) (model.Record, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM records WHERE address = ?`, addr.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.Decode(data)
}

// List selects every record of kind in insertion order.
func (s *Store) List(ctx context.Context, kind model.Kind) ([]repository.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT address, data FROM records WHERE kind = ? ORDER BY seq`, string(kind))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []repository.Entry
	for rows.Next() {
		var (
			addrText string
			data     []byte
		)
		if err := rows.Scan(&addrText, &data); err != nil {
			return nil, err
		}
		addr, err := model.ParseAddress(addrText)
		if err != nil {
			return nil, err
		}
		rec, err := model.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", addrText, err)
		}
		out = append(out, repository.Entry{Address: addr, Record: rec})
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

type sqlTx struct{ tx *sql.Tx }

func (t *sqlTx) Read(ctx context.Context, addr model.Address, rec model.Record) error {
	var data []byte
	err := t.tx.QueryRowContext(ctx, `SELECT data FROM records WHERE address = ?`, addr.String()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", rec.Kind(), addr, errs.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return repository.DecodeInto(addr, data, rec)
}

func (t *sqlTx) Exists(ctx context.Context, addr model.Address) (bool, error) {
	var ok bool
	err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM records WHERE address = ?)`, addr.String()).Scan(&ok)
	return ok, err
}

func (t *sqlTx) Create(ctx context.Context, addr model.Address, rec model.Record) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	const q = `
INSERT INTO records (address, kind, data, seq)
VALUES (?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM records))`
	if _, err := t.tx.ExecContext(ctx, q, addr.String(), string(rec.Kind()), data); err != nil {
		if isConstraint(err) {
			return fmt.Errorf("%s %s: %w", rec.Kind(), addr, errs.ErrAlreadyExists)
		}
		return err
	}
	return nil
}

func (t *sqlTx) Update(ctx context.Context, addr model.Address, rec model.Record) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	const q = `
UPDATE records SET data = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
WHERE address = ? AND kind = ?`
	res, err := t.tx.ExecContext(ctx, q, data, addr.String(), string(rec.Kind()))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", rec.Kind(), addr, errs.ErrNotFound)
	}
	return nil
}

func isConstraint(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.Code == sqlite3.ErrConstraint
}
