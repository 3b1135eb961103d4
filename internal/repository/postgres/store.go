package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/model"
	"github.com/and161185/car-registry/internal/repository"
)

// Store implements repository.Store on a single records table.
type Store struct{ db *DB }

var _ repository.Store = (*Store)(nil)

// NewStore constructs a record store.
func NewStore(db *DB) *Store { return &Store{db: db} }

// Atomically runs fn inside a serializable transaction with row locks on every read.
func (s *Store) Atomically(ctx context.Context, fn func(context.Context, repository.Tx) error) (err error) {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			if isSerializationFailure(err) {
				err = fmt.Errorf("%w: %v", errs.ErrConflict, err)
			}
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
			if isSerializationFailure(e) {
				err = fmt.Errorf("%w: %v", errs.ErrConflict, e)
			}
		}
	}()
	return fn(ctx, &pgTx{tx: tx})
}

// Get selects a committed record.
func (s *Store) Get(ctx context.Context, addr model.Address) (model.Record, error) {
	const q = `SELECT data FROM records WHERE address=$1`
	var data []byte
	if err := s.db.Pool.QueryRow(ctx, q, addr.String()).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return model.Decode(data)
}

// List selects every record of kind in creation order.
func (s *Store) List(ctx context.Context, kind model.Kind) ([]repository.Entry, error) {
	const q = `SELECT address, data FROM records WHERE kind=$1 ORDER BY created_at, address`
	rows, err := s.db.Pool.Query(ctx, q, string(kind))
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

// Close closes the pool.
func (s *Store) Close() error {
	s.db.Close()
	return nil
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) Read(ctx context.Context, addr model.Address, rec model.Record) error {
	const q = `SELECT data FROM records WHERE address=$1 FOR UPDATE`
	var data []byte
	if err := t.tx.QueryRow(ctx, q, addr.String()).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s %s: %w", rec.Kind(), addr, errs.ErrNotFound)
		}
		return err
	}
	return repository.DecodeInto(addr, data, rec)
}

func (t *pgTx) Exists(ctx context.Context, addr model.Address) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM records WHERE address=$1)`
	var ok bool
	if err := t.tx.QueryRow(ctx, q, addr.String()).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (t *pgTx) Create(ctx context.Context, addr model.Address, rec model.Record) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	const q = `INSERT INTO records (address, kind, data) VALUES ($1, $2, $3)`
	if _, err := t.tx.Exec(ctx, q, addr.String(), string(rec.Kind()), data); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s %s: %w", rec.Kind(), addr, errs.ErrAlreadyExists)
		}
		return err
	}
	return nil
}

func (t *pgTx) Update(ctx context.Context, addr model.Address, rec model.Record) error {
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	const q = `UPDATE records SET data=$3, updated_at=now() WHERE address=$1 AND kind=$2`
	tag, err := t.tx.Exec(ctx, q, addr.String(), string(rec.Kind()), data)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", rec.Kind(), addr, errs.ErrNotFound)
	}
	return nil
}
