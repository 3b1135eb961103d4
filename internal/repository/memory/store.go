// Package memory is an in-process record store for tests and single-node development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/model"
	"github.com/and161185/car-registry/internal/repository"
)

type row struct {
	kind model.Kind
	data []byte
	seq  uint64
}

// Store serializes transactions with a store-wide lock.
type Store struct {
	mu   sync.Mutex
	rows map[model.Address]row
	seq  uint64
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store { return &Store{rows: map[model.Address]row{}} }

// Atomically stages writes and applies them only when fn succeeds.
func (s *Store) Atomically(ctx context.Context, fn func(context.Context, repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &tx{s: s, staged: map[model.Address]row{}}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for addr, r := range tx.staged {
		s.rows[addr] = r
	}
	return nil
}

// Get returns a committed record.
func (s *Store) Get(_ context.Context, addr model.Address) (model.Record, error) {
	s.mu.Lock()
	r, ok := s.rows[addr]
	s.mu.Unlock()
	if !ok {
		return nil, errs.ErrNotFound
	}
	return model.Decode(r.data)
}

// List returns committed records of kind in insertion order.
func (s *Store) List(_ context.Context, kind model.Kind) ([]repository.Entry, error) {
	s.mu.Lock()
	type item struct {
		addr model.Address
		r    row
	}
	var items []item
	for a, r := range s.rows {
		if r.kind == kind {
			items = append(items, item{a, r})
		}
	}
	s.mu.Unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].r.seq < items[j].r.seq })
	out := make([]repository.Entry, 0, len(items))
	for _, it := range items {
		rec, err := model.Decode(it.r.data)
		if err != nil {
			return nil, err
		}
		out = append(out, repository.Entry{Address: it.addr, Record: rec})
	}
	return out, nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

type tx struct {
	s      *Store
	staged map[model.Address]row
}

func (t *tx) lookup(addr model.Address) (row, bool) {
	if r, ok := t.staged[addr]; ok {
		return r, true
	}
	r, ok := t.s.rows[addr]
	return r, ok
}

func (t *tx) Read(_ context.Context, addr model.Address, rec model.Record) error {
	r, ok := t.lookup(addr)
	if !ok {
		return fmt.Errorf("%s %s: %w", rec.Kind(), addr, errs.ErrNotFound)
	}
	return repository.DecodeInto(addr, r.data, rec)
}

func (t *tx) Exists(_ context.Context, addr model.Address) (bool, error) {
	_, ok := t.lookup(addr)
	return ok, nil
}

func (t *tx) Create(_ context.Context, addr model.Address, rec model.Record) error {
	if _, ok := t.lookup(addr); ok {
		return fmt.Errorf("%s %s: %w", rec.Kind(), addr, errs.ErrAlreadyExists)
	}
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	t.s.seq++
	t.staged[addr] = row{kind: rec.Kind(), data: data, seq: t.s.seq}
	return nil
}

func (t *tx) Update(_ context.Context, addr model.Address, rec model.Record) error {
	cur, ok := t.lookup(addr)
	if !ok || cur.kind != rec.Kind() {
		return fmt.Errorf("%s %s: %w", rec.Kind(), addr, errs.ErrNotFound)
	}
	data, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	t.staged[addr] = row{kind: rec.Kind(), data: data, seq: cur.seq}
	return nil
}
