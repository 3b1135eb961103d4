// Package repository defines the record store implemented by concrete backends.
package repository

import (
	"context"
	"fmt"

	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/model"
)

// Tx is the view of the store inside one transition. Reads lock the address for
// the rest of the transaction; writes become visible only on commit.
type Tx interface {
	// Read loads the record at addr into rec.
	Read(ctx context.Context, addr model.Address, rec model.Record) error
	// Exists reports whether addr is occupied.
	Exists(ctx context.Context, addr model.Address) (bool, error)
	// Create stores rec at an unoccupied addr.
	Create(ctx context.Context, addr model.Address, rec model.Record) error
	// Update replaces the record at an occupied addr.
	Update(ctx context.Context, addr model.Address, rec model.Record) error
}

// Entry is a committed record snapshot with its address.
type Entry struct {
	Address model.Address
	Record  model.Record
}

// Store is durable keyed record storage.
type Store interface {
	// Atomically runs fn in one all-or-nothing transaction; fn's error rolls back.
	Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Get returns the committed record at addr.
	Get(ctx context.Context, addr model.Address) (model.Record, error)
	// List returns every committed record of kind.
	List(ctx context.Context, kind model.Kind) ([]Entry, error)
	// Close releases backend resources.
	Close() error
}

// DecodeInto decodes data into rec, rejecting records of another kind.
func DecodeInto(addr model.Address, data []byte, rec model.Record) error {
	k, err := model.KindOf(data)
	if err != nil {
		return fmt.Errorf("record %s: %w", addr, err)
	}
	if k != rec.Kind() {
		return fmt.Errorf("record %s is %s, want %s: %w", addr, k, rec.Kind(), errs.ErrRelationMismatch)
	}
	return rec.UnmarshalBinary(data)
}
