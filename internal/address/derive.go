// Package address derives deterministic record addresses from typed seed tuples.
//
// An address is blake2b-256(seed_0 ‖ … ‖ seed_n ‖ bump ‖ programID ‖ marker), searched
// from bump 255 downwards until the digest is not a valid Ed25519 point. Addresses
// therefore never collide with keys someone could hold a private key for.
package address

import (
	"fmt"

	"filippo.io/edwards25519"
	"golang.org/x/crypto/blake2b"

	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/model"
)

const (
	// MaxSeedLen bounds every seed component.
	MaxSeedLen = 32
	// MaxSeeds bounds the number of seed components, bump excluded.
	MaxSeeds = 16

	marker = "RegistryDerivedAddress"
)

// Seed tags of the registry record kinds.
const (
	TagUser             = "user"
	TagCar              = "car"
	TagBuyRequest       = "buy_request"
	TagCarReport        = "car_report"
	TagConformityReport = "conformity_report"
)

// Deriver computes addresses scoped to one program identity.
type Deriver struct {
	ProgramID model.Pubkey
}

// New returns a Deriver whose program identity is blake2b-256 of name.
func New(name string) Deriver {
	return Deriver{ProgramID: model.Pubkey(blake2b.Sum256([]byte(name)))}
}

// Derive returns the address and bump for seeds.
func (d Deriver) Derive(seeds ...[]byte) (model.Address, uint8, error) {
	if err := checkSeeds(seeds); err != nil {
		return model.Address{}, 0, err
	}
	for bump := 255; bump >= 0; bump-- {
		addr := d.hash(seeds, uint8(bump))
		if !onCurve(addr) {
			return addr, uint8(bump), nil
		}
	}
	return model.Address{}, 0, errs.ErrNoBump
}

// WithBump recomputes the address for seeds and a known bump.
func (d Deriver) WithBump(bump uint8, seeds ...[]byte) (model.Address, error) {
	if err := checkSeeds(seeds); err != nil {
		return model.Address{}, err
	}
	addr := d.hash(seeds, bump)
	if onCurve(addr) {
		return model.Address{}, fmt.Errorf("bump %d lands on curve: %w", bump, errs.ErrInvalidArgument)
	}
	return addr, nil
}

func (d Deriver) hash(seeds [][]byte, bump uint8) model.Address {
	h, _ := blake2b.New256(nil)
	for _, s := range seeds {
		h.Write(s)
	}
	h.Write([]byte{bump})
	h.Write(d.ProgramID[:])
	h.Write([]byte(marker))
	var out model.Address
	copy(out[:], h.Sum(nil))
	return out
}

func checkSeeds(seeds [][]byte) error {
	if len(seeds) > MaxSeeds {
		return fmt.Errorf("%d seeds > %d: %w", len(seeds), MaxSeeds, errs.ErrInvalidArgument)
	}
	for i, s := range seeds {
		if len(s) > MaxSeedLen {
			return fmt.Errorf("seed[%d] is %d bytes > %d: %w", i, len(s), MaxSeedLen, errs.ErrInvalidArgument)
		}
	}
	return nil
}

func onCurve(a model.Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}
