// Package registry implements the registry state machine.
//
// Every transition is a pure function of the caller, its arguments and the records
// loaded for it. It either returns the complete set of writes to commit or a typed
// error; it never touches storage itself. Checks run in a fixed order: relations,
// authorization, argument constraints, state preconditions.
package registry

import (
	"fmt"
	"unicode/utf8"

	"github.com/and161185/car-registry/internal/address"
	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/guard"
	"github.com/and161185/car-registry/internal/model"
)

// Config tunes policy that is not fixed by the record layout.
type Config struct {
	// InspectionPassThreshold is the minimum overall condition for a Passed inspection.
	InspectionPassThreshold uint8
	// GovernmentKeys, when non-empty, limits who may register with the Government role.
	GovernmentKeys []model.Pubkey
}

// DefaultConfig returns the stock policy.
func DefaultConfig() Config {
	return Config{InspectionPassThreshold: 5}
}

// Machine applies transitions.
type Machine struct {
	cfg     Config
	deriver address.Deriver
}

// New constructs a Machine.
func New(cfg Config, d address.Deriver) *Machine {
	return &Machine{cfg: cfg, deriver: d}
}

// Deriver exposes the address scheme the machine checks relations against.
func (m *Machine) Deriver() address.Deriver { return m.deriver }

// Call describes who submitted a transition and when it is applied.
type Call struct {
	// Caller is the primary signer.
	Caller model.Pubkey
	// Signers holds every key with a valid authorization proof, Caller included.
	Signers guard.Signers
	// Scopes records the scope of every narrowed proof in Signers.
	Scopes guard.Scopes
	// Now is the platform time in unix seconds.
	Now int64
}

// Write is one record mutation.
type Write struct {
	Address model.Address
	Record  model.Record
	Create  bool
}

// Effects is the mutation set of a successful transition.
type Effects struct {
	Writes []Write
}

func (e *Effects) create(a model.Address, r model.Record) {
	e.Writes = append(e.Writes, Write{Address: a, Record: r, Create: true})
}

func (e *Effects) update(a model.Address, r model.Record) {
	e.Writes = append(e.Writes, Write{Address: a, Record: r})
}

// Addresses lists the touched addresses in write order.
func (e Effects) Addresses() []model.Address {
	out := make([]model.Address, 0, len(e.Writes))
	for _, w := range e.Writes {
		out = append(out, w.Address)
	}
	return out
}

func (m *Machine) relation(name string, supplied model.Address, derive func() (model.Address, uint8, error)) (uint8, error) {
	derived, bump, err := derive()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if err := guard.RequireRelation(name, supplied, derived); err != nil {
		return 0, err
	}
	return bump, nil
}

// callerUser checks that u is the caller's own account.
func callerUser(call Call, u *model.User) error {
	if err := guard.RequireSigner(call.Signers, call.Caller, "caller"); err != nil {
		return err
	}
	return guard.RequireUserOf(u, call.Caller)
}

func text(field, s string, min, max int) error {
	return textErr(field, s, min, max, errs.ErrInvalidArgument)
}

func textErr(field, s string, min, max int, sentinel error) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%s is not valid UTF-8: %w", field, errs.ErrInvalidArgument)
	}
	if len(s) < min {
		return fmt.Errorf("%s is empty: %w", field, errs.ErrInvalidArgument)
	}
	if len(s) > max {
		return fmt.Errorf("%s is %d bytes, max %d: %w", field, len(s), max, sentinel)
	}
	return nil
}

func blob(field string, b []byte, max int) error {
	if len(b) > max {
		return fmt.Errorf("%s is %d bytes, max %d: %w", field, len(b), max, errs.ErrInvalidArgument)
	}
	return nil
}

func firstErr(errors ...error) error {
	for _, err := range errors {
		if err != nil {
			return err
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
