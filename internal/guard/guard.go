// Package guard holds the stateless authorization predicates evaluated before any mutation.
package guard

import (
	"fmt"

	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/model"
)

// Signers is the set of keys that proved authorization for the current call.
type Signers []model.Pubkey

// Has reports whether k signed the call.
func (s Signers) Has(k model.Pubkey) bool {
	if k.IsZero() {
		return false
	}
	for _, v := range s {
		if v == k {
			return true
		}
	}
	return false
}

// RequireSigner fails unless k signed the call.
func RequireSigner(s Signers, k model.Pubkey, who string) error {
	if !s.Has(k) {
		return fmt.Errorf("%s %s did not sign: %w", who, k, errs.ErrUnauthorized)
	}
	return nil
}

// Scopes maps a signer to the scope its proof was narrowed to. Unscoped proofs have no entry.
type Scopes map[model.Pubkey]string

// RequireScope fails unless k's proof was narrowed to scope.
func RequireScope(s Scopes, k model.Pubkey, scope, who string) error {
	if got, ok := s[k]; !ok || got != scope {
		return fmt.Errorf("%s %s did not authorize %s: %w", who, k, scope, errs.ErrUnauthorized)
	}
	return nil
}

// RequireRelation fails unless the supplied address equals the derived one.
func RequireRelation(name string, supplied, derived model.Address) error {
	if supplied != derived {
		return fmt.Errorf("%s: supplied %s, derived %s: %w", name, supplied, derived, errs.ErrRelationMismatch)
	}
	return nil
}

// RequireUserOf fails unless u belongs to authority.
func RequireUserOf(u *model.User, authority model.Pubkey) error {
	if u.Authority != authority {
		return fmt.Errorf("user %q belongs to %s: %w", u.UserName, u.Authority, errs.ErrRelationMismatch)
	}
	return nil
}

// RequireRole fails unless u holds one of roles.
func RequireRole(u *model.User, roles ...model.Role) error {
	for _, r := range roles {
		if u.Role == r {
			return nil
		}
	}
	return fmt.Errorf("user %q has role %s: %w", u.UserName, u.Role, errs.ErrUnauthorized)
}

// RequireVerified fails unless u is verified.
func RequireVerified(u *model.User) error {
	if !u.Verified() {
		return fmt.Errorf("user %q is %s: %w", u.UserName, u.VerificationStatus, errs.ErrUnauthorized)
	}
	return nil
}

// RequireOwner fails unless caller currently owns car.
func RequireOwner(car *model.Car, caller model.Pubkey) error {
	if car.Owner != caller {
		return fmt.Errorf("%s is not the owner of %s: %w", caller, car.VIN, errs.ErrUnauthorized)
	}
	return nil
}

// RequireKey fails unless caller equals want; used for stored snapshots such as a report's carOwner.
func RequireKey(caller, want model.Pubkey, what string) error {
	if caller != want {
		return fmt.Errorf("%s is not the %s: %w", caller, what, errs.ErrUnauthorized)
	}
	return nil
}
