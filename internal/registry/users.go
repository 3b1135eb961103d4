package registry

import (
	"fmt"

	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/guard"
	"github.com/and161185/car-registry/internal/model"
)

// RegisterUserInput creates the caller's account at User.
type RegisterUserInput struct {
	User                   model.Address
	UserName               string
	PublicDataURI          string
	PrivateDataURI         string
	GovernmentEncryptedKey []byte
	RecoveryEncryptedKey   []byte
	Role                   model.Role
}

// RegisterUser creates a Pending user owned by the caller. occupied reports whether
// in.User already holds a record.
func (m *Machine) RegisterUser(call Call, in RegisterUserInput, occupied bool) (Effects, error) {
	if err := text("userName", in.UserName, 1, model.MaxUserNameLen); err != nil {
		return Effects{}, err
	}
	bump, err := m.relation("user", in.User, func() (model.Address, uint8, error) {
		return m.deriver.User(call.Caller, in.UserName)
	})
	if err != nil {
		return Effects{}, err
	}
	if err := guard.RequireSigner(call.Signers, call.Caller, "authority"); err != nil {
		return Effects{}, err
	}
	if in.Role == model.RoleGovernment && len(m.cfg.GovernmentKeys) > 0 && !guard.Signers(m.cfg.GovernmentKeys).Has(call.Caller) {
		return Effects{}, fmt.Errorf("%s may not register as Government: %w", call.Caller, errs.ErrUnauthorized)
	}
	if in.Role > model.RoleGovernment {
		return Effects{}, fmt.Errorf("role %d: %w", in.Role, errs.ErrInvalidArgument)
	}
	if err := firstErr(
		text("publicDataUri", in.PublicDataURI, 0, model.MaxURILen),
		text("privateDataUri", in.PrivateDataURI, 0, model.MaxURILen),
		blob("governmentEncryptedKey", in.GovernmentEncryptedKey, model.MaxKeyBlobLen),
		blob("recoveryEncryptedKey", in.RecoveryEncryptedKey, model.MaxKeyBlobLen),
	); err != nil {
		return Effects{}, err
	}
	if occupied {
		return Effects{}, fmt.Errorf("user %q: %w", in.UserName, errs.ErrAlreadyExists)
	}

	var eff Effects
	eff.create(in.User, &model.User{
		Authority:              call.Caller,
		UserName:               in.UserName,
		PublicDataURI:          in.PublicDataURI,
		PrivateDataURI:         in.PrivateDataURI,
		GovernmentEncryptedKey: in.GovernmentEncryptedKey,
		RecoveryEncryptedKey:   in.RecoveryEncryptedKey,
		Role:                   in.Role,
		VerificationStatus:     model.VerificationPending,
		CreatedAt:              call.Now,
		UpdatedAt:              call.Now,
		Bump:                   bump,
	})
	return eff, nil
}

// VerifyUserInput settles the verification of Target by the government account Verifier.
type VerifyUserInput struct {
	Verifier model.Address
	Target   model.Address
	Approve  bool
}

// VerifyUser moves a Pending user to Verified or Rejected.
func (m *Machine) VerifyUser(call Call, in VerifyUserInput, verifier, target *model.User) (Effects, error) {
	if err := callerUser(call, verifier); err != nil {
		return Effects{}, err
	}
	if err := guard.RequireRole(verifier, model.RoleGovernment); err != nil {
		return Effects{}, err
	}
	to := model.VerificationRejected
	if in.Approve {
		to = model.VerificationVerified
	}
	next, err := target.VerificationStatus.Transition(to)
	if err != nil {
		return Effects{}, fmt.Errorf("verify %q: %w", target.UserName, err)
	}

	updated := *target
	updated.VerificationStatus = next
	updated.VerifiedAt = ptr(call.Now)
	updated.VerifiedBy = ptr(call.Caller)
	updated.UpdatedAt = call.Now

	var eff Effects
	eff.update(in.Target, &updated)
	return eff, nil
}
