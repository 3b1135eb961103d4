package guard

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/model"
)

func k(b byte) model.Pubkey {
	var p model.Pubkey
	p[0] = b
	return p
}

func TestSigners(t *testing.T) {
	t.Parallel()

	s := Signers{k(1), k(2)}
	require.NoError(t, RequireSigner(s, k(2), "owner"))
	require.ErrorIs(t, RequireSigner(s, k(3), "owner"), errs.ErrUnauthorized)
	require.False(t, Signers{model.Pubkey{}}.Has(model.Pubkey{}))
}

func TestScopes(t *testing.T) {
	t.Parallel()

	s := Scopes{k(1): "transfer:a"}
	require.NoError(t, RequireScope(s, k(1), "transfer:a", "new owner"))
	require.ErrorIs(t, RequireScope(s, k(1), "transfer:b", "new owner"), errs.ErrUnauthorized)
	require.ErrorIs(t, RequireScope(s, k(2), "transfer:a", "new owner"), errs.ErrUnauthorized)
	require.ErrorIs(t, RequireScope(nil, k(1), "transfer:a", "new owner"), errs.ErrUnauthorized)
}

func TestRoleAndVerification(t *testing.T) {
	t.Parallel()

	u := &model.User{Role: model.RoleInspector, VerificationStatus: model.VerificationPending}
	require.NoError(t, RequireRole(u, model.RoleInspector))
	require.ErrorIs(t, RequireRole(u, model.RoleGovernment), errs.ErrUnauthorized)
	require.ErrorIs(t, RequireVerified(u), errs.ErrUnauthorized)

	u.VerificationStatus = model.VerificationVerified
	require.NoError(t, RequireVerified(u))
}

func TestRelations(t *testing.T) {
	t.Parallel()

	var a, b model.Address
	b[0] = 1
	require.NoError(t, RequireRelation("car", a, a))
	require.ErrorIs(t, RequireRelation("car", a, b), errs.ErrRelationMismatch)

	u := &model.User{Authority: k(1)}
	require.NoError(t, RequireUserOf(u, k(1)))
	require.ErrorIs(t, RequireUserOf(u, k(2)), errs.ErrRelationMismatch)
}

func TestOwnership(t *testing.T) {
	t.Parallel()

	c := &model.Car{Owner: k(1)}
	require.NoError(t, RequireOwner(c, k(1)))
	require.ErrorIs(t, RequireOwner(c, k(2)), errs.ErrUnauthorized)
	require.ErrorIs(t, RequireKey(k(1), k(2), "report owner"), errs.ErrUnauthorized)
}
