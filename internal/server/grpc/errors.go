package grpcserver

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/and161185/car-registry/internal/crypto"
	"github.com/and161185/car-registry/internal/errs"
)

var codeOf = []struct {
	err  error
	code codes.Code
}{
	{crypto.ErrInvalidProof, codes.Unauthenticated},
	{errs.ErrNotFound, codes.NotFound},
	{errs.ErrAlreadyExists, codes.AlreadyExists},
	{errs.ErrUnauthorized, codes.PermissionDenied},
	{errs.ErrRelationMismatch, codes.InvalidArgument},
	{errs.ErrInvalidArgument, codes.InvalidArgument},
	{errs.ErrModificationsTooLong, codes.InvalidArgument},
	{errs.ErrStampTooLong, codes.InvalidArgument},
	{errs.ErrNotesTooLong, codes.InvalidArgument},
	{errs.ErrNoBump, codes.InvalidArgument},
	{errs.ErrInvalidState, codes.FailedPrecondition},
	{errs.ErrInvalidReport, codes.FailedPrecondition},
	{errs.ErrNotAuthorizedConformityExpert, codes.FailedPrecondition},
	{errs.ErrConformityExpertNotVerified, codes.FailedPrecondition},
	{errs.ErrRateLimited, codes.ResourceExhausted},
	{errs.ErrConflict, codes.Aborted},
}

// toStatus maps a registry failure to a gRPC status whose message starts with the
// taxonomy name ("InvalidState: ...").
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	for _, c := range codeOf {
		if errors.Is(err, c.err) {
			if c.code == codes.Unauthenticated {
				return status.Error(c.code, "Unauthenticated: "+err.Error())
			}
			return status.Error(c.code, errs.Code(err)+": "+err.Error())
		}
	}
	return status.Error(codes.Internal, "Internal: internal error")
}

// FromStatus recovers the registry sentinel carried in a status message, so callers
// on the far side of the wire can use errors.Is. Statuses without a known prefix are
// returned unchanged.
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok || st.Code() == codes.OK {
		return err
	}
	name, _, found := strings.Cut(st.Message(), ": ")
	if !found {
		return err
	}
	sentinel := errs.FromCode(name)
	if sentinel == nil {
		return err
	}
	return &remoteError{sentinel: sentinel, status: err}
}

type remoteError struct {
	sentinel error
	status   error
}

func (e *remoteError) Error() string { return e.status.Error() }

func (e *remoteError) Is(target error) bool { return target == e.sentinel }

func (e *remoteError) Unwrap() error { return e.status }
