// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Registry failure taxonomy. Every rule violation maps to exactly one of these.
var (
	// ErrAlreadyExists indicates the target address is already occupied.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates the caller lacks the required role or relationship.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRelationMismatch indicates a supplied address does not match the one implied by record fields.
	ErrRelationMismatch = errors.New("relation mismatch")

	// ErrInvalidState indicates a transition attempted from a non-permitted state.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidReport indicates the report does not belong to the supplied car.
	ErrInvalidReport = errors.New("invalid report")

	// ErrNotAuthorizedConformityExpert indicates the caller is not a conformity expert.
	ErrNotAuthorizedConformityExpert = errors.New("not authorized conformity expert")

	// ErrConformityExpertNotVerified indicates the conformity expert is not verified yet.
	ErrConformityExpertNotVerified = errors.New("conformity expert not verified")

	// ErrModificationsTooLong indicates modifications exceed the stored bound.
	ErrModificationsTooLong = errors.New("modifications too long")

	// ErrStampTooLong indicates the mines stamp exceeds the stored bound.
	ErrStampTooLong = errors.New("stamp too long")

	// ErrNotesTooLong indicates notes exceed the stored bound.
	ErrNotesTooLong = errors.New("notes too long")

	// ErrInvalidArgument indicates a malformed or out-of-range argument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRateLimited indicates the caller key is temporarily locked out.
	ErrRateLimited = errors.New("rate limited")

	// ErrConflict indicates a serialization failure; the caller may retry.
	ErrConflict = errors.New("conflict")

	// ErrNoBump indicates no disambiguator produced an address outside the reserved subspace.
	ErrNoBump = errors.New("no valid bump")
)

var codes = []struct {
	err  error
	name string
}{
	{ErrAlreadyExists, "AlreadyExists"},
	{ErrNotFound, "NotFound"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrRelationMismatch, "RelationMismatch"},
	{ErrInvalidState, "InvalidState"},
	{ErrInvalidReport, "InvalidReport"},
	{ErrNotAuthorizedConformityExpert, "NotAuthorizedConformityExpert"},
	{ErrConformityExpertNotVerified, "ConformityExpertNotVerified"},
	{ErrModificationsTooLong, "ModificationsTooLong"},
	{ErrStampTooLong, "StampTooLong"},
	{ErrNotesTooLong, "NotesTooLong"},
	{ErrInvalidArgument, "InvalidArgument"},
	{ErrRateLimited, "RateLimited"},
	{ErrConflict, "Conflict"},
	{ErrNoBump, "NoBump"},
}

// Code returns the taxonomy name of err, or "Internal" when err carries no sentinel.
func Code(err error) string {
	if err == nil {
		return "OK"
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.name
		}
	}
	return "Internal"
}

// FromCode maps a taxonomy name back to its sentinel; unknown names yield nil.
func FromCode(name string) error {
	for _, c := range codes {
		if c.name == name {
			return c.err
		}
	}
	return nil
}
