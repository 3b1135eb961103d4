package model

import (
	"fmt"

	"github.com/and161185/car-registry/internal/errs"
)

// Role is the flat actor role stored on a User.
type Role uint8

const (
	RoleNormal Role = iota
	RoleInspector
	RoleConformityExpert
	RoleGovernment
)

var roleNames = []string{"Normal", "Inspector", "ConformityExpert", "Government"}

func (r Role) String() string { return enumName(roleNames, uint8(r)) }

// ParseRole parses a role name.
func ParseRole(s string) (Role, error) {
	v, err := enumParse(roleNames, s, "role")
	return Role(v), err
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(b []byte) error {
	v, err := ParseRole(string(b))
	*r = v
	return err
}

// VerificationStatus is a latch: Pending -> Verified | Rejected.
type VerificationStatus uint8

const (
	VerificationPending VerificationStatus = iota
	VerificationVerified
	VerificationRejected
)

var verificationNames = []string{"Pending", "Verified", "Rejected"}

func (s VerificationStatus) String() string { return enumName(verificationNames, uint8(s)) }

func (s VerificationStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *VerificationStatus) UnmarshalText(b []byte) error {
	v, err := enumParse(verificationNames, string(b), "verification status")
	*s = VerificationStatus(v)
	return err
}

// Transition returns the next status or ErrInvalidState when the move is not in the table.
func (s VerificationStatus) Transition(to VerificationStatus) (VerificationStatus, error) {
	if s == VerificationPending && (to == VerificationVerified || to == VerificationRejected) {
		return to, nil
	}
	return s, fmt.Errorf("verification %s -> %s: %w", s, to, errs.ErrInvalidState)
}

// BuyRequestStatus is a latch: Pending -> Accepted | Rejected.
type BuyRequestStatus uint8

const (
	BuyPending BuyRequestStatus = iota
	BuyAccepted
	BuyRejected
)

var buyNames = []string{"Pending", "Accepted", "Rejected"}

func (s BuyRequestStatus) String() string { return enumName(buyNames, uint8(s)) }

func (s BuyRequestStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *BuyRequestStatus) UnmarshalText(b []byte) error {
	v, err := enumParse(buyNames, string(b), "buy request status")
	*s = BuyRequestStatus(v)
	return err
}

// Terminal reports whether no further transition is allowed.
func (s BuyRequestStatus) Terminal() bool { return s != BuyPending }

// Transition returns the next status or ErrInvalidState.
func (s BuyRequestStatus) Transition(to BuyRequestStatus) (BuyRequestStatus, error) {
	if s == BuyPending && (to == BuyAccepted || to == BuyRejected) {
		return to, nil
	}
	return s, fmt.Errorf("buy request %s -> %s: %w", s, to, errs.ErrInvalidState)
}

// Approval is a one-way owner approval latch: Pending -> Approved.
type Approval uint8

const (
	ApprovalPending Approval = iota
	ApprovalApproved
)

var approvalNames = []string{"Pending", "Approved"}

func (a Approval) String() string { return enumName(approvalNames, uint8(a)) }

// Approved reports the latch as a boolean.
func (a Approval) Approved() bool { return a == ApprovalApproved }

func (a Approval) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Approval) UnmarshalText(b []byte) error {
	v, err := enumParse(approvalNames, string(b), "approval")
	*a = Approval(v)
	return err
}

// Approve flips the latch or fails with ErrInvalidState when already approved.
func (a Approval) Approve() (Approval, error) {
	if a != ApprovalPending {
		return a, fmt.Errorf("approval %s -> Approved: %w", a, errs.ErrInvalidState)
	}
	return ApprovalApproved, nil
}

// InspectionStatus is the car-level inspection outcome.
type InspectionStatus uint8

const (
	InspectionPending InspectionStatus = iota
	InspectionPassed
	InspectionFailed
	InspectionExpired
)

var inspectionNames = []string{"Pending", "Passed", "Failed", "Expired"}

func (s InspectionStatus) String() string { return enumName(inspectionNames, uint8(s)) }

func (s InspectionStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *InspectionStatus) UnmarshalText(b []byte) error {
	v, err := enumParse(inspectionNames, string(b), "inspection status")
	*s = InspectionStatus(v)
	return err
}

// ConformityStatus is the pass/fail verdict of a conformity report.
type ConformityStatus uint8

const (
	ConformityFail ConformityStatus = iota
	ConformityPass
)

var conformityNames = []string{"Fail", "Pass"}

func (s ConformityStatus) String() string { return enumName(conformityNames, uint8(s)) }

func (s ConformityStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *ConformityStatus) UnmarshalText(b []byte) error {
	v, err := enumParse(conformityNames, string(b), "conformity status")
	*s = ConformityStatus(v)
	return err
}

func enumName(names []string, v uint8) string {
	if int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("Unknown(%d)", v)
}

func enumParse(names []string, s, what string) (uint8, error) {
	for i, n := range names {
		if n == s {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("%s %q: %w", what, s, errs.ErrInvalidArgument)
}

func enumValid(names []string, v uint8) bool { return int(v) < len(names) }
