package convert

import (
	"errors"
	"testing"

	registryv1 "github.com/and161185/car-registry/api/registryv1"
	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/model"
	"github.com/and161185/car-registry/internal/registry"
)

func addrOf(b byte) model.Address {
	var a model.Address
	for i := range a {
		a[i] = b
	}
	return a
}

func TestFromRegisterUser_OK(t *testing.T) {
	t.Parallel()

	in := &registryv1.RegisterUserRequest{
		User:                 addrOf(1).String(),
		UserName:             "alice",
		RecoveryEncryptedKey: []byte{1, 2},
		Role:                 "Inspector",
	}
	got, err := FromRegisterUser(in)
	if err != nil {
		t.Fatalf("FromRegisterUser: %v", err)
	}
	if got.User != addrOf(1) || got.UserName != "alice" || got.Role != model.RoleInspector {
		t.Fatalf("unexpected input: %+v", got)
	}
	if string(got.RecoveryEncryptedKey) != "\x01\x02" {
		t.Fatalf("blob mismatch")
	}
}

func TestFromRegisterUser_BadRole(t *testing.T) {
	t.Parallel()

	_, err := FromRegisterUser(&registryv1.RegisterUserRequest{User: addrOf(1).String(), Role: "Mayor"})
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("want InvalidArgument, got %v", err)
	}
}

func TestParser_FirstErrorWins(t *testing.T) {
	t.Parallel()

	_, err := FromVerifyUser(&registryv1.VerifyUserRequest{Verifier: "0OIl", Target: "also-bad"})
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("want InvalidArgument, got %v", err)
	}
	if got := err.Error(); len(got) < 8 || got[:8] != "verifier" {
		t.Fatalf("want verifier error first, got %q", got)
	}
}

func TestFromTransferCar_OptionalBuyRequest(t *testing.T) {
	t.Parallel()

	base := registryv1.TransferCarRequest{
		Car:          addrOf(2).String(),
		NewOwner:     model.Pubkey(addrOf(3)).String(),
		NewOwnerUser: addrOf(4).String(),
	}

	got, err := FromTransferCar(&base)
	if err != nil {
		t.Fatalf("FromTransferCar: %v", err)
	}
	if got.BuyRequest != nil {
		t.Fatalf("want nil buy request")
	}

	empty := ""
	base.BuyRequest = &empty
	if got, _ = FromTransferCar(&base); got.BuyRequest != nil {
		t.Fatalf("empty buy request must be nil")
	}

	br := addrOf(5).String()
	base.BuyRequest = &br
	got, err = FromTransferCar(&base)
	if err != nil || got.BuyRequest == nil || *got.BuyRequest != addrOf(5) {
		t.Fatalf("buy request not parsed: %+v err=%v", got, err)
	}

	bad := "short"
	base.BuyRequest = &bad
	if _, err := FromTransferCar(&base); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("want InvalidArgument, got %v", err)
	}
}

func TestFromIssueConformityReport_Status(t *testing.T) {
	t.Parallel()

	in := &registryv1.IssueConformityReportRequest{
		Expert:           addrOf(1).String(),
		Car:              addrOf(2).String(),
		Report:           addrOf(3).String(),
		ReportID:         "c-1",
		ConformityStatus: "Pass",
	}
	got, err := FromIssueConformityReport(in)
	if err != nil {
		t.Fatalf("FromIssueConformityReport: %v", err)
	}
	if got.ConformityStatus != model.ConformityPass {
		t.Fatalf("status = %s", got.ConformityStatus)
	}

	in.ConformityStatus = "Maybe"
	if _, err := FromIssueConformityReport(in); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("want InvalidArgument, got %v", err)
	}
}

func TestToTransitionResponse_SplitsWrites(t *testing.T) {
	t.Parallel()

	eff := registry.Effects{Writes: []registry.Write{
		{Address: addrOf(1), Create: true},
		{Address: addrOf(2)},
		{Address: addrOf(3)},
	}}
	resp := ToTransitionResponse(eff)
	if len(resp.Created) != 1 || resp.Created[0] != addrOf(1).String() {
		t.Fatalf("created = %v", resp.Created)
	}
	if len(resp.Updated) != 2 || resp.Updated[1] != addrOf(3).String() {
		t.Fatalf("updated = %v", resp.Updated)
	}
}

func TestGetRecordResponse_Roundtrip(t *testing.T) {
	t.Parallel()

	car := &model.Car{VIN: "1HGBH41JXMN109186", Brand: "Honda", Year: 2021, IsActive: true}
	resp, err := ToGetRecordResponse(car)
	if err != nil {
		t.Fatalf("ToGetRecordResponse: %v", err)
	}
	if resp.Kind != "Car" {
		t.Fatalf("kind = %s", resp.Kind)
	}
	rec, err := FromGetRecordResponse(resp)
	if err != nil {
		t.Fatalf("FromGetRecordResponse: %v", err)
	}
	if got := rec.(*model.Car); got.VIN != car.VIN || got.Year != 2021 {
		t.Fatalf("decoded car mismatch: %+v", got)
	}

	resp.Kind = "User"
	if _, err := FromGetRecordResponse(resp); err == nil {
		t.Fatalf("want kind mismatch error")
	}
}
