package registry

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/and161185/car-registry/internal/address"
	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/guard"
	"github.com/and161185/car-registry/internal/model"
)

const (
	testVIN = "1HGBH41JXMN109186"
	now     = int64(1_700_000_000)
)

func newKey(t *testing.T) model.Pubkey {
	t.Helper()
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return model.PubkeyFromEd25519(pub)
}

func signed(caller model.Pubkey, extra ...model.Pubkey) Call {
	return Call{Caller: caller, Signers: append(guard.Signers{caller}, extra...), Now: now}
}

// transferCall is caller's TransferCar call co-signed by newOwner for car.
func transferCall(caller, newOwner model.Pubkey, car model.Address) Call {
	c := signed(caller, newOwner)
	c.Scopes = guard.Scopes{newOwner: TransferScope(car, newOwner)}
	return c
}

type fixture struct {
	m     *Machine
	d     address.Deriver
	gov   model.Pubkey
	owner model.Pubkey
	buyer model.Pubkey

	carAddr model.Address
	car     *model.Car
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d := address.New("registry-test")
	f := &fixture{
		m:     New(DefaultConfig(), d),
		d:     d,
		gov:   newKey(t),
		owner: newKey(t),
		buyer: newKey(t),
	}
	f.carAddr, _, _ = d.Car(f.gov, testVIN)
	eff, err := f.m.RegisterCar(signed(f.gov), RegisterCarInput{
		Car:   f.carAddr,
		VIN:   testVIN,
		Brand: "Honda",
		Model: "Civic",
		Year:  2021,
		Owner: f.owner,
	}, f.user(t, f.gov, "gov", model.RoleGovernment, true), false)
	require.NoError(t, err)
	f.car = eff.Writes[0].Record.(*model.Car)
	return f
}

func (f *fixture) user(t *testing.T, k model.Pubkey, name string, role model.Role, verified bool) *model.User {
	t.Helper()
	u := &model.User{Authority: k, UserName: name, Role: role}
	if verified {
		u.VerificationStatus = model.VerificationVerified
	}
	return u
}

func (f *fixture) userAddr(t *testing.T, k model.Pubkey, name string) model.Address {
	t.Helper()
	a, _, err := f.d.User(k, name)
	require.NoError(t, err)
	return a
}

func (f *fixture) listed(t *testing.T, price uint64) *model.Car {
	t.Helper()
	eff, err := f.m.SetForSale(signed(f.owner), SetForSaleInput{Car: f.carAddr, Price: price}, f.car)
	require.NoError(t, err)
	return eff.Writes[0].Record.(*model.Car)
}

func (f *fixture) buyRequestAddr(t *testing.T, buyer model.Pubkey) model.Address {
	t.Helper()
	a, _, err := f.d.BuyRequest(testVIN, buyer)
	require.NoError(t, err)
	return a
}

func TestRegisterUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	k := newKey(t)
	addr := f.userAddr(t, k, "alice")

	eff, err := f.m.RegisterUser(signed(k), RegisterUserInput{User: addr, UserName: "alice", Role: model.RoleInspector}, false)
	require.NoError(t, err)
	require.Len(t, eff.Writes, 1)
	w := eff.Writes[0]
	assert.True(t, w.Create)
	assert.Equal(t, addr, w.Address)
	u := w.Record.(*model.User)
	assert.Equal(t, k, u.Authority)
	assert.Equal(t, model.VerificationPending, u.VerificationStatus)
	assert.Equal(t, now, u.CreatedAt)

	_, err = f.m.RegisterUser(signed(k), RegisterUserInput{User: addr, UserName: "alice"}, true)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	_, err = f.m.RegisterUser(signed(k), RegisterUserInput{User: addr, UserName: "bob"}, false)
	require.ErrorIs(t, err, errs.ErrRelationMismatch)

	_, err = f.m.RegisterUser(Call{Caller: k, Now: now}, RegisterUserInput{User: addr, UserName: "alice"}, false)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = f.m.RegisterUser(signed(k), RegisterUserInput{User: addr, UserName: ""}, false)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = f.m.RegisterUser(signed(k), RegisterUserInput{User: addr, UserName: "alice", PublicDataURI: strings.Repeat("u", model.MaxURILen+1)}, false)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestRegisterUser_GovernmentAllowlist(t *testing.T) {
	t.Parallel()
	d := address.New("registry-test")
	allowed, other := newKey(t), newKey(t)
	m := New(Config{InspectionPassThreshold: 5, GovernmentKeys: []model.Pubkey{allowed}}, d)

	a, _, _ := d.User(allowed, "gov")
	_, err := m.RegisterUser(signed(allowed), RegisterUserInput{User: a, UserName: "gov", Role: model.RoleGovernment}, false)
	require.NoError(t, err)

	b, _, _ := d.User(other, "gov")
	_, err = m.RegisterUser(signed(other), RegisterUserInput{User: b, UserName: "gov", Role: model.RoleGovernment}, false)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = m.RegisterUser(signed(other), RegisterUserInput{User: b, UserName: "gov", Role: model.RoleNormal}, false)
	require.NoError(t, err)
}

func TestVerifyUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	gov := f.user(t, f.gov, "gov", model.RoleGovernment, true)
	target := f.user(t, f.buyer, "bob", model.RoleInspector, false)
	targetAddr := f.userAddr(t, f.buyer, "bob")

	eff, err := f.m.VerifyUser(signed(f.gov), VerifyUserInput{Target: targetAddr, Approve: true}, gov, target)
	require.NoError(t, err)
	got := eff.Writes[0].Record.(*model.User)
	assert.Equal(t, model.VerificationVerified, got.VerificationStatus)
	require.NotNil(t, got.VerifiedBy)
	assert.Equal(t, f.gov, *got.VerifiedBy)
	assert.Equal(t, model.VerificationPending, target.VerificationStatus, "input record must not be mutated")

	_, err = f.m.VerifyUser(signed(f.gov), VerifyUserInput{Target: targetAddr}, gov, got)
	require.ErrorIs(t, err, errs.ErrInvalidState)

	normal := f.user(t, f.owner, "own", model.RoleNormal, true)
	_, err = f.m.VerifyUser(signed(f.owner), VerifyUserInput{Target: targetAddr, Approve: true}, normal, target)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	// someone else's government account
	_, err = f.m.VerifyUser(signed(f.owner), VerifyUserInput{Target: targetAddr, Approve: true}, gov, target)
	require.ErrorIs(t, err, errs.ErrRelationMismatch)

	eff, err = f.m.VerifyUser(signed(f.gov), VerifyUserInput{Target: targetAddr, Approve: false}, gov, target)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationRejected, eff.Writes[0].Record.(*model.User).VerificationStatus)
}

func TestRegisterCar(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	assert.Equal(t, f.owner, f.car.Owner)
	assert.Equal(t, f.gov, f.car.RegisteredBy)
	assert.True(t, f.car.IsActive)
	assert.False(t, f.car.IsForSale)
	assert.Zero(t, f.car.TransferCount)
	assert.Equal(t, model.InspectionPending, f.car.InspectionStatus)

	gov := f.user(t, f.gov, "gov", model.RoleGovernment, true)
	in := RegisterCarInput{Car: f.carAddr, VIN: testVIN, Year: 2021, Owner: f.owner}

	_, err := f.m.RegisterCar(signed(f.gov), in, gov, true)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	bad := in
	bad.Year = 1885
	_, err = f.m.RegisterCar(signed(f.gov), bad, gov, false)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	bad = in
	bad.Owner = model.Pubkey{}
	_, err = f.m.RegisterCar(signed(f.gov), bad, gov, false)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	inspector := f.user(t, f.owner, "insp", model.RoleInspector, true)
	_, err = f.m.RegisterCar(signed(f.owner), in, inspector, false)
	require.ErrorIs(t, err, errs.ErrRelationMismatch, "car address is scoped to the registering government")

	ownCar, _, _ := f.d.Car(f.owner, testVIN)
	in.Car = ownCar
	_, err = f.m.RegisterCar(signed(f.owner), in, inspector, false)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestSaleListing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.m.SetForSale(signed(f.buyer), SetForSaleInput{Car: f.carAddr, Price: 5000}, f.car)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	_, err = f.m.SetForSale(signed(f.owner), SetForSaleInput{Car: f.carAddr}, f.car)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	listed := f.listed(t, 5000)
	assert.True(t, listed.IsForSale)
	require.NotNil(t, listed.SalePrice)
	assert.EqualValues(t, 5000, *listed.SalePrice)

	eff, err := f.m.CancelForSale(signed(f.owner), CancelForSaleInput{Car: f.carAddr}, listed)
	require.NoError(t, err)
	cancelled := eff.Writes[0].Record.(*model.Car)
	assert.False(t, cancelled.IsForSale)
	assert.Nil(t, cancelled.SalePrice)
}

func TestBuyRequestLatch(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	reqAddr := f.buyRequestAddr(t, f.buyer)

	_, err := f.m.RequestBuy(signed(f.buyer), RequestBuyInput{Car: f.carAddr, BuyRequest: reqAddr}, f.car, nil)
	require.ErrorIs(t, err, errs.ErrInvalidState, "car is not listed")

	car := f.listed(t, 5000)
	_, err = f.m.RequestBuy(signed(f.owner), RequestBuyInput{Car: f.carAddr, BuyRequest: f.buyRequestAddr(t, f.owner)}, car, nil)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	msg := "cash on delivery"
	eff, err := f.m.RequestBuy(signed(f.buyer), RequestBuyInput{Car: f.carAddr, BuyRequest: reqAddr, Message: &msg}, car, nil)
	require.NoError(t, err)
	require.True(t, eff.Writes[0].Create)
	req := eff.Writes[0].Record.(*model.BuyRequest)
	assert.Equal(t, model.BuyPending, req.Status)
	assert.EqualValues(t, 5000, req.Amount)
	assert.Equal(t, f.owner, req.Seller)

	_, err = f.m.RequestBuy(signed(f.buyer), RequestBuyInput{Car: f.carAddr, BuyRequest: reqAddr}, car, req)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)

	decide := DecideBuyInput{Car: f.carAddr, BuyRequest: reqAddr}
	_, err = f.m.RejectBuyRequest(signed(f.buyer), decide, car, req)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	eff, err = f.m.RejectBuyRequest(signed(f.owner), decide, car, req)
	require.NoError(t, err)
	rejected := eff.Writes[0].Record.(*model.BuyRequest)
	assert.Equal(t, model.BuyRejected, rejected.Status)

	_, err = f.m.AcceptBuyRequest(signed(f.owner), decide, car, rejected)
	require.ErrorIs(t, err, errs.ErrInvalidState)

	// a terminal request is reopened in place
	eff, err = f.m.RequestBuy(signed(f.buyer), RequestBuyInput{Car: f.carAddr, BuyRequest: reqAddr}, car, rejected)
	require.NoError(t, err)
	require.False(t, eff.Writes[0].Create)
	assert.Equal(t, model.BuyPending, eff.Writes[0].Record.(*model.BuyRequest).Status)
}

func TestRequestBuy_PendingForPreviousOwner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	car := f.listed(t, 5000)
	reqAddr := f.buyRequestAddr(t, f.buyer)

	eff, err := f.m.RequestBuy(signed(f.buyer), RequestBuyInput{Car: f.carAddr, BuyRequest: reqAddr}, car, nil)
	require.NoError(t, err)
	stale := eff.Writes[0].Record.(*model.BuyRequest)

	// the car changed hands and was listed again by its new owner
	carol := newKey(t)
	moved := *car
	moved.Owner = carol
	moved.TransferCount++
	moved.SalePrice = ptr(uint64(7000))

	decide := DecideBuyInput{Car: f.carAddr, BuyRequest: reqAddr}
	_, err = f.m.RejectBuyRequest(signed(carol), decide, &moved, stale)
	require.ErrorIs(t, err, errs.ErrInvalidState)

	eff, err = f.m.RequestBuy(signed(f.buyer), RequestBuyInput{Car: f.carAddr, BuyRequest: reqAddr}, &moved, stale)
	require.NoError(t, err)
	require.False(t, eff.Writes[0].Create)
	renewed := eff.Writes[0].Record.(*model.BuyRequest)
	assert.Equal(t, model.BuyPending, renewed.Status)
	assert.Equal(t, carol, renewed.Seller)
	assert.EqualValues(t, 7000, renewed.Amount)

	_, err = f.m.RequestBuy(signed(f.buyer), RequestBuyInput{Car: f.carAddr, BuyRequest: reqAddr}, &moved, renewed)
	require.ErrorIs(t, err, errs.ErrAlreadyExists, "a live request for the current owner still blocks")

	eff, err = f.m.RejectBuyRequest(signed(carol), decide, &moved, renewed)
	require.NoError(t, err)
	assert.Equal(t, model.BuyRejected, eff.Writes[0].Record.(*model.BuyRequest).Status)
}

func TestTransferCar(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	car := f.listed(t, 5000)
	reqAddr := f.buyRequestAddr(t, f.buyer)
	eff, err := f.m.RequestBuy(signed(f.buyer), RequestBuyInput{Car: f.carAddr, BuyRequest: reqAddr}, car, nil)
	require.NoError(t, err)
	pending := eff.Writes[0].Record.(*model.BuyRequest)

	buyerUser := f.user(t, f.buyer, "bob", model.RoleNormal, false)
	in := TransferCarInput{
		Car:              f.carAddr,
		NewOwner:         f.buyer,
		NewOwnerUser:     f.userAddr(t, f.buyer, "bob"),
		NewOwnerUserName: "bob",
		BuyRequest:       &reqAddr,
	}

	_, err = f.m.TransferCar(signed(f.owner), in, car, buyerUser, pending)
	require.ErrorIs(t, err, errs.ErrUnauthorized, "new owner must co-sign")

	_, err = f.m.TransferCar(signed(f.owner, f.buyer), in, car, buyerUser, pending)
	require.ErrorIs(t, err, errs.ErrUnauthorized, "co-signature must be narrowed to the transfer")

	other, _, _ := f.d.Car(f.gov, "OTHERVIN")
	_, err = f.m.TransferCar(transferCall(f.owner, f.buyer, other), in, car, buyerUser, pending)
	require.ErrorIs(t, err, errs.ErrUnauthorized, "co-signature for another car")

	_, err = f.m.TransferCar(transferCall(f.owner, f.buyer, f.carAddr), in, car, buyerUser, pending)
	require.ErrorIs(t, err, errs.ErrInvalidState, "request is still pending")

	eff, err = f.m.AcceptBuyRequest(signed(f.owner), DecideBuyInput{Car: f.carAddr, BuyRequest: reqAddr}, car, pending)
	require.NoError(t, err)
	accepted := eff.Writes[0].Record.(*model.BuyRequest)

	eff, err = f.m.TransferCar(transferCall(f.owner, f.buyer, f.carAddr), in, car, buyerUser, accepted)
	require.NoError(t, err)
	moved := eff.Writes[0].Record.(*model.Car)
	assert.Equal(t, f.buyer, moved.Owner)
	assert.EqualValues(t, 1, moved.TransferCount)
	assert.False(t, moved.IsForSale)
	assert.Nil(t, moved.SalePrice)

	// the old owner no longer controls the car
	_, err = f.m.SetForSale(signed(f.owner), SetForSaleInput{Car: f.carAddr, Price: 1}, moved)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	// and the stale accepted request cannot move it back
	ownerUser := f.user(t, f.owner, "own", model.RoleNormal, false)
	back := TransferCarInput{Car: f.carAddr, NewOwner: f.owner, NewOwnerUser: f.userAddr(t, f.owner, "own"), NewOwnerUserName: "own"}
	eff, err = f.m.TransferCar(transferCall(f.buyer, f.owner, f.carAddr), back, moved, ownerUser, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, eff.Writes[0].Record.(*model.Car).TransferCount)

	in.NewOwnerUserName = "mallory"
	_, err = f.m.TransferCar(transferCall(f.owner, f.buyer, f.carAddr), in, car, buyerUser, accepted)
	require.ErrorIs(t, err, errs.ErrRelationMismatch)
}

func TestTransferCar_SameOwner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ownerUser := f.user(t, f.owner, "own", model.RoleNormal, false)
	in := TransferCarInput{Car: f.carAddr, NewOwner: f.owner, NewOwnerUser: f.userAddr(t, f.owner, "own"), NewOwnerUserName: "own"}

	_, err := f.m.TransferCar(signed(f.owner), in, f.car, ownerUser, nil)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func issueReport(t *testing.T, f *fixture, inspector model.Pubkey, overall uint8) (model.Address, *model.CarReport) {
	t.Helper()
	addr, _, err := f.d.CarReport(f.carAddr, inspector, "R-1")
	require.NoError(t, err)
	eff, err := f.m.IssueCarReport(signed(inspector), IssueCarReportInput{
		Car:              f.carAddr,
		Report:           addr,
		ReportID:         "R-1",
		OverallCondition: overall,
		EngineCondition:  8,
		BodyCondition:    7,
		FullReportURI:    "ipfs://bafy-report",
	}, f.user(t, inspector, "insp", model.RoleInspector, true), f.car, false)
	require.NoError(t, err)
	return addr, eff.Writes[0].Record.(*model.CarReport)
}

func TestIssueCarReport_Gates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	k := newKey(t)
	addr, _, _ := f.d.CarReport(f.carAddr, k, "R-1")
	in := IssueCarReportInput{Car: f.carAddr, Report: addr, ReportID: "R-1"}

	_, err := f.m.IssueCarReport(signed(k), in, f.user(t, k, "insp", model.RoleInspector, false), f.car, false)
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	_, err = f.m.IssueCarReport(signed(k), in, f.user(t, k, "insp", model.RoleNormal, true), f.car, false)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	inspector := f.user(t, k, "insp", model.RoleInspector, true)
	bad := in
	bad.EngineCondition = 11
	_, err = f.m.IssueCarReport(signed(k), bad, inspector, f.car, false)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	bad = in
	bad.Notes = strings.Repeat("n", model.MaxReportNotesLen+1)
	_, err = f.m.IssueCarReport(signed(k), bad, inspector, f.car, false)
	require.ErrorIs(t, err, errs.ErrNotesTooLong)

	_, err = f.m.IssueCarReport(signed(k), in, inspector, f.car, true)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestAcceptReport(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	inspector := newKey(t)
	addr, report := issueReport(t, f, inspector, 9)
	assert.Equal(t, f.owner, report.CarOwner)
	assert.False(t, report.ApprovedByOwner.Approved())

	in := AcceptReportInput{Car: f.carAddr, Report: addr}
	_, err := f.m.AcceptReport(signed(f.buyer), in, f.car, report)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	other, _, _ := f.d.Car(f.gov, "OTHERVIN")
	_, err = f.m.AcceptReport(signed(f.owner), AcceptReportInput{Car: other, Report: addr}, f.car, report)
	require.ErrorIs(t, err, errs.ErrInvalidReport)

	eff, err := f.m.AcceptReport(signed(f.owner), in, f.car, report)
	require.NoError(t, err)
	require.Equal(t, []model.Address{addr, f.carAddr}, eff.Addresses())
	approved := eff.Writes[0].Record.(*model.CarReport)
	assert.True(t, approved.ApprovedByOwner.Approved())
	car := eff.Writes[1].Record.(*model.Car)
	assert.Equal(t, model.InspectionPassed, car.InspectionStatus)
	require.NotNil(t, car.LatestInspectionReport)
	assert.Equal(t, "ipfs://bafy-report", *car.LatestInspectionReport)
	require.NotNil(t, car.LastInspectionDate)
	assert.Equal(t, report.ReportDate, *car.LastInspectionDate)

	_, err = f.m.AcceptReport(signed(f.owner), in, car, approved)
	require.ErrorIs(t, err, errs.ErrInvalidState)
}

func TestAcceptReport_FailedBelowThreshold(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	addr, report := issueReport(t, f, newKey(t), 4)

	eff, err := f.m.AcceptReport(signed(f.owner), AcceptReportInput{Car: f.carAddr, Report: addr}, f.car, report)
	require.NoError(t, err)
	assert.Equal(t, model.InspectionFailed, eff.Writes[1].Record.(*model.Car).InspectionStatus)
}

func TestAcceptReport_OutOfOrderKeepsNewestInspection(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	oldAddr, older := issueReport(t, f, newKey(t), 9)
	newAddr, newer := issueReport(t, f, newKey(t), 2)
	newer.ReportDate = older.ReportDate + 365*24*60*60
	newer.FullReportURI = "ipfs://newer"

	eff, err := f.m.AcceptReport(signed(f.owner), AcceptReportInput{Car: f.carAddr, Report: newAddr}, f.car, newer)
	require.NoError(t, err)
	car := eff.Writes[1].Record.(*model.Car)
	assert.Equal(t, model.InspectionFailed, car.InspectionStatus)

	eff, err = f.m.AcceptReport(signed(f.owner), AcceptReportInput{Car: f.carAddr, Report: oldAddr}, car, older)
	require.NoError(t, err)
	require.Equal(t, []model.Address{oldAddr}, eff.Addresses(), "the car keeps the newer result")
	assert.True(t, eff.Writes[0].Record.(*model.CarReport).ApprovedByOwner.Approved())
	assert.Equal(t, model.InspectionFailed, car.InspectionStatus)
	assert.Equal(t, newer.ReportDate, *car.LastInspectionDate)
	assert.Equal(t, "ipfs://newer", *car.LatestInspectionReport)
}

func TestAcceptReport_BoundToOwnerSnapshot(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	addr, report := issueReport(t, f, newKey(t), 9)

	moved := *f.car
	moved.Owner = f.buyer
	moved.TransferCount++

	_, err := f.m.AcceptReport(signed(f.buyer), AcceptReportInput{Car: f.carAddr, Report: addr}, &moved, report)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = f.m.AcceptReport(signed(f.owner), AcceptReportInput{Car: f.carAddr, Report: addr}, &moved, report)
	require.NoError(t, err)
}

func TestIssueConformityReport(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	k := newKey(t)
	addr, _, err := f.d.ConformityReport(f.carAddr, k, "C-1")
	require.NoError(t, err)
	expert := f.user(t, k, "expert", model.RoleConformityExpert, true)
	in := IssueConformityReportInput{
		Car:              f.carAddr,
		Report:           addr,
		ReportID:         "C-1",
		ConformityStatus: model.ConformityPass,
		Modifications:    "lowered suspension",
		MinesStamp:       "MINES-0042",
	}

	cases := []struct {
		name   string
		user   *model.User
		mutate func(*IssueConformityReportInput)
		want   error
	}{
		{"wrong role", f.user(t, k, "expert", model.RoleInspector, true), nil, errs.ErrNotAuthorizedConformityExpert},
		{"unverified", f.user(t, k, "expert", model.RoleConformityExpert, false), nil, errs.ErrConformityExpertNotVerified},
		{"modifications", expert, func(i *IssueConformityReportInput) {
			i.Modifications = strings.Repeat("m", model.MaxModificationsLen+1)
		}, errs.ErrModificationsTooLong},
		{"stamp", expert, func(i *IssueConformityReportInput) {
			i.MinesStamp = strings.Repeat("s", model.MaxMinesStampLen+1)
		}, errs.ErrStampTooLong},
		{"notes", expert, func(i *IssueConformityReportInput) {
			i.Notes = strings.Repeat("x", model.MaxConformityNoteLen+1)
		}, errs.ErrNotesTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cur := in
			if tc.mutate != nil {
				tc.mutate(&cur)
			}
			eff, err := f.m.IssueConformityReport(signed(k), cur, tc.user, f.car, false)
			require.ErrorIs(t, err, tc.want)
			require.Empty(t, eff.Writes)
		})
	}

	eff, err := f.m.IssueConformityReport(signed(k), in, expert, f.car, false)
	require.NoError(t, err)
	report := eff.Writes[0].Record.(*model.ConformityReport)
	assert.Equal(t, f.owner, report.CarOwner)
	assert.False(t, report.AcceptedByOwner.Approved())

	acc := AcceptConformityReportInput{Car: f.carAddr, Report: addr}
	_, err = f.m.AcceptConformityReport(signed(f.buyer), acc, report)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	other, _, _ := f.d.Car(f.gov, "OTHERVIN")
	_, err = f.m.AcceptConformityReport(signed(f.owner), AcceptConformityReportInput{Car: other, Report: addr}, report)
	require.ErrorIs(t, err, errs.ErrInvalidReport)

	eff, err = f.m.AcceptConformityReport(signed(f.owner), acc, report)
	require.NoError(t, err)
	accepted := eff.Writes[0].Record.(*model.ConformityReport)
	assert.True(t, accepted.AcceptedByOwner.Approved())

	_, err = f.m.AcceptConformityReport(signed(f.owner), acc, accepted)
	require.ErrorIs(t, err, errs.ErrInvalidState)
}
