// Package convert maps registry.v1 wire messages to registry inputs and back.
package convert

import (
	"fmt"

	registryv1 "github.com/and161185/car-registry/api/registryv1"
	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/model"
	"github.com/and161185/car-registry/internal/registry"
)

// parser keeps the first malformed field; later lookups become no-ops.
type parser struct{ err error }

func (p *parser) addr(field, s string) model.Address {
	if p.err != nil {
		return model.Address{}
	}
	a, err := model.ParseAddress(s)
	if err != nil {
		p.err = fmt.Errorf("%s: %v: %w", field, err, errs.ErrInvalidArgument)
	}
	return a
}

func (p *parser) optAddr(field string, s *string) *model.Address {
	if s == nil || *s == "" {
		return nil
	}
	a := p.addr(field, *s)
	return &a
}

func (p *parser) key(field, s string) model.Pubkey {
	if p.err != nil {
		return model.Pubkey{}
	}
	k, err := model.ParsePubkey(s)
	if err != nil {
		p.err = fmt.Errorf("%s: %v: %w", field, err, errs.ErrInvalidArgument)
	}
	return k
}

// --- client -> server ---

// FromRegisterUser converts a RegisterUser request.
func FromRegisterUser(in *registryv1.RegisterUserRequest) (registry.RegisterUserInput, error) {
	var p parser
	out := registry.RegisterUserInput{
		User:                   p.addr("user", in.User),
		UserName:               in.UserName,
		PublicDataURI:          in.PublicDataURI,
		PrivateDataURI:         in.PrivateDataURI,
		GovernmentEncryptedKey: in.GovernmentEncryptedKey,
		RecoveryEncryptedKey:   in.RecoveryEncryptedKey,
	}
	if p.err != nil {
		return registry.RegisterUserInput{}, p.err
	}
	role, err := model.ParseRole(in.Role)
	if err != nil {
		return registry.RegisterUserInput{}, err
	}
	out.Role = role
	return out, nil
}

// FromVerifyUser converts a VerifyUser request.
func FromVerifyUser(in *registryv1.VerifyUserRequest) (registry.VerifyUserInput, error) {
	var p parser
	out := registry.VerifyUserInput{
		Verifier: p.addr("verifier", in.Verifier),
		Target:   p.addr("target", in.Target),
		Approve:  in.Approve,
	}
	return out, p.err
}

// FromRegisterCar converts a RegisterCar request.
func FromRegisterCar(in *registryv1.RegisterCarRequest) (registry.RegisterCarInput, error) {
	var p parser
	out := registry.RegisterCarInput{
		Government:   p.addr("government", in.Government),
		Car:          p.addr("car", in.Car),
		VIN:          in.VIN,
		CarID:        in.CarID,
		Brand:        in.Brand,
		Model:        in.Model,
		Year:         in.Year,
		Color:        in.Color,
		EngineNumber: in.EngineNumber,
		Owner:        p.key("owner", in.Owner),
		Mileage:      in.Mileage,
	}
	return out, p.err
}

// FromSetForSale converts a SetForSale request.
func FromSetForSale(in *registryv1.SetForSaleRequest) (registry.SetForSaleInput, error) {
	var p parser
	out := registry.SetForSaleInput{Car: p.addr("car", in.Car), Price: in.Price}
	return out, p.err
}

// FromCancelForSale converts a CancelForSale request.
func FromCancelForSale(in *registryv1.CancelForSaleRequest) (registry.CancelForSaleInput, error) {
	var p parser
	out := registry.CancelForSaleInput{Car: p.addr("car", in.Car)}
	return out, p.err
}

// FromRequestBuy converts a RequestBuy request.
func FromRequestBuy(in *registryv1.RequestBuyRequest) (registry.RequestBuyInput, error) {
	var p parser
	out := registry.RequestBuyInput{
		Car:        p.addr("car", in.Car),
		BuyRequest: p.addr("buy_request", in.BuyRequest),
		Message:    in.Message,
	}
	return out, p.err
}

// FromDecideBuy converts an AcceptBuyRequest or RejectBuyRequest request.
func FromDecideBuy(in *registryv1.DecideBuyRequest) (registry.DecideBuyInput, error) {
	var p parser
	out := registry.DecideBuyInput{
		Car:        p.addr("car", in.Car),
		BuyRequest: p.addr("buy_request", in.BuyRequest),
	}
	return out, p.err
}

// FromTransferCar converts a TransferCar request.
func FromTransferCar(in *registryv1.TransferCarRequest) (registry.TransferCarInput, error) {
	var p parser
	out := registry.TransferCarInput{
		Car:              p.addr("car", in.Car),
		NewOwner:         p.key("new_owner", in.NewOwner),
		NewOwnerUser:     p.addr("new_owner_user", in.NewOwnerUser),
		NewOwnerUserName: in.NewOwnerUserName,
		BuyRequest:       p.optAddr("buy_request", in.BuyRequest),
	}
	return out, p.err
}

// FromIssueCarReport converts an IssueCarReport request.
func FromIssueCarReport(in *registryv1.IssueCarReportRequest) (registry.IssueCarReportInput, error) {
	var p parser
	out := registry.IssueCarReportInput{
		Inspector:        p.addr("inspector", in.Inspector),
		Car:              p.addr("car", in.Car),
		Report:           p.addr("report", in.Report),
		ReportID:         in.ReportID,
		OverallCondition: in.OverallCondition,
		EngineCondition:  in.EngineCondition,
		BodyCondition:    in.BodyCondition,
		FullReportURI:    in.FullReportURI,
		ReportSummary:    in.ReportSummary,
		Notes:            in.Notes,
	}
	return out, p.err
}

// FromAcceptReport converts an AcceptReport request.
func FromAcceptReport(in *registryv1.AcceptReportRequest) (registry.AcceptReportInput, error) {
	var p parser
	out := registry.AcceptReportInput{
		Car:    p.addr("car", in.Car),
		Report: p.addr("report", in.Report),
	}
	return out, p.err
}

// FromIssueConformityReport converts an IssueConformityReport request.
func FromIssueConformityReport(in *registryv1.IssueConformityReportRequest) (registry.IssueConformityReportInput, error) {
	var p parser
	out := registry.IssueConformityReportInput{
		Expert:        p.addr("expert", in.Expert),
		Car:           p.addr("car", in.Car),
		Report:        p.addr("report", in.Report),
		ReportID:      in.ReportID,
		Modifications: in.Modifications,
		MinesStamp:    in.MinesStamp,
		FullReportURI: in.FullReportURI,
		Notes:         in.Notes,
	}
	if p.err != nil {
		return registry.IssueConformityReportInput{}, p.err
	}
	if err := out.ConformityStatus.UnmarshalText([]byte(in.ConformityStatus)); err != nil {
		return registry.IssueConformityReportInput{}, err
	}
	return out, nil
}

// FromAcceptConformityReport converts an AcceptConformityReport request.
func FromAcceptConformityReport(in *registryv1.AcceptConformityReportRequest) (registry.AcceptConformityReportInput, error) {
	var p parser
	out := registry.AcceptConformityReportInput{
		Car:    p.addr("car", in.Car),
		Report: p.addr("report", in.Report),
	}
	return out, p.err
}

// FromGetRecord parses the address of a GetRecord request.
func FromGetRecord(in *registryv1.GetRecordRequest) (model.Address, error) {
	var p parser
	a := p.addr("address", in.Address)
	return a, p.err
}

// --- server -> client ---

// ToTransitionResponse lists the writes of eff split by create/update.
func ToTransitionResponse(eff registry.Effects) *registryv1.TransitionResponse {
	out := &registryv1.TransitionResponse{}
	for _, w := range eff.Writes {
		if w.Create {
			out.Created = append(out.Created, w.Address.String())
		} else {
			out.Updated = append(out.Updated, w.Address.String())
		}
	}
	return out
}

// ToGetRecordResponse encodes rec in its persisted layout.
func ToGetRecordResponse(rec model.Record) (*registryv1.GetRecordResponse, error) {
	data, err := rec.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return &registryv1.GetRecordResponse{Kind: string(rec.Kind()), Data: data}, nil
}

// FromGetRecordResponse decodes the record carried by resp.
func FromGetRecordResponse(resp *registryv1.GetRecordResponse) (model.Record, error) {
	rec, err := model.Decode(resp.Data)
	if err != nil {
		return nil, err
	}
	if string(rec.Kind()) != resp.Kind {
		return nil, fmt.Errorf("record kind %s, response says %s", rec.Kind(), resp.Kind)
	}
	return rec, nil
}
