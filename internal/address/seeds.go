package address

import (
	"fmt"

	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/model"
)

// User derives the address of the account (authority, userName).
func (d Deriver) User(authority model.Pubkey, userName string) (model.Address, uint8, error) {
	return d.Derive([]byte(TagUser), authority[:], []byte(userName))
}

// Car derives the address of the car registered by government under vin.
func (d Deriver) Car(government model.Pubkey, vin string) (model.Address, uint8, error) {
	return d.Derive([]byte(TagCar), government[:], []byte(vin))
}

// BuyRequest derives the address of buyer's request for vin.
func (d Deriver) BuyRequest(vin string, buyer model.Pubkey) (model.Address, uint8, error) {
	return d.Derive([]byte(TagBuyRequest), []byte(vin), buyer[:])
}

// CarReport derives the address of an inspection report.
func (d Deriver) CarReport(car model.Address, inspector model.Pubkey, reportID string) (model.Address, uint8, error) {
	return d.Derive([]byte(TagCarReport), car[:], inspector[:], []byte(reportID))
}

// ConformityReport derives the address of a conformity report.
func (d Deriver) ConformityReport(car model.Address, expert model.Pubkey, reportID string) (model.Address, uint8, error) {
	return d.Derive([]byte(TagConformityReport), car[:], expert[:], []byte(reportID))
}

// Of recomputes the address of a stored record from its own natural-key fields.
func (d Deriver) Of(rec model.Record) (model.Address, error) {
	switch r := rec.(type) {
	case *model.User:
		return d.WithBump(r.Bump, []byte(TagUser), r.Authority[:], []byte(r.UserName))
	case *model.Car:
		return d.WithBump(r.Bump, []byte(TagCar), r.RegisteredBy[:], []byte(r.VIN))
	case *model.BuyRequest:
		return d.WithBump(r.Bump, []byte(TagBuyRequest), []byte(r.VIN), r.Buyer[:])
	case *model.CarReport:
		return d.WithBump(r.Bump, []byte(TagCarReport), r.Car[:], r.Inspector[:], []byte(r.ReportID))
	case *model.ConformityReport:
		return d.WithBump(r.Bump, []byte(TagConformityReport), r.Car[:], r.ConformityExpert[:], []byte(r.ReportID))
	}
	return model.Address{}, fmt.Errorf("unknown record %T: %w", rec, errs.ErrInvalidArgument)
}
