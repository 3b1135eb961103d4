package registry

import (
	"fmt"

	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/guard"
	"github.com/and161185/car-registry/internal/model"
)

// RequestBuyInput opens the caller's offer on Car at BuyRequest.
type RequestBuyInput struct {
	Car        model.Address
	BuyRequest model.Address
	Message    *string
}

// RequestBuy creates a Pending request, or reinitialises one at the same address that
// is terminal or still addressed to a previous owner of the car. existing is the
// record at in.BuyRequest, nil when the address is free.
func (m *Machine) RequestBuy(call Call, in RequestBuyInput, car *model.Car, existing *model.BuyRequest) (Effects, error) {
	bump, err := m.relation("buyRequest", in.BuyRequest, func() (model.Address, uint8, error) {
		return m.deriver.BuyRequest(car.VIN, call.Caller)
	})
	if err != nil {
		return Effects{}, err
	}
	if existing != nil && existing.Car != in.Car {
		return Effects{}, fmt.Errorf("buy request is for car %s: %w", existing.Car, errs.ErrRelationMismatch)
	}
	if err := guard.RequireSigner(call.Signers, call.Caller, "buyer"); err != nil {
		return Effects{}, err
	}
	if in.Message != nil {
		if err := text("message", *in.Message, 0, model.MaxMessageLen); err != nil {
			return Effects{}, err
		}
	}
	if call.Caller == car.Owner {
		return Effects{}, fmt.Errorf("owner cannot buy own car: %w", errs.ErrInvalidArgument)
	}
	if !car.IsActive || !car.IsForSale || car.SalePrice == nil {
		return Effects{}, fmt.Errorf("car %q is not for sale: %w", car.VIN, errs.ErrInvalidState)
	}
	if existing != nil && !existing.Status.Terminal() && existing.Seller == car.Owner {
		return Effects{}, fmt.Errorf("pending buy request for %q: %w", car.VIN, errs.ErrAlreadyExists)
	}

	req := &model.BuyRequest{
		Car:       in.Car,
		VIN:       car.VIN,
		Buyer:     call.Caller,
		Seller:    car.Owner,
		Amount:    *car.SalePrice,
		Status:    model.BuyPending,
		CreatedAt: call.Now,
		UpdatedAt: call.Now,
		Message:   in.Message,
		Bump:      bump,
	}
	var eff Effects
	if existing == nil {
		eff.create(in.BuyRequest, req)
	} else {
		eff.update(in.BuyRequest, req)
	}
	return eff, nil
}

// DecideBuyInput names the request the seller settles.
type DecideBuyInput struct {
	Car        model.Address
	BuyRequest model.Address
}

// AcceptBuyRequest marks a Pending request Accepted. Ownership moves only on TransferCar.
func (m *Machine) AcceptBuyRequest(call Call, in DecideBuyInput, car *model.Car, req *model.BuyRequest) (Effects, error) {
	return m.decideBuy(call, in, car, req, model.BuyAccepted)
}

// RejectBuyRequest marks a Pending request Rejected.
func (m *Machine) RejectBuyRequest(call Call, in DecideBuyInput, car *model.Car, req *model.BuyRequest) (Effects, error) {
	return m.decideBuy(call, in, car, req, model.BuyRejected)
}

func (m *Machine) decideBuy(call Call, in DecideBuyInput, car *model.Car, req *model.BuyRequest, to model.BuyRequestStatus) (Effects, error) {
	if req.Car != in.Car || req.VIN != car.VIN {
		return Effects{}, fmt.Errorf("buy request is for car %s: %w", req.Car, errs.ErrRelationMismatch)
	}
	if _, err := m.relation("buyRequest", in.BuyRequest, func() (model.Address, uint8, error) {
		return m.deriver.BuyRequest(req.VIN, req.Buyer)
	}); err != nil {
		return Effects{}, err
	}
	if err := m.ownerCall(call, car); err != nil {
		return Effects{}, err
	}
	if req.Seller != car.Owner {
		return Effects{}, fmt.Errorf("buy request addressed to previous owner %s: %w", req.Seller, errs.ErrInvalidState)
	}
	next, err := req.Status.Transition(to)
	if err != nil {
		return Effects{}, err
	}

	updated := *req
	updated.Status = next
	updated.UpdatedAt = call.Now

	var eff Effects
	eff.update(in.BuyRequest, &updated)
	return eff, nil
}
