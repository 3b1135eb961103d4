package registry

import (
	"fmt"

	"github.com/and161185/car-registry/internal/errs"
	"github.com/and161185/car-registry/internal/guard"
	"github.com/and161185/car-registry/internal/model"
)

// minModelYear is the year of the first production automobile.
const minModelYear = 1886

// RegisterCarInput registers a vehicle under the calling government's key.
type RegisterCarInput struct {
	Government   model.Address
	Car          model.Address
	VIN          string
	CarID        string
	Brand        string
	Model        string
	Year         uint16
	Color        string
	EngineNumber string
	Owner        model.Pubkey
	Mileage      uint64
}

// RegisterCar creates an active car owned by in.Owner.
func (m *Machine) RegisterCar(call Call, in RegisterCarInput, government *model.User, occupied bool) (Effects, error) {
	if err := text("vin", in.VIN, 1, model.MaxVINLen); err != nil {
		return Effects{}, err
	}
	bump, err := m.relation("car", in.Car, func() (model.Address, uint8, error) {
		return m.deriver.Car(call.Caller, in.VIN)
	})
	if err != nil {
		return Effects{}, err
	}
	if err := callerUser(call, government); err != nil {
		return Effects{}, err
	}
	if err := guard.RequireRole(government, model.RoleGovernment); err != nil {
		return Effects{}, err
	}
	if err := firstErr(
		text("carId", in.CarID, 0, model.MaxShortFieldLen),
		text("brand", in.Brand, 0, model.MaxShortFieldLen),
		text("model", in.Model, 0, model.MaxShortFieldLen),
		text("color", in.Color, 0, model.MaxShortFieldLen),
		text("engineNumber", in.EngineNumber, 0, model.MaxShortFieldLen),
	); err != nil {
		return Effects{}, err
	}
	if in.Owner.IsZero() {
		return Effects{}, fmt.Errorf("owner is empty: %w", errs.ErrInvalidArgument)
	}
	if in.Year < minModelYear {
		return Effects{}, fmt.Errorf("year %d: %w", in.Year, errs.ErrInvalidArgument)
	}
	if occupied {
		return Effects{}, fmt.Errorf("car %q: %w", in.VIN, errs.ErrAlreadyExists)
	}

	var eff Effects
	eff.create(in.Car, &model.Car{
		VIN:              in.VIN,
		CarID:            in.CarID,
		Brand:            in.Brand,
		Model:            in.Model,
		Year:             in.Year,
		Color:            in.Color,
		EngineNumber:     in.EngineNumber,
		Owner:            in.Owner,
		RegisteredBy:     call.Caller,
		RegistrationDate: call.Now,
		IsActive:         true,
		InspectionStatus: model.InspectionPending,
		Mileage:          in.Mileage,
		Bump:             bump,
	})
	return eff, nil
}

// SetForSaleInput lists Car at Price.
type SetForSaleInput struct {
	Car   model.Address
	Price uint64
}

// SetForSale lists the car; only the current owner may do so.
func (m *Machine) SetForSale(call Call, in SetForSaleInput, car *model.Car) (Effects, error) {
	if err := m.ownerCall(call, car); err != nil {
		return Effects{}, err
	}
	if in.Price == 0 {
		return Effects{}, fmt.Errorf("sale price must be positive: %w", errs.ErrInvalidArgument)
	}
	if !car.IsActive {
		return Effects{}, fmt.Errorf("car %q is inactive: %w", car.VIN, errs.ErrInvalidState)
	}
	updated := *car
	updated.IsForSale = true
	updated.SalePrice = ptr(in.Price)

	var eff Effects
	eff.update(in.Car, &updated)
	return eff, nil
}

// CancelForSaleInput delists Car.
type CancelForSaleInput struct {
	Car model.Address
}

// CancelForSale delists the car; only the current owner may do so.
func (m *Machine) CancelForSale(call Call, in CancelForSaleInput, car *model.Car) (Effects, error) {
	if err := m.ownerCall(call, car); err != nil {
		return Effects{}, err
	}
	updated := *car
	updated.IsForSale = false
	updated.SalePrice = nil

	var eff Effects
	eff.update(in.Car, &updated)
	return eff, nil
}

// TransferCarInput hands Car to NewOwner, whose account lives at NewOwnerUser.
// BuyRequest optionally names the accepted request that settles the sale.
type TransferCarInput struct {
	Car              model.Address
	NewOwner         model.Pubkey
	NewOwnerUser     model.Address
	NewOwnerUserName string
	BuyRequest       *model.Address
}

// TransferCar moves ownership. Both the current and the new owner must sign.
// req is the loaded record at in.BuyRequest, nil when none was named.
func (m *Machine) TransferCar(call Call, in TransferCarInput, car *model.Car, newOwner *model.User, req *model.BuyRequest) (Effects, error) {
	if _, err := m.relation("newOwnerUser", in.NewOwnerUser, func() (model.Address, uint8, error) {
		return m.deriver.User(in.NewOwner, in.NewOwnerUserName)
	}); err != nil {
		return Effects{}, err
	}
	if err := guard.RequireUserOf(newOwner, in.NewOwner); err != nil {
		return Effects{}, err
	}
	if in.BuyRequest != nil {
		if req == nil {
			return Effects{}, fmt.Errorf("buy request %s: %w", *in.BuyRequest, errs.ErrNotFound)
		}
		if _, err := m.relation("buyRequest", *in.BuyRequest, func() (model.Address, uint8, error) {
			return m.deriver.BuyRequest(car.VIN, in.NewOwner)
		}); err != nil {
			return Effects{}, err
		}
		if req.Car != in.Car {
			return Effects{}, fmt.Errorf("buy request is for car %s: %w", req.Car, errs.ErrRelationMismatch)
		}
	}
	if err := m.ownerCall(call, car); err != nil {
		return Effects{}, err
	}
	if err := guard.RequireSigner(call.Signers, in.NewOwner, "new owner"); err != nil {
		return Effects{}, err
	}
	if in.NewOwner != call.Caller {
		if err := guard.RequireScope(call.Scopes, in.NewOwner, TransferScope(in.Car, in.NewOwner), "new owner"); err != nil {
			return Effects{}, err
		}
	}
	if in.NewOwner == car.Owner {
		return Effects{}, fmt.Errorf("new owner equals current owner: %w", errs.ErrInvalidArgument)
	}
	if !car.IsActive {
		return Effects{}, fmt.Errorf("car %q is inactive: %w", car.VIN, errs.ErrInvalidState)
	}
	if req != nil && (req.Status != model.BuyAccepted || req.Seller != car.Owner) {
		return Effects{}, fmt.Errorf("buy request is %s: %w", req.Status, errs.ErrInvalidState)
	}

	updated := *car
	updated.Owner = in.NewOwner
	updated.TransferCount++
	updated.IsForSale = false
	updated.SalePrice = nil

	var eff Effects
	eff.update(in.Car, &updated)
	return eff, nil
}

// TransferScope is the scope a new owner narrows their TransferCar co-signature to, so
// it cannot be replayed for another car.
func TransferScope(car model.Address, newOwner model.Pubkey) string {
	return "transfer:" + car.String() + ":" + newOwner.String()
}

// ownerCall checks the caller signed and owns car.
func (m *Machine) ownerCall(call Call, car *model.Car) error {
	if err := guard.RequireSigner(call.Signers, call.Caller, "caller"); err != nil {
		return err
	}
	return guard.RequireOwner(car, call.Caller)
}
