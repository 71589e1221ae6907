// Package warranty turns vehicle service contract quotes into contracts and
// moves contracts through their lifecycle.
package warranty

import (
	"errors"
	"fmt"

	"github.com/ManuelReschke/AutoClub/app/models"
	"github.com/ManuelReschke/AutoClub/internal/pkg/storeerr"
)

var contractsTable = models.VscContract{}.TableName()

// Option adjusts a contract being written.
type Option func(*models.VscContract)

// WithValuation prices the vehicle from a valuation and takes its mileage when
// it is more recent than the vehicle's.
func WithValuation(v *models.VehicleOwnedValuation) Option {
	return func(c *models.VscContract) {
		if v == nil {
			return
		}
		c.VehiclePrice = v.PredictedPrice
		if v.Mileage > c.VehicleMileage {
			c.VehicleMileage = v.Mileage
		}
	}
}

// InWarranty records that the vehicle is still under its factory warranty.
func InWarranty(inWarranty bool) Option {
	return func(c *models.VscContract) {
		c.VehicleInWarranty = inWarranty
	}
}

// NewContract writes an open contract for a vehicle from a rate. The retail
// cost is the rate's price for the chosen deductible; a deductible the rate
// does not offer is rejected.
func NewContract(user *models.User, vehicle *models.VehicleOwned, rate *models.VscRate, deductible models.Deductible, opts ...Option) (*models.VscContract, error) {
	switch {
	case user == nil:
		return nil, storeerr.Violation(contractsTable, "user_id", "required", nil)
	case vehicle == nil:
		return nil, storeerr.Violation(contractsTable, "vehicle_owned_id", "required", nil)
	case rate == nil:
		return nil, storeerr.Violation(contractsTable, "vsc_rate_id", "required", nil)
	}
	if vehicle.UserID != "" && vehicle.UserID != user.EnsureID() {
		return nil, storeerr.Violation(contractsTable, "vehicle_owned_id", storeerr.Check,
			errors.New("vehicle belongs to another user"))
	}

	price, ok := rate.PriceFor(deductible)
	if !ok {
		return nil, storeerr.Violation(contractsTable, "deductible", "oneof",
			fmt.Errorf("rate %s has no price for a %d deductible", rate.ProgramCode, deductible))
	}

	c := &models.VscContract{
		Record:          models.NewRecord(),
		CoverageOptions: rate.CoverageOptions,
		User:            user,
		VehicleOwned:    vehicle,
		VscRate:         rate,
		Status:          models.ContractOpen,
		VehicleMileage:  vehicle.Mileage,
		RetailCost:      price,
		Deductible:      deductible,
	}
	c.UserID = user.EnsureID()
	c.VehicleOwnedID = vehicle.EnsureID()
	c.VscRateID = rate.EnsureID()

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Advance moves a contract to the next status. Repeating the current status is
// a no-op; moving backwards or out of a terminal status is rejected and leaves
// the contract unchanged.
func Advance(c *models.VscContract, to models.ContractStatus) error {
	if !to.Valid() {
		return storeerr.Violation(contractsTable, "status", "oneof", fmt.Errorf("unknown status %q", to))
	}
	from := c.Status
	if from == "" {
		from = models.ContractOpen
	}
	if !from.CanTransition(to) {
		return storeerr.Violation(contractsTable, "status", storeerr.Transition,
			fmt.Errorf("%s -> %s", from, to))
	}
	c.Status = to
	return nil
}

// Void cancels a contract that has not been remitted yet.
func Void(c *models.VscContract) error {
	return Advance(c, models.ContractVoid)
}
