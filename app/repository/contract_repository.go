package repository

import (
	"github.com/ManuelReschke/AutoClub/app/models"
	"github.com/ManuelReschke/AutoClub/internal/pkg/session"
)

type ContractRepository struct {
	*Repository[models.VscContract, *models.VscContract]
}

func NewContractRepository(sess *session.Session) *ContractRepository {
	return &ContractRepository{Repository: New[models.VscContract](sess)}
}

// ForUser lists the warranty contracts bought by a user.
func (r *ContractRepository) ForUser(userID string) ([]*models.VscContract, error) {
	return r.Find(Criteria{"user_id": userID})
}

// ForVehicle lists the contracts written for an owned vehicle.
func (r *ContractRepository) ForVehicle(vehicleOwnedID string) ([]*models.VscContract, error) {
	return r.Find(Criteria{"vehicle_owned_id": vehicleOwnedID})
}

// ValuationRepository reads the price history of owned vehicles.
type ValuationRepository struct {
	*Repository[models.VehicleOwnedValuation, *models.VehicleOwnedValuation]
}

func NewValuationRepository(sess *session.Session) *ValuationRepository {
	return &ValuationRepository{Repository: New[models.VehicleOwnedValuation](sess)}
}

func (r *ValuationRepository) ForVehicle(vehicleOwnedID string) ([]*models.VehicleOwnedValuation, error) {
	return r.Find(Criteria{"vehicle_owned_id": vehicleOwnedID})
}
