package repository

import (
	"context"

	"github.com/ManuelReschke/AutoClub/app/models"
	"github.com/ManuelReschke/AutoClub/internal/pkg/scope"
	"github.com/ManuelReschke/AutoClub/internal/pkg/session"
)

// Repositories holds one repository per entity, all bound to the same session.
type Repositories struct {
	Users       *UserRepository
	Memberships *MembershipRepository
	Addresses   *Repository[models.Address, *models.Address]
	Favorites   *Repository[models.VehicleFavorite, *models.VehicleFavorite]
	Vehicles    *Repository[models.VehicleOwned, *models.VehicleOwned]
	Valuations  *ValuationRepository
	Rates       *Repository[models.VscRate, *models.VscRate]
	Contracts   *ContractRepository
}

// NewRepositories creates the repositories for a session.
func NewRepositories(sess *session.Session) *Repositories {
	return &Repositories{
		Users:       NewUserRepository(sess),
		Memberships: NewMembershipRepository(sess),
		Addresses:   New[models.Address](sess),
		Favorites:   New[models.VehicleFavorite](sess),
		Vehicles:    New[models.VehicleOwned](sess),
		Valuations:  NewValuationRepository(sess),
		Rates:       New[models.VscRate](sess),
		Contracts:   NewContractRepository(sess),
	}
}

// FromContext returns the repositories of the scope active in ctx.
func FromContext(ctx context.Context) (*Repositories, error) {
	sess, err := scope.Session(ctx)
	if err != nil {
		return nil, scope.Missing(ctx, "repositories")
	}
	return NewRepositories(sess), nil
}
