package billing

import (
	"context"

	"github.com/ManuelReschke/AutoClub/app/models"
	"github.com/ManuelReschke/AutoClub/app/repository"
)

// Repository provides the membership operations used by the billing service.
type Repository interface {
	FindByID(id string) (*models.Membership, error)
	ByBillingCustomerID(customerID string) (*models.Membership, error)
	Update(m *models.Membership) error
}

// Resolver returns the Repository for the scope active in ctx.
type Resolver func(ctx context.Context) (Repository, error)

// ScopedRepository resolves memberships through the request scope.
func ScopedRepository(ctx context.Context) (Repository, error) {
	repos, err := repository.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return repos.Memberships, nil
}
