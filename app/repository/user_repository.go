package repository

import (
	"github.com/ManuelReschke/AutoClub/app/models"
	"github.com/ManuelReschke/AutoClub/internal/pkg/session"
)

type UserRepository struct {
	*Repository[models.User, *models.User]
}

func NewUserRepository(sess *session.Session) *UserRepository {
	return &UserRepository{Repository: New[models.User](sess)}
}

// ByEmail finds a user by email. The lookup key is normalised like the stored
// address, so case and surrounding whitespace do not matter.
func (r *UserRepository) ByEmail(email string) (*models.User, error) {
	return r.FindOne(Criteria{"email": email})
}

// ByAuthProviderID finds the user linked to an identity provider account.
func (r *UserRepository) ByAuthProviderID(id string) (*models.User, error) {
	return r.FindOne(Criteria{"auth_provider_id": id})
}

// ForMembership lists the owner and members of a membership.
func (r *UserRepository) ForMembership(membershipID string) ([]*models.User, error) {
	return r.Find(Criteria{"membership_id": membershipID})
}
