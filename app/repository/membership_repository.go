package repository

import (
	"github.com/ManuelReschke/AutoClub/app/models"
	"github.com/ManuelReschke/AutoClub/internal/pkg/session"
)

type MembershipRepository struct {
	*Repository[models.Membership, *models.Membership]
}

func NewMembershipRepository(sess *session.Session) *MembershipRepository {
	return &MembershipRepository{Repository: New[models.Membership](sess)}
}

// ByBillingCustomerID finds the membership mirrored from a billing provider customer.
func (r *MembershipRepository) ByBillingCustomerID(customerID string) (*models.Membership, error) {
	return r.FindOne(Criteria{"billing_customer_id": customerID})
}

func (r *MembershipRepository) ByNumber(number int64) (*models.Membership, error) {
	return r.FindOne(Criteria{"membership_number": number})
}
