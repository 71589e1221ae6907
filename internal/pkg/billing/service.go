// Package billing mirrors billing provider subscription state onto
// memberships. It only writes to the store; receiving and verifying provider
// events happens elsewhere.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ManuelReschke/AutoClub/app/models"
	"github.com/ManuelReschke/AutoClub/internal/pkg/scope"
	"github.com/ManuelReschke/AutoClub/internal/pkg/storeerr"
)

// Service applies subscription state through the request scope's session.
// Flushing is left to the caller's scope.
type Service struct {
	repo Resolver
}

// NewService creates a billing service that works on the ambient scope.
func NewService() *Service {
	return NewServiceWithResolver(ScopedRepository)
}

// NewServiceWithResolver creates a billing service with an injected repository resolver.
func NewServiceWithResolver(resolve Resolver) *Service {
	return &Service{repo: resolve}
}

// Link attaches a billing customer to a membership before its first
// subscription event arrives.
func (s *Service) Link(ctx context.Context, membershipID, customerID string) (*models.Membership, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, storeerr.Violation(models.Membership{}.TableName(), "billing_customer_id", "required", nil)
	}
	repo, err := s.repo(ctx)
	if err != nil {
		return nil, err
	}

	m, err := repo.FindByID(membershipID)
	if err != nil {
		return nil, fmt.Errorf("billing: membership %s: %w", membershipID, err)
	}
	m.BillingCustomerID = &customerID
	if err := repo.Update(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Apply writes a provider subscription onto the membership of its billing
// customer and returns the updated membership. A subscription that does not
// entitle (canceled, unpaid, ...) leaves the membership on the free plan.
func (s *Service) Apply(ctx context.Context, in NormalizedSubscription) (*models.Membership, error) {
	customerID := strings.TrimSpace(in.BillingCustomerID)
	if customerID == "" {
		return nil, storeerr.Violation(models.Membership{}.TableName(), "billing_customer_id", "required", nil)
	}
	status, err := normalizeStatus(in.Status)
	if err != nil {
		return nil, err
	}
	plan := effectivePlan(normalizePlan(in.Plan), status)

	repo, err := s.repo(ctx)
	if err != nil {
		return nil, err
	}
	m, err := repo.ByBillingCustomerID(customerID)
	if err != nil {
		if errors.Is(err, storeerr.ErrNotFound) {
			return nil, fmt.Errorf("billing: no membership for customer %s: %w", customerID, err)
		}
		return nil, err
	}

	previous := m.PlanType
	m.PlanType = plan
	m.Status = status
	m.CurrentPeriodStart = in.CurrentPeriodStart
	m.CurrentPeriodEnd = in.CurrentPeriodEnd
	m.CancelAt = in.CancelAt
	if err := repo.Update(m); err != nil {
		return nil, err
	}

	scope.Logger(ctx).Info().
		Str("membership_id", m.ID).
		Str("billing_customer_id", customerID).
		Str("status", string(status)).
		Str("plan", string(plan)).
		Str("change", planChange(previous, plan)).
		Msg("subscription applied")
	return m, nil
}

func planChange(from, to models.PlanType) string {
	switch {
	case planRank(to) > planRank(from):
		return "upgrade"
	case planRank(to) < planRank(from):
		return "downgrade"
	default:
		return "none"
	}
}
