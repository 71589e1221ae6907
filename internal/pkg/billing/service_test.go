package billing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/AutoClub/app/models"
	"github.com/ManuelReschke/AutoClub/internal/pkg/database/dbtest"
	"github.com/ManuelReschke/AutoClub/internal/pkg/scope"
	"github.com/ManuelReschke/AutoClub/internal/pkg/session"
	"github.com/ManuelReschke/AutoClub/internal/pkg/storeerr"
)

func setup(t *testing.T) (*session.Manager, *gorm.DB, *models.Membership) {
	t.Helper()
	db := dbtest.Open(t)
	membership := models.NewMembership(models.PlanFree, models.MinMembershipNumber)
	require.NoError(t, db.Create(membership).Error)
	return session.NewManager(db), db, membership
}

// inScope runs fn in a new scope and flushes its session if fn succeeds.
func inScope(mgr *session.Manager, fn func(ctx context.Context) error) error {
	return scope.Run(context.Background(), mgr, scope.Values{}, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return err
		}
		sess, err := scope.Session(ctx)
		if err != nil {
			return err
		}
		return sess.Flush()
	})
}

func stored(t *testing.T, db *gorm.DB, id string) models.Membership {
	t.Helper()
	var m models.Membership
	require.NoError(t, db.Where("id = ?", id).Take(&m).Error)
	return m
}

func TestApplySubscription(t *testing.T) {
	mgr, db, membership := setup(t)
	svc := NewService()

	err := inScope(mgr, func(ctx context.Context) error {
		_, err := svc.Link(ctx, membership.ID, " cus_123 ")
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, stored(t, db, membership.ID).BillingCustomerID)
	assert.Equal(t, "cus_123", *stored(t, db, membership.ID).BillingCustomerID)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	err = inScope(mgr, func(ctx context.Context) error {
		m, err := svc.Apply(ctx, NormalizedSubscription{
			BillingCustomerID:  "cus_123",
			Plan:               "Plus",
			Status:             "trialing",
			CurrentPeriodStart: &start,
			CurrentPeriodEnd:   &end,
		})
		if err != nil {
			return err
		}
		assert.Equal(t, models.PlanPlus, m.PlanType)
		return nil
	})
	require.NoError(t, err)

	m := stored(t, db, membership.ID)
	assert.Equal(t, models.PlanPlus, m.PlanType)
	assert.Equal(t, models.SubscriptionTrialing, m.Status)
	require.NotNil(t, m.CurrentPeriodEnd)
	assert.True(t, end.Equal(*m.CurrentPeriodEnd))
	assert.Equal(t, models.MinMembershipNumber, m.MembershipNumber)

	err = inScope(mgr, func(ctx context.Context) error {
		_, err := svc.Apply(ctx, NormalizedSubscription{BillingCustomerID: "cus_123", Plan: "plus", Status: "canceled", CancelAt: &end})
		return err
	})
	require.NoError(t, err)

	m = stored(t, db, membership.ID)
	assert.Equal(t, models.PlanFree, m.PlanType)
	assert.Equal(t, models.SubscriptionCanceled, m.Status)
	assert.NotNil(t, m.CancelAt)
}

func TestApplyRejectsBadInput(t *testing.T) {
	mgr, db, membership := setup(t)
	require.NoError(t, db.Model(membership).Update("billing_customer_id", "cus_1").Error)
	svc := NewService()

	err := inScope(mgr, func(ctx context.Context) error {
		_, err := svc.Apply(ctx, NormalizedSubscription{BillingCustomerID: "cus_1", Plan: "plus", Status: "paused"})
		return err
	})
	var cv *storeerr.ConstraintViolation
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, "status", cv.Field)
	assert.Equal(t, models.PlanFree, stored(t, db, membership.ID).PlanType)

	err = inScope(mgr, func(ctx context.Context) error {
		_, err := svc.Apply(ctx, NormalizedSubscription{BillingCustomerID: " ", Status: "active"})
		return err
	})
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, "billing_customer_id", cv.Field)

	err = inScope(mgr, func(ctx context.Context) error {
		_, err := svc.Apply(ctx, NormalizedSubscription{BillingCustomerID: "cus_unknown", Status: "active"})
		return err
	})
	assert.ErrorIs(t, err, storeerr.ErrNotFound)
}

func TestApplyOutsideScope(t *testing.T) {
	_, err := NewService().Apply(context.Background(), NormalizedSubscription{BillingCustomerID: "cus_1"})
	assert.ErrorIs(t, err, storeerr.ErrNoActiveScope)
}

type fakeRepository struct {
	membership *models.Membership
	updated    int
}

func (f *fakeRepository) FindByID(id string) (*models.Membership, error) {
	if f.membership.ID != id {
		return nil, storeerr.ErrNotFound
	}
	return f.membership, nil
}

func (f *fakeRepository) ByBillingCustomerID(customerID string) (*models.Membership, error) {
	if f.membership.BillingCustomerID == nil || *f.membership.BillingCustomerID != customerID {
		return nil, storeerr.ErrNotFound
	}
	return f.membership, nil
}

func (f *fakeRepository) Update(*models.Membership) error {
	f.updated++
	return nil
}

func TestServiceWithInjectedRepository(t *testing.T) {
	fake := &fakeRepository{membership: models.NewMembership(models.PlanFree, models.MinMembershipNumber)}
	svc := NewServiceWithResolver(func(context.Context) (Repository, error) { return fake, nil })

	_, err := svc.Link(context.Background(), fake.membership.ID, "cus_9")
	require.NoError(t, err)

	m, err := svc.Apply(context.Background(), NormalizedSubscription{BillingCustomerID: "cus_9", Plan: "plus", Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, models.PlanPlus, m.PlanType)
	assert.Equal(t, 2, fake.updated)

	_, err = svc.Link(context.Background(), fake.membership.ID, "")
	assert.ErrorIs(t, err, storeerr.ErrConstraintViolation)
}
