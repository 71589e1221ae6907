package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/AutoClub/internal/pkg/storeerr"
)

func ptr[T any](v T) *T {
	return &v
}

func newTestUser(t *testing.T) *User {
	t.Helper()
	m := NewMembership(PlanFree, MinMembershipNumber)
	return NewUser(m, "Foo@Example.com", "user_2abc")
}

func TestPrepareNormalizesUser(t *testing.T) {
	u := newTestUser(t)
	u.Email = "  Foo@Example.COM "
	u.Phone = ptr("(555) 123-45")
	u.FirstName = ptr("  Ada ")

	require.NoError(t, Prepare(u))

	assert.Equal(t, "foo@example.com", u.Email)
	assert.Equal(t, "55512345", *u.Phone)
	assert.Equal(t, "Ada", *u.FirstName)
	assert.Equal(t, RoleOwner, u.Role)
	assert.Equal(t, u.Membership.ID, u.MembershipID)
	assert.Len(t, u.ID, 36)
}

func TestPrepareIsIdempotent(t *testing.T) {
	u := newTestUser(t)
	u.Phone = ptr("+1 (555) 12")

	require.NoError(t, Prepare(u))
	email, phone, id := u.Email, *u.Phone, u.ID

	require.NoError(t, Prepare(u))
	assert.Equal(t, email, u.Email)
	assert.Equal(t, phone, *u.Phone)
	assert.Equal(t, id, u.ID)
}

func TestDerivations(t *testing.T) {
	tests := []struct {
		name   string
		derive func(string) string
		in     string
		want   string
	}{
		{name: "email", derive: NormalizeEmail, in: " Foo@Example.com\t", want: "foo@example.com"},
		{name: "email already normal", derive: NormalizeEmail, in: "foo@example.com", want: "foo@example.com"},
		{name: "phone", derive: DigitsOnly, in: "(555) 867-5309", want: "5558675309"},
		{name: "phone with unicode digits", derive: DigitsOnly, in: "٣12", want: "12"},
		{name: "vin", derive: NormalizeVIN, in: " 1hgcm82633a004352 ", want: "1HGCM82633A004352"},
		{name: "state", derive: NormalizeState, in: "ca", want: "CA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.derive(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, tt.derive(got))
		})
	}
}

func TestPrepareRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(u *User)
		field      string
		constraint string
	}{
		{name: "bad email", mutate: func(u *User) { u.Email = "not-an-email" }, field: "email", constraint: "email"},
		{name: "missing email", mutate: func(u *User) { u.Email = "   " }, field: "email", constraint: "required"},
		{name: "long phone", mutate: func(u *User) { u.Phone = ptr("555-867-5309") }, field: "phone", constraint: "max"},
		{name: "unknown role", mutate: func(u *User) { u.Role = "admin" }, field: "role", constraint: "oneof"},
		{name: "missing membership", mutate: func(u *User) { u.Membership = nil; u.MembershipID = "" }, field: "membership_id", constraint: "required"},
		{name: "missing auth id", mutate: func(u *User) { u.AuthProviderID = "" }, field: "auth_provider_id", constraint: "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newTestUser(t)
			tt.mutate(u)

			err := Prepare(u)
			var cv *storeerr.ConstraintViolation
			require.ErrorAs(t, err, &cv)
			assert.Equal(t, "users", cv.Entity)
			assert.Equal(t, tt.field, cv.Field)
			assert.Equal(t, tt.constraint, cv.Constraint)
		})
	}
}

func TestPrepareVehicleAndAddress(t *testing.T) {
	u := newTestUser(t)

	v := NewVehicleOwned(u, " 1hgcm82633a004352", 42000)
	v.LicensePlate = ptr(" abc123 ")
	require.NoError(t, Prepare(v))
	assert.Equal(t, "1HGCM82633A004352", v.VIN)
	assert.Equal(t, "ABC123", *v.LicensePlate)
	assert.Equal(t, u.ID, v.UserID)

	v.VIN = "SHORT"
	var cv *storeerr.ConstraintViolation
	require.ErrorAs(t, Prepare(v), &cv)
	assert.Equal(t, "vin", cv.Field)

	a := &Address{State: ptr(" tx ")}
	require.NoError(t, Prepare(a))
	assert.Equal(t, "TX", *a.State)

	a.State = ptr("Texas")
	require.ErrorAs(t, Prepare(a), &cv)
	assert.Equal(t, "state", cv.Field)
}

func TestPrepareFavoriteRequiresListingURL(t *testing.T) {
	u := newTestUser(t)
	f := NewVehicleFavorite(u, "1HGCM82633A004352", "lst-1", "https://cars.example.com/lst-1", 18000)
	require.NoError(t, Prepare(f))

	f.ListingURL = "not a url"
	var cv *storeerr.ConstraintViolation
	require.ErrorAs(t, Prepare(f), &cv)
	assert.Equal(t, "listing_url", cv.Field)
}

func TestMembershipNumberRange(t *testing.T) {
	m := NewMembership(PlanPlus, MaxMembershipNumber)
	require.NoError(t, Prepare(m))

	m.MembershipNumber = MaxMembershipNumber + 1
	var cv *storeerr.ConstraintViolation
	require.ErrorAs(t, Prepare(m), &cv)
	assert.Equal(t, "membership_number", cv.Field)

	m = &Membership{MembershipNumber: MinMembershipNumber}
	require.NoError(t, Prepare(m))
	assert.Equal(t, PlanFree, m.PlanType)
	require.ErrorAs(t, Prepare(&Membership{MembershipNumber: MinMembershipNumber, Status: "paused"}), &cv)
	assert.Equal(t, "status", cv.Field)
}

func TestCheckChangeImmutableField(t *testing.T) {
	m := &Membership{Status: SubscriptionActive}
	snap := Snapshot(m)

	m.MembershipNumber = MinMembershipNumber
	assert.NoError(t, CheckChange(m, snap), "assigning a number for the first time is allowed")

	snap = Snapshot(m)
	m.PlanType = PlanPlus
	assert.NoError(t, CheckChange(m, snap))

	m.MembershipNumber++
	err := CheckChange(m, snap)
	var cv *storeerr.ConstraintViolation
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, storeerr.Immutable, cv.Constraint)
	assert.Equal(t, "membership_number", cv.Field)
}

func TestCheckChangeImmutableEntity(t *testing.T) {
	rate := NewVscRate(7, "PLT", "Platinum", "Exclusionary", 36, 36000, 1899)
	rate.Deductible0 = ptr(2199)
	snap := Snapshot(rate)

	assert.NoError(t, CheckChange(rate, snap))

	rate.Deductible0 = ptr(2199)
	assert.NoError(t, CheckChange(rate, snap), "equal values behind a new pointer are unchanged")

	rate.Deductible0 = nil
	var cv *storeerr.ConstraintViolation
	require.ErrorAs(t, CheckChange(rate, snap), &cv)
	assert.Equal(t, storeerr.Immutable, cv.Constraint)

	valuation := NewValuation(NewVehicleOwned(newTestUser(t), "1HGCM82633A004352", 1), 15000, 1, "94107")
	snap = Snapshot(valuation)
	valuation.UpdatedOn = valuation.UpdatedOn.AddDate(0, 0, 1)
	assert.NoError(t, CheckChange(valuation, snap))
	valuation.PredictedPrice = 1
	require.ErrorAs(t, CheckChange(valuation, snap), &cv)
	assert.Equal(t, "predicted_price", cv.Field)
}

func TestContractStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to ContractStatus
		ok       bool
	}{
		{ContractOpen, ContractSigned, true},
		{ContractSigned, ContractPaid, true},
		{ContractPaid, ContractRemitted, true},
		{ContractOpen, ContractVoid, true},
		{ContractSigned, ContractVoid, true},
		{ContractPaid, ContractVoid, true},
		{ContractOpen, ContractOpen, true},
		{ContractRemitted, ContractRemitted, true},
		{ContractOpen, ContractPaid, false},
		{ContractSigned, ContractOpen, false},
		{ContractRemitted, ContractVoid, false},
		{ContractVoid, ContractOpen, false},
		{ContractPaid, ContractSigned, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to))

			c := &VscContract{Status: tt.from}
			snap := Snapshot(c)
			c.Status = tt.to
			if tt.ok {
				assert.NoError(t, CheckChange(c, snap))
			} else {
				assert.ErrorIs(t, CheckChange(c, snap), storeerr.ErrConstraintViolation)
			}
		})
	}

	assert.True(t, ContractRemitted.Terminal())
	assert.True(t, ContractVoid.Terminal())
	assert.False(t, ContractPaid.Terminal())
}

func TestVscRatePriceFor(t *testing.T) {
	rate := NewVscRate(1, "GLD", "Gold", "Stated component", 24, 24000, 1500)

	price, ok := rate.PriceFor(Deductible100)
	assert.True(t, ok)
	assert.Equal(t, 1500, price)

	_, ok = rate.PriceFor(Deductible0)
	assert.False(t, ok)

	rate.Deductible250 = ptr(1250)
	price, ok = rate.PriceFor(Deductible250)
	assert.True(t, ok)
	assert.Equal(t, 1250, price)

	_, ok = rate.PriceFor(Deductible(50))
	assert.False(t, ok)
}

func TestEnumsValid(t *testing.T) {
	assert.True(t, PlanPlus.Valid())
	assert.False(t, PlanType("gold").Valid())
	assert.True(t, SubscriptionIncompleteExpired.Valid())
	assert.False(t, SubscriptionStatus("paused").Valid())
	assert.True(t, RoleMember.Valid())
	assert.True(t, Deductible250.Valid())
	assert.False(t, Deductible(50).Valid())
	assert.True(t, ContractVoid.Valid())
}

func TestNormalizeCriteria(t *testing.T) {
	got := NormalizeCriteria(&User{}, map[string]any{
		"email":            " Foo@Example.com",
		"auth_provider_id": "user_1",
		"email_verified":   true,
	})

	assert.Equal(t, map[string]any{
		"email":            "foo@example.com",
		"auth_provider_id": "user_1",
		"email_verified":   true,
	}, got)
}

func TestSchemaRegistryCoversAllEntities(t *testing.T) {
	for _, m := range All() {
		if _, isSequence := m.(*MembershipSequence); isSequence {
			continue
		}
		_, ok := SchemaOf(m)
		assert.True(t, ok, "%T has no schema", m)
	}

	err := Prepare(&unregistered{})
	assert.Error(t, err)
}

type unregistered struct {
	Record
}

func (unregistered) TableName() string { return "unregistered" }
