package models

import "time"

const (
	MinMembershipNumber int64 = 10000000
	MaxMembershipNumber int64 = 99999999
)

// Membership is the account level subscription record shared by a user and,
// in the future, additional members.
type Membership struct {
	Record
	MembershipNumber   int64              `gorm:"not null;uniqueIndex" json:"membership_number"`
	BillingCustomerID  *string            `gorm:"type:varchar(64);uniqueIndex" json:"billing_customer_id,omitempty"`
	PlanType           PlanType           `gorm:"type:varchar(16);not null;default:'free'" json:"plan_type"`
	Status             SubscriptionStatus `gorm:"type:varchar(32);not null;default:'active'" json:"status"`
	CurrentPeriodStart *time.Time         `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time         `json:"current_period_end,omitempty"`
	CancelAt           *time.Time         `json:"cancel_at,omitempty"`
}

func (Membership) TableName() string {
	return "memberships"
}

// NewMembership returns an active membership on the given plan. The membership
// number is issued separately by the sequence generator.
func NewMembership(plan PlanType, number int64) *Membership {
	return &Membership{
		Record:           NewRecord(),
		MembershipNumber: number,
		PlanType:         plan,
		Status:           SubscriptionActive,
	}
}

var membershipSchema = &Schema{
	Entity: "Membership",
	Fields: []Field{
		{Name: "MembershipNumber", Rules: "required,gte=10000000,lte=99999999", Immutable: true},
		{Name: "BillingCustomerID", Rules: "omitempty,max=64", Derive: trim},
		{Name: "PlanType", Rules: oneOf(PlanType("").Values()), Derive: orDefault(string(PlanFree))},
		{Name: "Status", Rules: oneOf(SubscriptionStatus("").Values()), Derive: orDefault(string(SubscriptionActive))},
	},
}

// MembershipSequence is the single row counter backing membership numbers.
type MembershipSequence struct {
	ID  int   `gorm:"primaryKey;autoIncrement:false"`
	Val int64 `gorm:"not null"`
}

func (MembershipSequence) TableName() string {
	return "membership_sequences"
}
