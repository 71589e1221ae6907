package billing

import "time"

// NormalizedSubscription is the provider-agnostic subscription state applied
// to a membership. Plan and Status are the provider's raw strings.
type NormalizedSubscription struct {
	BillingCustomerID  string
	Plan               string
	Status             string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAt           *time.Time
}
