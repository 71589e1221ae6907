package billing

import (
	"fmt"
	"strings"

	"github.com/ManuelReschke/AutoClub/app/models"
	"github.com/ManuelReschke/AutoClub/internal/pkg/storeerr"
)

func normalizePlan(plan string) models.PlanType {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(models.PlanPlus):
		return models.PlanPlus
	default:
		return models.PlanFree
	}
}

func planRank(plan models.PlanType) int {
	switch plan {
	case models.PlanPlus:
		return 1
	default:
		return 0
	}
}

// normalizeStatus maps a provider status onto the stored subscription states.
// An empty status means active; anything unknown is rejected.
func normalizeStatus(status string) (models.SubscriptionStatus, error) {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "":
		return models.SubscriptionActive, nil
	case "cancelled":
		return models.SubscriptionCanceled, nil
	}
	if st := models.SubscriptionStatus(s); st.Valid() {
		return st, nil
	}
	return "", storeerr.Violation(models.Membership{}.TableName(), "status", "oneof",
		fmt.Errorf("unknown subscription status %q", status))
}

// IsEntitling reports whether a subscription in this state grants its plan.
func IsEntitling(status models.SubscriptionStatus) bool {
	switch status {
	case models.SubscriptionActive, models.SubscriptionTrialing, models.SubscriptionPastDue:
		return true
	default:
		return false
	}
}

// effectivePlan is the plan a membership holds while its subscription is in status.
func effectivePlan(plan models.PlanType, status models.SubscriptionStatus) models.PlanType {
	if !IsEntitling(status) {
		return models.PlanFree
	}
	return plan
}
