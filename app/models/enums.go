package models

import (
	"slices"
	"strconv"
	"strings"
)

type PlanType string

const (
	PlanFree PlanType = "free"
	PlanPlus PlanType = "plus"
)

func (PlanType) Values() []string {
	return []string{string(PlanFree), string(PlanPlus)}
}

func (p PlanType) Valid() bool {
	return slices.Contains(p.Values(), string(p))
}

// SubscriptionStatus mirrors the billing provider's subscription states.
type SubscriptionStatus string

const (
	SubscriptionActive            SubscriptionStatus = "active"
	SubscriptionTrialing          SubscriptionStatus = "trialing"
	SubscriptionIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionPastDue           SubscriptionStatus = "past_due"
	SubscriptionCanceled          SubscriptionStatus = "canceled"
	SubscriptionUnpaid            SubscriptionStatus = "unpaid"
)

func (SubscriptionStatus) Values() []string {
	return []string{
		string(SubscriptionActive),
		string(SubscriptionTrialing),
		string(SubscriptionIncomplete),
		string(SubscriptionIncompleteExpired),
		string(SubscriptionPastDue),
		string(SubscriptionCanceled),
		string(SubscriptionUnpaid),
	}
}

func (s SubscriptionStatus) Valid() bool {
	return slices.Contains(s.Values(), string(s))
}

type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

func (Role) Values() []string {
	return []string{string(RoleOwner), string(RoleMember)}
}

func (r Role) Valid() bool {
	return slices.Contains(r.Values(), string(r))
}

// Deductible is the out-of-pocket amount per claim of a service contract, in dollars.
type Deductible int

const (
	Deductible0   Deductible = 0
	Deductible100 Deductible = 100
	Deductible250 Deductible = 250
)

func (Deductible) Values() []string {
	return []string{"0", "100", "250"}
}

func (d Deductible) Valid() bool {
	return slices.Contains(d.Values(), strconv.Itoa(int(d)))
}

type ContractStatus string

const (
	ContractOpen     ContractStatus = "open"
	ContractSigned   ContractStatus = "signed"
	ContractPaid     ContractStatus = "paid"
	ContractRemitted ContractStatus = "remitted"
	ContractVoid     ContractStatus = "void"
)

func (ContractStatus) Values() []string {
	return []string{
		string(ContractOpen),
		string(ContractSigned),
		string(ContractPaid),
		string(ContractRemitted),
		string(ContractVoid),
	}
}

func (s ContractStatus) Valid() bool {
	return slices.Contains(s.Values(), string(s))
}

var contractTransitions = map[ContractStatus][]ContractStatus{
	ContractOpen:   {ContractSigned, ContractVoid},
	ContractSigned: {ContractPaid, ContractVoid},
	ContractPaid:   {ContractRemitted, ContractVoid},
}

// CanTransition reports whether a contract in status s may move to status to.
// Writing the current status again is always allowed.
func (s ContractStatus) CanTransition(to ContractStatus) bool {
	if s == to {
		return true
	}
	return slices.Contains(contractTransitions[s], to)
}

// Terminal reports whether no further transition is possible.
func (s ContractStatus) Terminal() bool {
	return len(contractTransitions[s]) == 0
}

func oneOf(values []string) string {
	return "oneof=" + strings.Join(values, " ")
}
