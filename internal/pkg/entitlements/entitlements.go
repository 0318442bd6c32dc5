package entitlements

import (
	"strings"

	"github.com/ManuelReschke/MemberPay/app/models"
)

type Plan string

const (
	PlanFree    Plan = models.MembershipFree
	PlanBasic   Plan = models.MembershipBasic
	PlanPremium Plan = models.MembershipPremium
	PlanSuper   Plan = models.MembershipSuper
)

// Paid lists the tiers that can be bought, cheapest first.
var Paid = []Plan{PlanBasic, PlanPremium, PlanSuper}

// Normalize maps a raw tier string to a known plan, falling back to free.
func Normalize(raw string) Plan {
	switch p := Plan(strings.ToLower(strings.TrimSpace(raw))); p {
	case PlanBasic, PlanPremium, PlanSuper:
		return p
	default:
		return PlanFree
	}
}

// IsPaid reports whether raw names a purchasable tier.
func IsPaid(raw string) bool {
	return Normalize(raw) != PlanFree
}

// Rank orders plans; a higher rank is a higher tier.
func Rank(plan Plan) int {
	switch plan {
	case PlanSuper:
		return 3
	case PlanPremium:
		return 2
	case PlanBasic:
		return 1
	default:
		return 0
	}
}

// QuotaFor returns the quota allotment of a plan per period.
func QuotaFor(plan Plan) int {
	switch plan {
	case PlanSuper:
		return 2000
	case PlanPremium:
		return 500
	case PlanBasic:
		return 100
	default:
		return 20
	}
}
