// Package pricing maps a (plan, months) pair to the amount charged.
package pricing

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ManuelReschke/MemberPay/internal/pkg/entitlements"
)

// DefaultCurrency is the settlement currency of every configured price.
const DefaultCurrency = "CNY"

// UnknownPlanError is returned for a plan/duration pair with no price.
type UnknownPlanError struct {
	Plan   string
	Months int
}

func (e *UnknownPlanError) Error() string {
	return fmt.Sprintf("pricing: no price for plan %q with %d month(s)", e.Plan, e.Months)
}

// Table is an immutable price lookup in minor units.
type Table struct {
	currency string
	prices   map[entitlements.Plan]map[int]int64
}

// DefaultPrices is the built-in table in fen.
func DefaultPrices() map[entitlements.Plan]map[int]int64 {
	return map[entitlements.Plan]map[int]int64{
		entitlements.PlanBasic:   {1: 2900, 3: 7900, 12: 29900},
		entitlements.PlanPremium: {1: 14900, 3: 39900, 12: 149900},
		entitlements.PlanSuper:   {1: 29900, 3: 79900, 12: 299900},
	}
}

// NewTable copies prices into a new Table.
func NewTable(currency string, prices map[entitlements.Plan]map[int]int64) *Table {
	if currency == "" {
		currency = DefaultCurrency
	}
	copied := make(map[entitlements.Plan]map[int]int64, len(prices))
	for plan, byMonths := range prices {
		inner := make(map[int]int64, len(byMonths))
		for months, amount := range byMonths {
			inner[months] = amount
		}
		copied[plan] = inner
	}
	return &Table{currency: currency, prices: copied}
}

// Default returns the built-in table.
func Default() *Table {
	return NewTable(DefaultCurrency, DefaultPrices())
}

// Currency returns the settlement currency.
func (t *Table) Currency() string {
	return t.currency
}

// Price returns the amount in minor units for plan over months.
func (t *Table) Price(plan string, months int) (int64, error) {
	p := entitlements.Plan(strings.ToLower(strings.TrimSpace(plan)))
	byMonths, ok := t.prices[p]
	if !ok {
		return 0, &UnknownPlanError{Plan: plan, Months: months}
	}
	amount, ok := byMonths[months]
	if !ok || amount <= 0 {
		return 0, &UnknownPlanError{Plan: plan, Months: months}
	}
	return amount, nil
}

// ParseOverrides applies a JSON override such as {"premium":{"3":39900}} on
// top of base. Unknown tiers, non-positive months or amounts are rejected.
func ParseOverrides(base map[entitlements.Plan]map[int]int64, raw string) (map[entitlements.Plan]map[int]int64, error) {
	out := NewTable("", base).prices
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	var parsed map[string]map[string]int64
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("pricing: invalid override json: %w", err)
	}
	for planRaw, byMonths := range parsed {
		plan := entitlements.Normalize(planRaw)
		if plan == entitlements.PlanFree {
			return nil, fmt.Errorf("pricing: override names unknown plan %q", planRaw)
		}
		if out[plan] == nil {
			out[plan] = map[int]int64{}
		}
		for monthsRaw, amount := range byMonths {
			months, err := strconv.Atoi(monthsRaw)
			if err != nil || months <= 0 {
				return nil, fmt.Errorf("pricing: invalid duration %q for plan %q", monthsRaw, planRaw)
			}
			if amount <= 0 {
				return nil, fmt.Errorf("pricing: amount for %s/%d must be positive", plan, months)
			}
			out[plan][months] = amount
		}
	}
	return out, nil
}
