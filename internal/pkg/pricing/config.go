package pricing

import (
	"github.com/ManuelReschke/MemberPay/internal/pkg/env"
)

// LoadFromEnv builds the table from PRICE_CURRENCY and PRICE_TABLE.
func LoadFromEnv() (*Table, error) {
	prices, err := ParseOverrides(DefaultPrices(), env.GetEnv("PRICE_TABLE", ""))
	if err != nil {
		return nil, err
	}
	return NewTable(env.GetEnv("PRICE_CURRENCY", DefaultCurrency), prices), nil
}
