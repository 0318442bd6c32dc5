package pricing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/MemberPay/internal/pkg/entitlements"
)

func TestDefaultTablePrices(t *testing.T) {
	table := Default()

	amount, err := table.Price("premium", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(39900), amount)

	amount, err = table.Price("Basic", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2900), amount)
	assert.Equal(t, "CNY", table.Currency())
}

func TestPriceUnknownCombination(t *testing.T) {
	table := Default()
	for _, tc := range []struct {
		plan   string
		months int
	}{
		{"premium", 2},
		{"gold", 1},
		{"free", 1},
		{"basic", 0},
	} {
		_, err := table.Price(tc.plan, tc.months)
		var upe *UnknownPlanError
		require.Truef(t, errors.As(err, &upe), "%s/%d", tc.plan, tc.months)
		assert.Equal(t, tc.months, upe.Months)
	}
}

func TestParseOverrides(t *testing.T) {
	prices, err := ParseOverrides(DefaultPrices(), `{"premium":{"3":35000,"6":69900}}`)
	require.NoError(t, err)
	table := NewTable("", prices)

	amount, err := table.Price("premium", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(35000), amount)
	amount, err = table.Price("premium", 6)
	require.NoError(t, err)
	assert.Equal(t, int64(69900), amount)

	// base map stays untouched
	assert.Equal(t, int64(39900), DefaultPrices()[entitlements.PlanPremium][3])

	_, err = ParseOverrides(DefaultPrices(), `{"gold":{"1":100}}`)
	assert.Error(t, err)
	_, err = ParseOverrides(DefaultPrices(), `{"basic":{"x":100}}`)
	assert.Error(t, err)
	_, err = ParseOverrides(DefaultPrices(), `{"basic":{"1":0}}`)
	assert.Error(t, err)
	_, err = ParseOverrides(DefaultPrices(), `not json`)
	assert.Error(t, err)
}

func TestMoneyConversion(t *testing.T) {
	minor, err := ToMinorUnits("399.00")
	require.NoError(t, err)
	assert.Equal(t, int64(39900), minor)

	minor, err = ToMinorUnits("0.01")
	require.NoError(t, err)
	assert.Equal(t, int64(1), minor)

	_, err = ToMinorUnits("1.001")
	assert.Error(t, err)
	_, err = ToMinorUnits("-1")
	assert.Error(t, err)
	_, err = ToMinorUnits("abc")
	assert.Error(t, err)

	assert.Equal(t, "399.00", FormatMajor(39900))
	assert.Equal(t, "0.05", FormatMajor(5))
}
