package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount such as "399.00" to fen.
// Amounts with more than two decimal places are rejected.
func ToMinorUnits(major string) (int64, error) {
	d, err := decimal.NewFromString(major)
	if err != nil {
		return 0, fmt.Errorf("pricing: invalid amount %q: %w", major, err)
	}
	minor := d.Mul(hundred)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("pricing: amount %q has sub-minor precision", major)
	}
	if minor.IsNegative() {
		return 0, fmt.Errorf("pricing: amount %q is negative", major)
	}
	return minor.IntPart(), nil
}

// FormatMajor renders fen as a two-decimal major-unit string.
func FormatMajor(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
