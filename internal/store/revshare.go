package store

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RevenueSplit divides a purchase amount between the platform and the
// item's developer.
type RevenueSplit struct {
	PlatformFeeSats    int64
	DeveloperShareSats int64
}

// SplitRevenue applies the platform fee percentage to a sat amount. The fee
// is floored so rounding always favors the developer, and the two shares
// always sum to the original amount.
func SplitRevenue(amountSats int64, feePercent decimal.Decimal) (RevenueSplit, error) {
	if amountSats < 0 {
		return RevenueSplit{}, fmt.Errorf("split revenue: negative amount %d", amountSats)
	}
	if feePercent.IsNegative() || feePercent.GreaterThan(decimal.NewFromInt(100)) {
		return RevenueSplit{}, fmt.Errorf("split revenue: fee percent %s out of range", feePercent)
	}

	fee := decimal.NewFromInt(amountSats).
		Mul(feePercent).
		Div(decimal.NewFromInt(100)).
		Floor().
		IntPart()

	return RevenueSplit{
		PlatformFeeSats:    fee,
		DeveloperShareSats: amountSats - fee,
	}, nil
}
