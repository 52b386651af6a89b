package store

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRevenue(t *testing.T) {
	cases := []struct {
		amount  int64
		percent string
		fee     int64
	}{
		{1000, "10", 100},
		{1000, "0", 0},
		{1000, "100", 1000},
		{999, "10", 99},   // 99.9 floors toward the developer
		{21, "2.5", 0},    // 0.525 floors to zero
		{100000, "2.5", 2500},
		{1, "50", 0},
	}
	for _, c := range cases {
		split, err := SplitRevenue(c.amount, decimal.RequireFromString(c.percent))
		require.NoError(t, err)
		assert.Equal(t, c.fee, split.PlatformFeeSats, "amount=%d percent=%s", c.amount, c.percent)
		assert.Equal(t, c.amount, split.PlatformFeeSats+split.DeveloperShareSats,
			"shares must sum to the original amount")
	}
}

func TestSplitRevenueRejectsBadInput(t *testing.T) {
	_, err := SplitRevenue(-1, decimal.NewFromInt(10))
	assert.Error(t, err)

	_, err = SplitRevenue(100, decimal.NewFromInt(-1))
	assert.Error(t, err)

	_, err = SplitRevenue(100, decimal.NewFromInt(101))
	assert.Error(t, err)
}
