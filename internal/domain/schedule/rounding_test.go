package schedule

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"10.004", "10.00"},
		{"10.005", "10.01"},
		{"10.006", "10.01"},
		{"10.995", "11.00"},
		{"-10.005", "-10.01"},
		{"0", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			in, err := decimal.NewFromString(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, Round(in).StringFixed(2))
		})
	}
}

func TestReconcileSumsExactly(t *testing.T) {
	total := decimal.NewFromFloat(100.00)
	shares := Reconcile(total, 3)
	require.Len(t, shares, 3)

	assert.Equal(t, "33.33", shares[0].StringFixed(2))
	assert.Equal(t, "33.33", shares[1].StringFixed(2))
	assert.Equal(t, "33.34", shares[2].StringFixed(2))

	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(s)
	}
	assert.True(t, sum.Equal(total), "shares must sum to the rounded total, got %s", sum)
}

func TestReconcileSingleShare(t *testing.T) {
	shares := Reconcile(decimal.NewFromFloat(19.999), 1)
	require.Len(t, shares, 1)
	assert.Equal(t, "20.00", shares[0].StringFixed(2))
}

func TestReconcileInvalidCount(t *testing.T) {
	assert.Nil(t, Reconcile(decimal.NewFromInt(100), 0))
	assert.Nil(t, Reconcile(decimal.NewFromInt(100), -2))
}
