package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestQuantize(t *testing.T) {
	assert.Equal(t, "10.01", FormatMoney(Quantize(decimal.RequireFromString("10.005"))))
	assert.Equal(t, "-10.01", FormatMoney(Quantize(decimal.RequireFromString("-10.005"))))
	assert.Equal(t, "0.00", FormatMoney(Quantize(decimal.RequireFromString("0.004"))))
}

func TestAmountLimits(t *testing.T) {
	tests := []struct {
		in     string
		within bool
		valid  bool
	}{
		{"0.01", true, true},
		{"999999999999.99", true, true},
		{"999999999999.994", true, true},
		{"999999999999.995", false, false},
		{"1000000000000", false, false},
		{"-999999999999.99", true, false},
		{"0", true, false},
		{"0.004", true, false},
		{"1e13", false, false},
		{"1e200000000", false, false},
		{"1e-200000000", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d := decimal.RequireFromString(tt.in)
			assert.Equal(t, tt.within, WithinLimit(d))
			assert.Equal(t, tt.valid, ValidAmount(d))
		})
	}
}
