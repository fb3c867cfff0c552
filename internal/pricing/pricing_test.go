package pricing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculate_OneMillionInputHalfMillionOutput(t *testing.T) {
	cost := Calculate(1_000_000, 500_000, 35)
	assert.Equal(t, 1.55, cost.USD)
	assert.Equal(t, 54.25, cost.THB)
}

func TestCalculate_ZeroTokens(t *testing.T) {
	assert.Equal(t, Cost{}, Calculate(0, 0, 36.5))
	assert.Equal(t, Cost{}, Calculate(-10, -20, 36.5))
}

func TestCalculate_IsIdempotent(t *testing.T) {
	a := Calculate(123_456, 7_890, 33.21)
	b := Calculate(123_456, 7_890, 33.21)
	assert.Equal(t, a, b)
}

func TestCalculate_RoundsCurrencies(t *testing.T) {
	// 1 input token = 0.0000003 USD, rounded to 6 decimals.
	cost := Calculate(1, 0, 35)
	assert.Equal(t, 0.0, cost.USD)

	cost = Calculate(3, 1, 35)
	assert.Equal(t, 0.000003, cost.USD)
	assert.Equal(t, 0.0, cost.THB)
}

func TestCalculate_BadRateUsesDefault(t *testing.T) {
	want := Calculate(1_000_000, 0, DefaultUSDToTHB)
	for _, rate := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		assert.Equal(t, want, Calculate(1_000_000, 0, rate), "rate %v", rate)
	}
}

func TestPricing_CustomPrices(t *testing.T) {
	p := Pricing{InputPerMillion: 1, OutputPerMillion: 2}
	cost := p.Calculate(2_000_000, 1_000_000, 10)
	assert.Equal(t, 4.0, cost.USD)
	assert.Equal(t, 40.0, cost.THB)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 33.33, Round(100.0/3, 2))
	assert.Equal(t, 66.67, Round(200.0/3, 2))
	assert.Equal(t, 0.0, Round(0, 2))
}
