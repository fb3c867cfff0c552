// Package pricing estimates the cost of OCR token usage.
package pricing

import "math"

const (
	// DefaultInputPerMillion is the USD price of one million input tokens.
	DefaultInputPerMillion = 0.30
	// DefaultOutputPerMillion is the USD price of one million output tokens.
	DefaultOutputPerMillion = 2.50
	// DefaultUSDToTHB is used whenever no usable exchange rate is available.
	DefaultUSDToTHB = 35.0
)

// Pricing holds per-million token prices in USD.
type Pricing struct {
	InputPerMillion  float64 `json:"inputRatePerMillion"`
	OutputPerMillion float64 `json:"outputRatePerMillion"`
}

// Default returns the standard OCR model prices.
func Default() Pricing {
	return Pricing{
		InputPerMillion:  DefaultInputPerMillion,
		OutputPerMillion: DefaultOutputPerMillion,
	}
}

// Cost is an estimated price in both currencies.
type Cost struct {
	USD float64 `json:"usd"`
	THB float64 `json:"thb"`
}

// Calculate prices the given token counts. Negative counts count as zero and
// an unusable rate falls back to DefaultUSDToTHB.
func (p Pricing) Calculate(inputTokens, outputTokens int64, usdToTHB float64) Cost {
	if inputTokens < 0 {
		inputTokens = 0
	}
	if outputTokens < 0 {
		outputTokens = 0
	}
	usd := float64(inputTokens)/1_000_000*p.InputPerMillion +
		float64(outputTokens)/1_000_000*p.OutputPerMillion
	usd = Round(usd, 6)
	return Cost{
		USD: usd,
		THB: Round(usd*EffectiveRate(usdToTHB), 2),
	}
}

// Calculate prices token counts with the default prices.
func Calculate(inputTokens, outputTokens int64, usdToTHB float64) Cost {
	return Default().Calculate(inputTokens, outputTokens, usdToTHB)
}

// EffectiveRate returns rate, or DefaultUSDToTHB when rate is not a positive
// finite number.
func EffectiveRate(rate float64) float64 {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return DefaultUSDToTHB
	}
	return rate
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
