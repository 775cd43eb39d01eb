package domain

import "fmt"

// Pricing holds USD rates per million tokens.
type Pricing struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultPricing returns gpt-4o-mini class rates.
func DefaultPricing() Pricing {
	return Pricing{
		InputPerMillion:  0.15,
		OutputPerMillion: 0.60,
	}
}

// DefaultWarnThreshold is the cumulative token count above which a session
// surfaces a usage warning after each recorded call.
const DefaultWarnThreshold = 10000

// Validate rejects negative rates.
func (p Pricing) Validate() error {
	if p.InputPerMillion < 0 || p.OutputPerMillion < 0 {
		return fmt.Errorf("pricing rates must be non-negative: input=%v output=%v",
			p.InputPerMillion, p.OutputPerMillion)
	}
	return nil
}

// Cost computes the USD cost of a usage at these rates.
func (p Pricing) Cost(u TokenUsage) float64 {
	inputCost := float64(u.PromptTokens) / 1_000_000 * p.InputPerMillion
	outputCost := float64(u.CompletionTokens) / 1_000_000 * p.OutputPerMillion
	return inputCost + outputCost
}
