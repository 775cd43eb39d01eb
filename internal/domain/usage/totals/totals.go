package totals

// Totals holds chat API consumption for a time period.
type Totals struct {
	requests         int64
	promptTokens     int64
	completionTokens int64
	totalTokens      int64
	costUSD          float64
}

// New creates a Totals snapshot.
func New(requests, promptTokens, completionTokens, totalTokens int64, costUSD float64) Totals {
	return Totals{
		requests:         requests,
		promptTokens:     promptTokens,
		completionTokens: completionTokens,
		totalTokens:      totalTokens,
		costUSD:          costUSD,
	}
}

// Requests returns the number of chat calls.
func (t Totals) Requests() int64 { return t.requests }

// PromptTokens returns prompt tokens consumed.
func (t Totals) PromptTokens() int64 { return t.promptTokens }

// CompletionTokens returns completion tokens produced.
func (t Totals) CompletionTokens() int64 { return t.completionTokens }

// TotalTokens returns the total tokens consumed.
func (t Totals) TotalTokens() int64 { return t.totalTokens }

// CostUSD returns the accumulated cost in USD.
func (t Totals) CostUSD() float64 { return t.costUSD }
