package ledger

// Report is the aggregate usage summary with per-call breakdown.
type Report struct {
	Calls            int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	TotalCost        float64
	AvgTokensPerCall float64
	AvgCostPerCall   float64
	// PromptShare/CompletionShare split total tokens in percent.
	// Both are 0 for an empty ledger.
	PromptShare     float64
	CompletionShare float64
	Records         []CallRecord
}

// Summarize builds the usage report. Averages and shares are 0 for an empty
// ledger; no division by zero.
func (l *Ledger) Summarize() Report {
	rep := Report{
		Calls:            len(l.records),
		PromptTokens:     l.promptTokens,
		CompletionTokens: l.completionTokens,
		TotalTokens:      l.totalTokens,
		TotalCost:        l.totalCost,
		Records:          l.Records(),
	}
	if rep.Calls > 0 {
		rep.AvgTokensPerCall = float64(rep.TotalTokens) / float64(rep.Calls)
		rep.AvgCostPerCall = rep.TotalCost / float64(rep.Calls)
	}
	if rep.TotalTokens > 0 {
		rep.PromptShare = float64(rep.PromptTokens) / float64(rep.TotalTokens) * 100
		rep.CompletionShare = float64(rep.CompletionTokens) / float64(rep.TotalTokens) * 100
	}
	return rep
}
