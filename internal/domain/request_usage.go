package domain

import "context"

type requestUsageKey struct{}

// RequestUsage collects token usage for a single HTTP request.
// The handler puts a mutable pointer into the context before calling the
// service; the service writes after each provider call; the handler reads it
// for response headers.
type RequestUsage struct {
	TotalTokens int
	Cost        float64
	Used        bool // true once a provider call was made
}

// NewContextWithUsage returns a context with an embedded usage collector.
func NewContextWithUsage(ctx context.Context) (context.Context, *RequestUsage) {
	u := &RequestUsage{}
	return context.WithValue(ctx, requestUsageKey{}, u), u
}

// UsageFromContext extracts the usage collector from context. Returns nil if not set.
func UsageFromContext(ctx context.Context) *RequestUsage {
	u, _ := ctx.Value(requestUsageKey{}).(*RequestUsage)
	return u
}

// Observe records one provider call's consumption.
func (u *RequestUsage) Observe(tokens int, cost float64) {
	if u != nil {
		u.TotalTokens += tokens
		u.Cost += cost
		u.Used = true
	}
}
