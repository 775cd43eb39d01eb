package domain

// TokenUsage is the fixed-shape token accounting input. Provider responses
// map into it; absent counts are zero.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Validate rejects negative counts.
func (u TokenUsage) Validate() error {
	if u.PromptTokens < 0 || u.CompletionTokens < 0 {
		return NewNegativeTokens(u.PromptTokens, u.CompletionTokens)
	}
	if u.TotalTokens < 0 {
		return NewNegativeTokens(u.PromptTokens, u.CompletionTokens)
	}
	return nil
}

// Normalize fills TotalTokens with prompt+completion when the provider did
// not supply one. A supplied total is kept even if it differs from the sum.
func (u TokenUsage) Normalize() TokenUsage {
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

// Add returns the element-wise sum of two usages.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	return TokenUsage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}
