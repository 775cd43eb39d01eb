package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound signals a missing session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionEnded signals an operation against an ended session.
	ErrSessionEnded = errors.New("session ended")
	// ErrNegativeTokens signals a negative token count in usage input.
	ErrNegativeTokens = errors.New("negative token count")
	// ErrEmptyRequest signals a chat request without messages.
	ErrEmptyRequest = errors.New("empty chat request")
	// ErrRateLimited signals a provider rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExceeded signals an exhausted token budget.
	ErrQuotaExceeded = errors.New("token quota exceeded")
	// ErrProviderError signals a chat provider failure.
	ErrProviderError = errors.New("chat provider error")
	// ErrProviderAuth signals rejected provider credentials.
	ErrProviderAuth = errors.New("provider authentication failed")
	// ErrToolNotFound signals a call to an unregistered tool.
	ErrToolNotFound = errors.New("tool not found")
	// ErrToolFailed signals a tool execution failure.
	ErrToolFailed = errors.New("tool execution failed")
	// ErrNotImplemented signals an unimplemented feature.
	ErrNotImplemented = errors.New("not implemented")
)

// NegativeTokensError wraps ErrNegativeTokens with the offending counts.
type NegativeTokensError struct {
	PromptTokens     int
	CompletionTokens int
}

func (e *NegativeTokensError) Error() string {
	return fmt.Sprintf("%s: prompt=%d completion=%d",
		ErrNegativeTokens.Error(), e.PromptTokens, e.CompletionTokens)
}

func (e *NegativeTokensError) Unwrap() error { return ErrNegativeTokens }

// NewNegativeTokens creates a negative token count error.
func NewNegativeTokens(promptTokens, completionTokens int) error {
	return &NegativeTokensError{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}
}
