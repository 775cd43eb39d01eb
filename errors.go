package tokentab

import "github.com/tokentab-io/tokentab/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrSessionNotFound = domain.ErrSessionNotFound
	ErrSessionEnded    = domain.ErrSessionEnded
	ErrNegativeTokens  = domain.ErrNegativeTokens
	ErrEmptyRequest    = domain.ErrEmptyRequest
	ErrRateLimited     = domain.ErrRateLimited
	ErrQuotaExceeded   = domain.ErrQuotaExceeded
	ErrProviderError   = domain.ErrProviderError
	ErrProviderAuth    = domain.ErrProviderAuth
	ErrToolNotFound    = domain.ErrToolNotFound
	ErrToolFailed      = domain.ErrToolFailed
)
