package tokentab

import (
	"context"
	"errors"
	"fmt"

	"github.com/tokentab-io/tokentab/internal/domain"
)

// Provider is a pluggable chat backend. Implementations translate the
// request to their wire format and report token usage with the response;
// the ledger books whatever usage the provider returns.
type Provider interface {
	Complete(ctx context.Context, req ChatRequest) (ChatResponse, error)
	Stream(ctx context.Context, req ChatRequest, onDelta func(Delta) error) (ChatResponse, error)
}

// providerAdapter wraps a public Provider to satisfy the internal chat
// contract.
type providerAdapter struct {
	inner Provider
}

func (a *providerAdapter) Complete(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	resp, err := a.inner.Complete(ctx, requestFromDomain(req))
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("complete: %w", err)
	}
	return responseToDomain(resp), nil
}

func (a *providerAdapter) Stream(
	ctx context.Context, req domain.ChatRequest, onDelta func(domain.StreamDelta) error,
) (domain.ChatResponse, error) {
	cb := func(d Delta) error {
		return onDelta(domain.StreamDelta{Content: d.Content})
	}
	resp, err := a.inner.Stream(ctx, requestFromDomain(req), cb)
	if err != nil {
		return domain.ChatResponse{}, fmt.Errorf("stream: %w", err)
	}
	return responseToDomain(resp), nil
}

var errNoProvider = errors.New(
	"tokentab: chat provider not configured (use WithOpenAI or WithProvider)",
)

// noopProvider errors on every call (used when no provider is configured).
// Tracking, reports and exports work without one; chat does not.
type noopProvider struct{}

func (noopProvider) Complete(_ context.Context, _ domain.ChatRequest) (domain.ChatResponse, error) {
	return domain.ChatResponse{}, errNoProvider
}

func (noopProvider) Stream(
	_ context.Context, _ domain.ChatRequest, _ func(domain.StreamDelta) error,
) (domain.ChatResponse, error) {
	return domain.ChatResponse{}, errNoProvider
}
