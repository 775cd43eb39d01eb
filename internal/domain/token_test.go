package domain

import (
	"errors"
	"testing"
)

func TestTokenUsage_Normalize(t *testing.T) {
	cases := []struct {
		name  string
		in    TokenUsage
		total int
	}{
		{"fills missing total", TokenUsage{PromptTokens: 3, CompletionTokens: 4}, 7},
		{"keeps supplied total", TokenUsage{PromptTokens: 3, CompletionTokens: 4, TotalTokens: 10}, 10},
		{"zero stays zero", TokenUsage{}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Normalize()
			if got.TotalTokens != tc.total {
				t.Errorf("TotalTokens = %d, want %d", got.TotalTokens, tc.total)
			}
		})
	}
}

func TestTokenUsage_Validate(t *testing.T) {
	if err := (TokenUsage{PromptTokens: 1, CompletionTokens: 2}).Validate(); err != nil {
		t.Errorf("valid usage rejected: %v", err)
	}

	bad := []TokenUsage{
		{PromptTokens: -1},
		{CompletionTokens: -1},
		{TotalTokens: -1},
	}
	for _, u := range bad {
		err := u.Validate()
		if !errors.Is(err, ErrNegativeTokens) {
			t.Errorf("Validate(%+v) = %v, want ErrNegativeTokens", u, err)
		}
	}
}

func TestTokenUsage_Add(t *testing.T) {
	a := TokenUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3}
	b := TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30}

	got := a.Add(b)
	if got.PromptTokens != 11 || got.CompletionTokens != 22 || got.TotalTokens != 33 {
		t.Errorf("Add = %+v", got)
	}
}

func TestNegativeTokensError_Message(t *testing.T) {
	err := NewNegativeTokens(-5, 2)
	want := "negative token count: prompt=-5 completion=2"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrNegativeTokens) {
		t.Error("errors.Is(err, ErrNegativeTokens) = false")
	}
}
