package totals

import "testing"

func TestNew(t *testing.T) {
	tot := New(10, 700, 300, 1000, 0.000625)

	if tot.Requests() != 10 {
		t.Errorf("Requests() = %d", tot.Requests())
	}
	if tot.PromptTokens() != 700 {
		t.Errorf("PromptTokens() = %d", tot.PromptTokens())
	}
	if tot.CompletionTokens() != 300 {
		t.Errorf("CompletionTokens() = %d", tot.CompletionTokens())
	}
	if tot.TotalTokens() != 1000 {
		t.Errorf("TotalTokens() = %d", tot.TotalTokens())
	}
	if tot.CostUSD() != 0.000625 {
		t.Errorf("CostUSD() = %v", tot.CostUSD())
	}
}
