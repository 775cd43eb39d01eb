package ledger

import (
	"errors"
	"math"
	"testing"

	"github.com/tokentab-io/tokentab/internal/domain"
)

func testPricing() domain.Pricing {
	return domain.Pricing{InputPerMillion: 0.15, OutputPerMillion: 0.60}
}

func TestRecord_AssignsSequenceAndTotal(t *testing.T) {
	l := New(testPricing(), 0)

	r1, err := l.Record("first", domain.TokenUsage{PromptTokens: 10, CompletionTokens: 5})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	r2, err := l.Record("second", domain.TokenUsage{PromptTokens: 7, CompletionTokens: 3})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	if r1.Number() != 1 || r2.Number() != 2 {
		t.Errorf("Number() = %d, %d; want 1, 2", r1.Number(), r2.Number())
	}
	if r1.Usage().TotalTokens != 15 {
		t.Errorf("r1 TotalTokens = %d, want 15", r1.Usage().TotalTokens)
	}
	if r1.Query() != "first" {
		t.Errorf("r1 Query() = %q", r1.Query())
	}
	if l.Len() != 2 {
		t.Errorf("Len() = %d, want 2", l.Len())
	}
}

func TestRecord_TotalDefaultsToSum(t *testing.T) {
	cases := []struct {
		name      string
		usage     domain.TokenUsage
		wantTotal int
	}{
		{"computed", domain.TokenUsage{PromptTokens: 12, CompletionTokens: 8}, 20},
		{"supplied total wins", domain.TokenUsage{PromptTokens: 12, CompletionTokens: 8, TotalTokens: 25}, 25},
		{"all zero", domain.TokenUsage{}, 0},
		{"only total", domain.TokenUsage{TotalTokens: 9}, 9},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := New(testPricing(), 0)
			r, err := l.Record("q", tc.usage)
			if err != nil {
				t.Fatalf("Record: %v", err)
			}
			if r.Usage().TotalTokens != tc.wantTotal {
				t.Errorf("TotalTokens = %d, want %d", r.Usage().TotalTokens, tc.wantTotal)
			}
		})
	}
}

func TestRecord_RejectsNegativeTokens(t *testing.T) {
	cases := []domain.TokenUsage{
		{PromptTokens: -1},
		{CompletionTokens: -5},
		{PromptTokens: 1, CompletionTokens: 1, TotalTokens: -2},
	}

	for _, usage := range cases {
		l := New(testPricing(), 0)
		_, err := l.Record("q", usage)
		if !errors.Is(err, domain.ErrNegativeTokens) {
			t.Errorf("Record(%+v) err = %v, want ErrNegativeTokens", usage, err)
		}
		if l.Len() != 0 {
			t.Errorf("rejected record must not be appended, Len() = %d", l.Len())
		}
	}
}

func TestAggregates_SumOfRecords(t *testing.T) {
	l := New(testPricing(), 0)
	totals := []int{100, 200, 300}
	for _, n := range totals {
		if _, err := l.Record("q", domain.TokenUsage{PromptTokens: n}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	if l.TotalTokens() != 600 {
		t.Errorf("TotalTokens() = %d, want 600", l.TotalTokens())
	}

	var sum int
	var costSum float64
	for _, r := range l.Records() {
		sum += r.Usage().TotalTokens
		costSum += r.Cost()
	}
	if sum != l.TotalTokens() {
		t.Errorf("sum of record totals %d != aggregate %d", sum, l.TotalTokens())
	}
	if math.Abs(costSum-l.TotalCost()) > 1e-12 {
		t.Errorf("sum of record costs %v != aggregate %v", costSum, l.TotalCost())
	}

	rep := l.Summarize()
	if rep.AvgTokensPerCall != 200 {
		t.Errorf("AvgTokensPerCall = %v, want 200", rep.AvgTokensPerCall)
	}
}

func TestCost_PublishedRates(t *testing.T) {
	l := New(testPricing(), 0)

	rIn, err := l.Record("q", domain.TokenUsage{PromptTokens: 1_000_000})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rIn.Cost() != 0.15 {
		t.Errorf("1M prompt tokens cost = %v, want 0.15", rIn.Cost())
	}

	rOut, err := l.Record("q", domain.TokenUsage{CompletionTokens: 1_000_000})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rOut.Cost() != 0.60 {
		t.Errorf("1M completion tokens cost = %v, want 0.60", rOut.Cost())
	}
}

func TestCost_LinearInPromptTokens(t *testing.T) {
	l := New(testPricing(), 0)

	base, _ := l.Record("q", domain.TokenUsage{PromptTokens: 5000, CompletionTokens: 1000})
	doubled, _ := l.Record("q", domain.TokenUsage{PromptTokens: 10000, CompletionTokens: 1000})

	outputCost := float64(1000) / 1_000_000 * 0.60
	basePrompt := base.Cost() - outputCost
	doubledPrompt := doubled.Cost() - outputCost
	if math.Abs(doubledPrompt-2*basePrompt) > 1e-12 {
		t.Errorf("prompt cost not linear: base %v, doubled %v", basePrompt, doubledPrompt)
	}
}

func TestEmptyLedger(t *testing.T) {
	l := New(testPricing(), 0)

	if l.TotalTokens() != 0 {
		t.Errorf("TotalTokens() = %d, want 0", l.TotalTokens())
	}
	if l.TotalCost() != 0 {
		t.Errorf("TotalCost() = %v, want 0", l.TotalCost())
	}

	rep := l.Summarize()
	if rep.AvgTokensPerCall != 0 || rep.AvgCostPerCall != 0 {
		t.Errorf("empty ledger averages = %v, %v; want 0, 0", rep.AvgTokensPerCall, rep.AvgCostPerCall)
	}
	if rep.PromptShare != 0 || rep.CompletionShare != 0 {
		t.Errorf("empty ledger shares = %v, %v; want 0, 0", rep.PromptShare, rep.CompletionShare)
	}
}

func TestOverThreshold_CumulativeAfterAppend(t *testing.T) {
	l := New(testPricing(), 100)

	if _, err := l.Record("q", domain.TokenUsage{PromptTokens: 60}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if l.OverThreshold() {
		t.Error("OverThreshold() = true at 60/100")
	}

	// 120 cumulative crosses the limit even though this call alone is under it.
	if _, err := l.Record("q", domain.TokenUsage{PromptTokens: 60}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !l.OverThreshold() {
		t.Error("OverThreshold() = false at 120/100")
	}
}

func TestOverThreshold_DisabledAtZero(t *testing.T) {
	l := New(testPricing(), 0)
	if _, err := l.Record("q", domain.TokenUsage{PromptTokens: 1_000_000}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if l.OverThreshold() {
		t.Error("OverThreshold() = true with threshold disabled")
	}
}

func TestSummarize_Shares(t *testing.T) {
	l := New(testPricing(), 0)
	if _, err := l.Record("q", domain.TokenUsage{PromptTokens: 750, CompletionTokens: 250}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	rep := l.Summarize()
	if rep.PromptShare != 75 {
		t.Errorf("PromptShare = %v, want 75", rep.PromptShare)
	}
	if rep.CompletionShare != 25 {
		t.Errorf("CompletionShare = %v, want 25", rep.CompletionShare)
	}
	if len(rep.Records) != 1 {
		t.Errorf("Records len = %d, want 1", len(rep.Records))
	}
}

func TestReconstruct_PreservesStoredCosts(t *testing.T) {
	stored := []CallRecord{
		RestoreRecord(1, "a", domain.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150}, 0.002),
		RestoreRecord(2, "b", domain.TokenUsage{PromptTokens: 30, CompletionTokens: 20, TotalTokens: 50}, 0.001),
	}

	// Different rates than the records were priced at: stored costs must win.
	l := Reconstruct(domain.Pricing{InputPerMillion: 99, OutputPerMillion: 99}, 0, stored)

	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}
	if l.TotalTokens() != 200 {
		t.Errorf("TotalTokens() = %d, want 200", l.TotalTokens())
	}
	if math.Abs(l.TotalCost()-0.003) > 1e-12 {
		t.Errorf("TotalCost() = %v, want 0.003", l.TotalCost())
	}

	next, err := l.Record("c", domain.TokenUsage{PromptTokens: 1})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if next.Number() != 3 {
		t.Errorf("next Number() = %d, want 3", next.Number())
	}
}

func TestRecords_ReturnsCopy(t *testing.T) {
	l := New(testPricing(), 0)
	if _, err := l.Record("q", domain.TokenUsage{PromptTokens: 1}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	recs := l.Records()
	recs[0] = RestoreRecord(99, "mutated", domain.TokenUsage{}, 0)

	if l.Records()[0].Number() != 1 {
		t.Error("mutating the returned slice must not affect the ledger")
	}
}
