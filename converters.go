package tokentab

import (
	"time"

	"github.com/tokentab-io/tokentab/internal/domain"
	"github.com/tokentab-io/tokentab/internal/domain/ledger"
	domsession "github.com/tokentab-io/tokentab/internal/domain/session"
	domusage "github.com/tokentab-io/tokentab/internal/domain/usage"
	chatuc "github.com/tokentab-io/tokentab/internal/usecase/chat"
	healthuc "github.com/tokentab-io/tokentab/internal/usecase/health"
)

func messagesToDomain(messages []Message) []domain.Message {
	out := make([]domain.Message, len(messages))
	for i, m := range messages {
		out[i] = domain.Message{
			Role:       domain.Role(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
			ToolCalls:  toolCallsToDomain(m.ToolCalls),
		}
	}
	return out
}

func messagesFromDomain(messages []domain.Message) []Message {
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = Message{
			Role:       Role(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
			ToolCalls:  toolCallsFromDomain(m.ToolCalls),
		}
	}
	return out
}

func toolCallsToDomain(calls []ToolCall) []domain.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]domain.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = domain.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	return out
}

func toolCallsFromDomain(calls []domain.ToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, len(calls))
	for i, c := range calls {
		out[i] = ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	return out
}

func specsFromDomain(specs []domain.ToolSpec) []ToolSpec {
	if len(specs) == 0 {
		return nil
	}
	out := make([]ToolSpec, len(specs))
	for i, s := range specs {
		out[i] = ToolSpec{Name: s.Name, Description: s.Description, Parameters: s.Parameters}
	}
	return out
}

func usageToDomain(u Usage) domain.TokenUsage {
	return domain.TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

func usageFromDomain(u domain.TokenUsage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

// requestFromDomain converts the internal provider request for a custom
// Provider backend.
func requestFromDomain(req domain.ChatRequest) ChatRequest {
	return ChatRequest{
		Messages:    messagesFromDomain(req.Messages),
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Tools:       specsFromDomain(req.Tools),
	}
}

func responseToDomain(resp ChatResponse) domain.ChatResponse {
	return domain.ChatResponse{
		Content:      resp.Content,
		FinishReason: resp.FinishReason,
		ToolCalls:    toolCallsToDomain(resp.ToolCalls),
		Model:        resp.Model,
		Usage:        usageToDomain(resp.Usage),
	}
}

func recordFromLedger(r ledger.CallRecord) CallRecord {
	return CallRecord{
		Call:  r.Number(),
		Query: r.Query(),
		Usage: usageFromDomain(r.Usage()),
		Cost:  r.Cost(),
	}
}

func recordsFromLedger(records []ledger.CallRecord) []CallRecord {
	out := make([]CallRecord, len(records))
	for i, r := range records {
		out[i] = recordFromLedger(r)
	}
	return out
}

func sessionInfo(s domsession.Session) SessionInfo {
	info := SessionInfo{
		ID:    s.ID(),
		Label: s.Label(),
		Model: s.Model(),
		Pricing: Pricing{
			InputPerMillion:  s.Pricing().InputPerMillion,
			OutputPerMillion: s.Pricing().OutputPerMillion,
		},
		WarnThreshold: s.WarnThreshold(),
		CreatedAt:     time.UnixMilli(s.CreatedAt()).UTC(),
	}
	if s.Ended() {
		info.EndedAt = time.UnixMilli(s.EndedAt()).UTC()
	}
	return info
}

func reportFromLedger(rep ledger.Report) Report {
	return Report{
		Calls:             rep.Calls,
		PromptTokens:      rep.PromptTokens,
		CompletionTokens:  rep.CompletionTokens,
		TotalTokens:       rep.TotalTokens,
		TotalCost:         rep.TotalCost,
		AvgTokensPerCall:  rep.AvgTokensPerCall,
		AvgCostPerCall:    rep.AvgCostPerCall,
		PromptPercent:     rep.PromptShare,
		CompletionPercent: rep.CompletionShare,
		Records:           recordsFromLedger(rep.Records),
	}
}

func chatResultFromUC(res chatuc.Result) ChatResult {
	out := ChatResult{
		Content:          res.Response.Content,
		FinishReason:     res.Response.FinishReason,
		Model:            res.Response.Model,
		ToolCalls:        toolCallsFromDomain(res.Response.ToolCalls),
		Usage:            usageFromDomain(res.Usage),
		Cost:             res.Cost,
		Records:          recordsFromLedger(res.Records),
		SessionTokens:    res.SessionTokens,
		SessionCost:      res.SessionCost,
		ThresholdWarning: res.ThresholdWarning,
	}
	for _, tr := range res.ToolResults {
		out.ToolResults = append(out.ToolResults, ToolResult(tr))
	}
	return out
}

func usageReportFromDomain(rep domusage.Report) UsageReport {
	t := rep.Totals()
	b := rep.Budget()

	out := UsageReport{
		Period:         UsagePeriod(rep.Period()),
		SessionsActive: rep.SessionsActive(),
		Totals: Totals{
			Requests:         t.Requests(),
			PromptTokens:     t.PromptTokens(),
			CompletionTokens: t.CompletionTokens(),
			TotalTokens:      t.TotalTokens(),
			CostUSD:          t.CostUSD(),
		},
		Budget: BudgetStatus{
			TokensLimit:     b.TokensLimit(),
			TokensRemaining: b.TokensRemaining(),
			IsExhausted:     b.IsExhausted(),
		},
	}
	if rep.PeriodStart() != 0 {
		out.PeriodStart = time.UnixMilli(rep.PeriodStart()).UTC()
	}
	if rep.PeriodEnd() != 0 {
		out.PeriodEnd = time.UnixMilli(rep.PeriodEnd()).UTC()
	}
	if b.ResetsAt() != 0 {
		out.Budget.ResetsAt = time.UnixMilli(b.ResetsAt()).UTC()
	}
	return out
}

func healthFromReport(rep healthuc.Report) HealthStatus {
	checks := make(map[string]string, len(rep.Checks))
	for k, v := range rep.Checks {
		checks[k] = string(v)
	}
	return HealthStatus{
		Status: string(rep.Status),
		Checks: checks,
	}
}
