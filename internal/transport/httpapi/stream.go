package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tokentab-io/tokentab/internal/domain"
	chatuc "github.com/tokentab-io/tokentab/internal/usecase/chat"
)

// StreamDeltaBody is one incremental content fragment.
type StreamDeltaBody struct {
	Content string `json:"content"`
}

// StreamFinalBody closes a stream with the booked accounting. Content is not
// repeated; the deltas already carried it.
type StreamFinalBody struct {
	FinishReason     string           `json:"finish_reason"`
	Model            string           `json:"model"`
	ToolCalls        []ToolCallBody   `json:"tool_calls,omitempty"`
	ToolResults      []ToolResultBody `json:"tool_results,omitempty"`
	Usage            UsageBody        `json:"usage"`
	Cost             float64          `json:"cost"`
	Records          []CallRecordBody `json:"records"`
	SessionTokens    int              `json:"session_total_tokens"`
	SessionCost      float64          `json:"session_total_cost"`
	ThresholdWarning bool             `json:"threshold_warning"`
}

// StreamErrorBody is a terminal error event on an already-started stream.
type StreamErrorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// handleChatStream runs a streaming exchange over SSE. Each content delta is
// one "data:" event; the last data event before [DONE] is either the final
// accounting or, on mid-stream failure, an error body. Failures before the
// first event fall back to a regular JSON error response.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	fl, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "streaming not supported")
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	sw := &sseWriter{w: w, fl: fl}

	res, err := s.chat.Stream(ctx, chi.URLParam(r, "id"), chatParams(req),
		func(d domain.StreamDelta) error {
			if d.Content == "" {
				return nil
			}
			return sw.sendJSON(StreamDeltaBody{Content: d.Content})
		})
	if err != nil {
		if !sw.started {
			setUsageHeaders(w, usage)
			s.handleDomainError(w, err, "chat stream failed")
			return
		}
		s.logger.Warn("Chat stream failed mid-flight", zap.Error(err))
		code, msg := streamSafeError(err)
		_ = sw.sendJSON(StreamErrorBody{Code: code, Error: msg})
		_ = sw.sendDone()
		return
	}

	_ = sw.sendJSON(streamFinalBody(res))
	_ = sw.sendDone()
}

func streamFinalBody(res chatuc.Result) StreamFinalBody {
	return StreamFinalBody{
		FinishReason:     res.Response.FinishReason,
		Model:            res.Response.Model,
		ToolCalls:        toolCallsToBody(res.Response.ToolCalls),
		ToolResults:      toolResultsToBody(res.ToolResults),
		Usage:            usageToBody(res.Usage),
		Cost:             res.Cost,
		Records:          recordsToBody(res.Records),
		SessionTokens:    res.SessionTokens,
		SessionCost:      res.SessionCost,
		ThresholdWarning: res.ThresholdWarning,
	}
}

// streamSafeError maps an in-flight failure to a client-safe code and text.
// Session errors cannot occur here, they surface before the first delta.
func streamSafeError(err error) (string, string) {
	for _, m := range []struct {
		sentinel error
		code     string
	}{
		{domain.ErrQuotaExceeded, CodeQuotaExceeded},
		{domain.ErrRateLimited, CodeRateLimited},
		{domain.ErrToolNotFound, CodeToolNotFound},
		{domain.ErrToolFailed, CodeToolFailed},
		{domain.ErrProviderAuth, CodeProviderAuth},
		{domain.ErrProviderError, CodeProviderError},
	} {
		if errors.Is(err, m.sentinel) {
			return m.code, m.sentinel.Error()
		}
	}
	return CodeInternalError, "internal error"
}

// sseWriter emits server-sent events, writing the stream headers lazily on
// the first event.
type sseWriter struct {
	w       http.ResponseWriter
	fl      http.Flusher
	started bool
}

func (sw *sseWriter) start() {
	if sw.started {
		return
	}
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	sw.w.WriteHeader(http.StatusOK)
	sw.started = true
}

func (sw *sseWriter) sendJSON(v any) error {
	sw.start()
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return err
	}
	sw.fl.Flush()
	return nil
}

func (sw *sseWriter) sendDone() error {
	sw.start()
	if _, err := io.WriteString(sw.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	sw.fl.Flush()
	return nil
}
