// Package httpapi exposes the token accounting service over HTTP. Routes,
// request validation, and error mapping live here; all accounting rules stay
// in the usecase layer.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tokentab-io/tokentab/internal/domain"
	domusage "github.com/tokentab-io/tokentab/internal/domain/usage"
	chatuc "github.com/tokentab-io/tokentab/internal/usecase/chat"
	healthuc "github.com/tokentab-io/tokentab/internal/usecase/health"
	sessionuc "github.com/tokentab-io/tokentab/internal/usecase/session"
	usageuc "github.com/tokentab-io/tokentab/internal/usecase/usage"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	maxRequestBody = 1 << 20 // 1 MiB

	maxLabelLen = 128
)

// errorHandler inspects an error and writes a response if it recognizes it.
// Returns true when handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server wires the usecase services into HTTP handlers.
type Server struct {
	sessions *sessionuc.Service
	chat     *chatuc.Service
	usage    *usageuc.Service
	health   *healthuc.Service
	tools    chatuc.ToolExecutor
	version  string
	logger   *zap.Logger

	errorHandlers []errorHandler
}

// NewServer creates the HTTP server. tools may be nil when no registry is
// configured; the tool routes then return 501.
func NewServer(
	sessions *sessionuc.Service,
	chat *chatuc.Service,
	usage *usageuc.Service,
	health *healthuc.Service,
	tools chatuc.ToolExecutor,
	version string,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		sessions: sessions,
		chat:     chat,
		usage:    usage,
		health:   health,
		tools:    tools,
		version:  version,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, CodeSessionNotFound),
		sentinelHandler(domain.ErrSessionEnded, http.StatusConflict, CodeSessionEnded),
		sentinelHandler(domain.ErrEmptyRequest, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrNegativeTokens, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrQuotaExceeded, http.StatusPaymentRequired, CodeQuotaExceeded),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
		sentinelHandler(domain.ErrToolNotFound, http.StatusNotFound, CodeToolNotFound),
		sentinelHandler(domain.ErrToolFailed, http.StatusUnprocessableEntity, CodeToolFailed),
		sentinelHandler(domain.ErrProviderAuth, http.StatusBadGateway, CodeProviderAuth),
		sentinelHandler(domain.ErrProviderError, http.StatusBadGateway, CodeProviderError),
		sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, CodeNotImplemented),
	}
	return s
}

// RegisterRoutes mounts all API routes on the router. Middleware is the
// caller's concern.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleCreateSession)
			r.Get("/", s.handleListSessions)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Delete("/", s.handleDeleteSession)
				r.Post("/end", s.handleEndSession)
				r.Post("/chat", s.handleChat)
				r.Post("/chat/stream", s.handleChatStream)
				r.Get("/report", s.handleReport)
				r.Get("/export", s.handleExport)
			})
		})
		r.Get("/usage", s.handleUsage)
		r.Route("/tools", func(r chi.Router) {
			r.Get("/", s.handleListTools)
			r.Post("/{name}", s.handleInvokeTool)
		})
	})
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// --- Sessions ---

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Label) > maxLabelLen {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "label too long (max 128)")
		return
	}
	if req.WarnThresholdTokens != nil && *req.WarnThresholdTokens < 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "warn_threshold_tokens must be non-negative")
		return
	}

	params := sessionuc.CreateParams{
		Label:         req.Label,
		Model:         req.Model,
		WarnThreshold: req.WarnThresholdTokens,
	}
	if req.Pricing != nil {
		p := domain.Pricing{
			InputPerMillion:  req.Pricing.InputPerMillion,
			OutputPerMillion: req.Pricing.OutputPerMillion,
		}
		if err := p.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
			return
		}
		params.Pricing = &p
	}

	sess, err := s.sessions.Create(r.Context(), params)
	if err != nil {
		s.handleDomainError(w, err, "create session failed")
		return
	}
	writeJSON(w, http.StatusCreated, sessionToBody(sess))
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List(r.Context())
	if err != nil {
		s.handleDomainError(w, err, "list sessions failed")
		return
	}
	items := make([]SessionResponse, len(sessions))
	for i, sess := range sessions {
		items[i] = sessionToBody(sess)
	}
	writeJSON(w, http.StatusOK, SessionListResponse{Items: items, Total: len(items)})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Describe(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err, "get session failed")
		return
	}
	writeJSON(w, http.StatusOK, sessionToBody(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err, "delete session failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.End(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err, "end session failed")
		return
	}
	writeJSON(w, http.StatusOK, sessionToBody(sess))
}

// --- Chat ---

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.chat.Complete(ctx, chi.URLParam(r, "id"), chatParams(req))
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(w, err, "chat failed")
		return
	}
	writeJSON(w, http.StatusOK, chatResultToBody(res))
}

func chatParams(req ChatRequest) chatuc.Params {
	return chatuc.Params{
		Messages:    messagesFromBody(req.Messages),
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		UseTools:    req.UseTools,
	}
}

// setUsageHeaders surfaces per-request consumption even on failed exchanges:
// tool loops book every provider round, so an error after the first round
// still spent tokens.
func setUsageHeaders(w http.ResponseWriter, u *domain.RequestUsage) {
	if u == nil || !u.Used {
		return
	}
	w.Header().Set("X-Tokens-Used", strconv.Itoa(u.TotalTokens))
	w.Header().Set("X-Cost-USD", strconv.FormatFloat(u.Cost, 'f', 6, 64))
}

// --- Reports ---

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sess, rep, err := s.sessions.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err, "report failed")
		return
	}
	writeJSON(w, http.StatusOK, reportToBody(sess, rep))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	csv, err := s.sessions.ExportCSV(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err, "export failed")
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tokentab-`+id+`.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, csv); err != nil {
		s.logger.Error("Failed to write CSV export", zap.Error(err))
	}
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	period := domusage.Period(r.URL.Query().Get("period"))
	if period == "" {
		period = domusage.PeriodTotal
	}
	if !period.IsValid() {
		writeError(w, http.StatusBadRequest, CodeValidationFailed,
			"period must be one of: day, month, total")
		return
	}

	rep := s.usage.GetReport(r.Context(), period)
	writeJSON(w, http.StatusOK, usageReportToBody(&rep))
}

func usageReportToBody(rep *domusage.Report) UsageResponse {
	t := rep.Totals()
	b := rep.Budget()
	resp := UsageResponse{
		Period:         string(rep.Period()),
		SessionsActive: rep.SessionsActive(),
		Totals: TotalsBody{
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
	if ms := rep.PeriodStart(); ms != 0 {
		ts := time.UnixMilli(ms).UTC()
		resp.PeriodStartAt = &ts
	}
	if ms := rep.PeriodEnd(); ms != 0 {
		ts := time.UnixMilli(ms).UTC()
		resp.PeriodEndAt = &ts
	}
	if ms := b.ResetsAt(); ms != 0 {
		ts := time.UnixMilli(ms).UTC()
		resp.Budget.ResetsAt = &ts
	}
	return resp
}

// --- Tools ---

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	if s.tools == nil {
		writeJSON(w, http.StatusOK, ToolListResponse{Items: []ToolInfo{}})
		return
	}
	specs := s.tools.Specs()
	items := make([]ToolInfo, len(specs))
	for i, spec := range specs {
		items[i] = ToolInfo{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.Parameters,
		}
	}
	writeJSON(w, http.StatusOK, ToolListResponse{Items: items, Total: len(items)})
}

func (s *Server) handleInvokeTool(w http.ResponseWriter, r *http.Request) {
	if s.tools == nil {
		writeError(w, http.StatusNotImplemented, CodeNotImplemented, "no tool registry configured")
		return
	}
	var req InvokeToolRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	args, err := json.Marshal(req.Arguments)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid arguments: "+err.Error())
		return
	}

	name := chi.URLParam(r, "name")
	out, err := s.tools.Execute(r.Context(), name, args)
	if err != nil {
		s.handleDomainError(w, err, "tool invocation failed")
		return
	}
	writeJSON(w, http.StatusOK, InvokeToolResponse{Name: name, Output: out})
}

// --- Operational ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	rep := s.health.Check(r.Context())
	status := http.StatusOK
	if rep.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	checks := make(map[string]string, len(rep.Checks))
	for name, result := range rep.Checks {
		checks[name] = string(result)
	}
	writeJSON(w, status, HealthResponse{
		Status:  string(rep.Status),
		Version: s.version,
		Checks:  checks,
	})
}

// --- Plumbing ---

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// sentinelHandler maps one domain sentinel to a status and code. The response
// message is the sentinel's text, never the wrapped detail.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, _ string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, safeDomainMessage(err, sentinel))
		return true
	}
}

// handleDomainError logs the error and walks the handler chain. Unrecognized
// errors become an opaque 500.
func (s *Server) handleDomainError(w http.ResponseWriter, err error, msg string) {
	s.logger.Warn(msg, zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

// safeDomainMessage returns a client-safe message for a matched sentinel.
// Validation sentinels keep their descriptive text; everything else collapses
// to the sentinel itself so wrapped internals never leak.
func safeDomainMessage(err, sentinel error) string {
	var negative *domain.NegativeTokensError
	if errors.As(err, &negative) {
		return negative.Error()
	}
	return sentinel.Error()
}
