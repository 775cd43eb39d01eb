package tokentab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tokentab-io/tokentab/internal/db"
	dbRedis "github.com/tokentab-io/tokentab/internal/db/redis"
	"github.com/tokentab-io/tokentab/internal/domain"
	domtool "github.com/tokentab-io/tokentab/internal/domain/tool"
	domusage "github.com/tokentab-io/tokentab/internal/domain/usage"
	budgetrepo "github.com/tokentab-io/tokentab/internal/repository/budget"
	ledgerrepo "github.com/tokentab-io/tokentab/internal/repository/ledger"
	openaiChat "github.com/tokentab-io/tokentab/internal/transport/openai"
	chatuc "github.com/tokentab-io/tokentab/internal/usecase/chat"
	healthuc "github.com/tokentab-io/tokentab/internal/usecase/health"
	pricinguc "github.com/tokentab-io/tokentab/internal/usecase/pricing"
	sessionuc "github.com/tokentab-io/tokentab/internal/usecase/session"
	usageuc "github.com/tokentab-io/tokentab/internal/usecase/usage"
)

const (
	defaultModel            = "gpt-4o-mini"
	defaultKeyPrefix        = "tokentab:"
	defaultReadinessTimeout = 10 * time.Second

	// Persisted budget counters outlive their period by a safety margin.
	budgetDailyTTL = 48 * time.Hour
	budgetMonthTTL = 62 * 24 * time.Hour
)

// ErrNoDatabase signals a storage operation on a client without persistence.
var ErrNoDatabase = errors.New("tokentab: no database configured")

// Client is the tokentab SDK entry point.
type Client struct {
	store    db.Store
	sessions *sessionuc.Service
	chat     *chatuc.Service
	usage    *usageuc.Service
	health   *healthuc.Service
	registry *domtool.Registry
	prices   *pricinguc.Store
	obs      *observer
}

// New creates a tokentab Client. Sessions live in memory unless WithRedis
// or WithValkey configures persistence; the provided context bounds the
// initial readiness check and the budget counter restore.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		model:          defaultModel,
		keyPrefix:      defaultKeyPrefix,
		defaultPricing: domain.DefaultPricing(),
		warnThreshold:  domain.DefaultWarnThreshold,
	}
	for _, o := range opts {
		o(cfg)
	}

	var store db.Store
	if len(cfg.addrs) > 0 {
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, fmt.Errorf("tokentab: create store: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, fmt.Errorf("tokentab: database not ready: %w", err)
		}
		store = s
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	return wireClient(ctx, store, cfg, obs)
}

func wireClient(ctx context.Context, store db.Store, cfg *clientConfig, obs *observer) (*Client, error) {
	// The observer keeps a nil logger when logging is disabled; the
	// services expect a usable one.
	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	prices := pricinguc.New(cfg.defaultPricing, cfg.modelPricing, logger)
	if cfg.priceTable != "" {
		if err := prices.LoadFile(cfg.priceTable); err != nil {
			return nil, fmt.Errorf("tokentab: %w", err)
		}
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	// Assigning a nil concrete pointer into an interface makes the
	// interface non-nil; keep the interfaces nil when unconfigured.
	var sessionRepo sessionuc.Repository
	if store != nil {
		sessionRepo = ledgerrepo.New(store, cfg.keyPrefix)
	}

	var budgetChecker chatuc.BudgetChecker
	var budgetReader usageuc.BudgetReader
	if cfg.dailyBudget > 0 || cfg.monthlyBudget > 0 {
		action := chatuc.BudgetActionWarn
		if cfg.rejectOnOver {
			action = chatuc.BudgetActionReject
		}
		budget := chatuc.NewBudgetTracker(cfg.keyPrefix, cfg.dailyBudget, cfg.monthlyBudget, action, logger)
		if store != nil {
			budget = budget.WithStore(ctx, budgetrepo.New(store, budgetDailyTTL, budgetMonthTTL))
		}
		budgetChecker = budget
		budgetReader = budget
	}

	baseProvider := buildProvider(cfg, logger)
	provider := chatuc.NewInstrumentedProvider(baseProvider, budgetChecker, logger)

	sessions := sessionuc.New(sessionRepo, prices, cfg.model, cfg.warnThreshold, logger)

	var toolExec chatuc.ToolExecutor
	if registry != nil {
		toolExec = registry
	}
	chat := chatuc.New(provider, sessions, toolExec, cfg.maxToolRounds, logger)

	usage := usageuc.New(budgetReader, sessions)

	var dbPinger healthuc.DBPinger
	if store != nil {
		dbPinger = store
	}
	var providerChecker healthuc.ProviderChecker
	if hc, ok := baseProvider.(domain.HealthChecker); ok {
		providerChecker = hc
	}
	health := healthuc.New(dbPinger, providerChecker)

	return &Client{
		store:    store,
		sessions: sessions,
		chat:     chat,
		usage:    usage,
		health:   health,
		registry: registry,
		prices:   prices,
		obs:      obs,
	}, nil
}

// buildProvider selects the chat backend: a custom Provider, the OpenAI
// client, or the erroring noop when neither is configured.
func buildProvider(cfg *clientConfig, logger *zap.Logger) chatuc.Provider {
	if cfg.provider != nil {
		return &providerAdapter{inner: cfg.provider}
	}
	if cfg.apiKey != "" || cfg.baseURL != "" {
		return openaiChat.NewClient(&openaiChat.Config{
			APIKey:     cfg.apiKey,
			BaseURL:    cfg.baseURL,
			Model:      cfg.model,
			HTTPClient: cfg.httpClient,
			Logger:     logger,
		})
	}
	return noopProvider{}
}

func buildRegistry(cfg *clientConfig) (*domtool.Registry, error) {
	if !cfg.builtins && len(cfg.tools) == 0 {
		return nil, nil
	}

	var r *domtool.Registry
	if cfg.builtins {
		r = domtool.Builtins()
	} else {
		r = domtool.NewRegistry()
	}
	for _, t := range cfg.tools {
		if err := r.Register(&toolAdapter{inner: t}); err != nil {
			return nil, fmt.Errorf("tokentab: %w", err)
		}
	}
	return r, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks database connectivity. Returns ErrNoDatabase for a
// memory-only client.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if c.store == nil {
		return ErrNoDatabase
	}
	if err = c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// NewSession creates a tracking session. opts may be nil for all defaults.
func (c *Client) NewSession(ctx context.Context, opts *SessionOptions) (sess *Session, err error) {
	start := time.Now()
	defer func() { c.obs.observe("session_create", start, err) }()

	if opts == nil {
		opts = &SessionOptions{}
	}
	params := sessionuc.CreateParams{
		Label:         opts.Label,
		Model:         opts.Model,
		WarnThreshold: opts.WarnThreshold,
	}
	if opts.Pricing != nil {
		params.Pricing = &domain.Pricing{
			InputPerMillion:  opts.Pricing.InputPerMillion,
			OutputPerMillion: opts.Pricing.OutputPerMillion,
		}
	}

	created, err := c.sessions.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &Session{id: created.ID(), client: c}, nil
}

// Session returns a handle for an existing session id. No I/O happens
// until the handle is used.
func (c *Client) Session(id string) *Session {
	return &Session{id: id, client: c}
}

// Sessions lists all known sessions sorted by creation time.
func (c *Client) Sessions(ctx context.Context) (infos []SessionInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("session_list", start, err) }()

	list, err := c.sessions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	infos = make([]SessionInfo, len(list))
	for i, s := range list {
		infos[i] = sessionInfo(s)
	}
	return infos, nil
}

// Usage aggregates spend across sessions for the given period.
func (c *Client) Usage(ctx context.Context, period UsagePeriod) UsageReport {
	start := time.Now()
	defer func() { c.obs.observe("usage", start, nil) }()

	rep := c.usage.GetReport(ctx, domusage.Period(period))
	return usageReportFromDomain(rep)
}

// Health checks the health of all configured components.
func (c *Client) Health(ctx context.Context) HealthStatus {
	return healthFromReport(c.health.Check(ctx))
}

// Tools lists the registered tools.
func (c *Client) Tools() []ToolInfo {
	if c.registry == nil {
		return nil
	}
	specs := c.registry.Specs()
	out := make([]ToolInfo, len(specs))
	for i, s := range specs {
		out[i] = ToolInfo{
			Name:        s.Name,
			Description: s.Description,
			Parameters:  s.Parameters,
		}
	}
	return out
}

// InvokeTool runs a registered tool directly, outside any chat exchange.
// args is marshaled to JSON before dispatch.
func (c *Client) InvokeTool(ctx context.Context, name string, args any) (out string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("tool_invoke", start, err) }()

	if c.registry == nil {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode arguments: %w", err)
	}
	return c.registry.Execute(ctx, name, raw)
}
