package metrics

import "github.com/prometheus/client_golang/prometheus"

// Chat tracking Prometheus metrics.
var (
	ChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokentab",
			Name:      "chat_requests_total",
			Help:      "Total number of chat requests",
		},
		[]string{"model", "status"},
	)

	ChatRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tokentab",
			Name:      "chat_request_duration_seconds",
			Help:      "Chat request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	ChatFirstTokenDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tokentab",
			Name:      "chat_first_token_seconds",
			Help:      "Time to first streamed token in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"model"},
	)

	TokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokentab",
			Name:      "tokens_total",
			Help:      "Total tokens consumed",
		},
		[]string{"model", "type"}, // type: "prompt" / "completion"
	)

	CostUSDTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokentab",
			Name:      "cost_usd_total",
			Help:      "Accumulated cost in USD",
		},
		[]string{"model"},
	)

	ChatErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokentab",
			Name:      "chat_errors_total",
			Help:      "Total chat errors",
		},
		[]string{"model", "error_type"},
	)

	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokentab",
			Name:      "tool_calls_total",
			Help:      "Total tool invocations",
		},
		[]string{"tool", "status"},
	)

	ThresholdExceededTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokentab",
			Name:      "warn_threshold_exceeded_total",
			Help:      "Calls recorded while cumulative tokens were over the session threshold",
		},
		[]string{"model"},
	)

	BudgetTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "tokentab",
			Name:      "budget_tokens_remaining",
			Help:      "Remaining token budget",
		},
		[]string{"period"},
	)

	SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tokentab",
			Name:      "sessions_active",
			Help:      "Number of active tracking sessions",
		},
	)
)

var chatMetricsRegistered bool

// RegisterChatMetrics registers Prometheus chat metrics. Must be called once from main.
func RegisterChatMetrics() {
	if chatMetricsRegistered {
		return
	}
	prometheus.MustRegister(ChatRequestsTotal)
	prometheus.MustRegister(ChatRequestDuration)
	prometheus.MustRegister(ChatFirstTokenDuration)
	prometheus.MustRegister(TokensTotal)
	prometheus.MustRegister(CostUSDTotal)
	prometheus.MustRegister(ChatErrorsTotal)
	prometheus.MustRegister(ToolCallsTotal)
	prometheus.MustRegister(ThresholdExceededTotal)
	prometheus.MustRegister(BudgetTokensRemaining)
	prometheus.MustRegister(SessionsActive)
	chatMetricsRegistered = true
}
