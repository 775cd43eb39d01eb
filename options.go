package tokentab

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tokentab-io/tokentab/internal/domain"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	addrs     []string
	password  string
	keyPrefix string

	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	provider   Provider

	defaultPricing domain.Pricing
	modelPricing   map[string]domain.Pricing
	priceTable     string

	warnThreshold int
	maxToolRounds int

	dailyBudget   int64
	monthlyBudget int64
	rejectOnOver  bool

	tools    []Tool
	builtins bool

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithRedis persists sessions and budget counters on a Redis instance.
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithValkey persists sessions and budget counters on a Valkey instance.
// The client speaks RESP to both servers, so this is an alias of WithRedis.
func WithValkey(addr, password string) Option {
	return WithRedis(addr, password)
}

// WithOpenAI sets the API key for the OpenAI chat provider.
func WithOpenAI(apiKey string) Option {
	return func(c *clientConfig) {
		c.apiKey = apiKey
	}
}

// WithBaseURL points the provider at an OpenAI-compatible endpoint
// (Azure, Ollama, llama.cpp and friends).
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithModel sets the default chat model. Defaults to gpt-4o-mini.
func WithModel(model string) Option {
	return func(c *clientConfig) {
		c.model = model
	}
}

// WithHTTPClient overrides the HTTP client used for provider calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = hc
	}
}

// WithProvider plugs a custom chat backend, replacing the OpenAI client.
func WithProvider(p Provider) Option {
	return func(c *clientConfig) {
		c.provider = p
	}
}

// WithPricing sets the default USD rates per million tokens.
// Defaults: $0.15 input, $0.60 output.
func WithPricing(inputPerMillion, outputPerMillion float64) Option {
	return func(c *clientConfig) {
		c.defaultPricing = domain.Pricing{
			InputPerMillion:  inputPerMillion,
			OutputPerMillion: outputPerMillion,
		}
	}
}

// WithModelPricing overrides the rates for one model.
func WithModelPricing(model string, inputPerMillion, outputPerMillion float64) Option {
	return func(c *clientConfig) {
		if c.modelPricing == nil {
			c.modelPricing = make(map[string]domain.Pricing)
		}
		c.modelPricing[model] = domain.Pricing{
			InputPerMillion:  inputPerMillion,
			OutputPerMillion: outputPerMillion,
		}
	}
}

// WithPriceTable loads rates from a YAML price table at construction.
func WithPriceTable(path string) Option {
	return func(c *clientConfig) {
		c.priceTable = path
	}
}

// WithWarnThreshold sets the cumulative token count above which recorded
// calls carry a warning flag. 0 disables the warning. Defaults to 10000.
func WithWarnThreshold(tokens int) Option {
	return func(c *clientConfig) {
		c.warnThreshold = tokens
	}
}

// WithBudget caps daily and monthly token consumption. Requests over a cap
// are logged and allowed through. 0 disables a cap.
func WithBudget(daily, monthly int64) Option {
	return func(c *clientConfig) {
		c.dailyBudget = daily
		c.monthlyBudget = monthly
		c.rejectOnOver = false
	}
}

// WithHardBudget is WithBudget with requests over a cap rejected
// with ErrQuotaExceeded.
func WithHardBudget(daily, monthly int64) Option {
	return func(c *clientConfig) {
		c.dailyBudget = daily
		c.monthlyBudget = monthly
		c.rejectOnOver = true
	}
}

// WithTools registers chat tools for the tool loop.
func WithTools(tools ...Tool) Option {
	return func(c *clientConfig) {
		c.tools = append(c.tools, tools...)
	}
}

// WithBuiltinTools registers the demo tools: calculate,
// convert_temperature and get_weather.
func WithBuiltinTools() Option {
	return func(c *clientConfig) {
		c.builtins = true
	}
}

// WithMaxToolRounds bounds tool execution rounds per exchange. Default: 4.
func WithMaxToolRounds(n int) Option {
	return func(c *clientConfig) {
		c.maxToolRounds = n
	}
}

// WithKeyPrefix namespaces storage keys. Default: "tokentab:".
func WithKeyPrefix(prefix string) Option {
	return func(c *clientConfig) {
		c.keyPrefix = prefix
	}
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return func(c *clientConfig) {
		c.metricsReg = reg
	}
}
