package executor

import (
	"log/slog"

	"golang.org/x/time/rate"
)

// DefaultCapacity is the number of workers, and admission slots, of an Executor
const DefaultCapacity = 32

// Option configures an Executor
type Option func(*executorConfig)

type executorConfig struct {
	capacity     int
	gateCapacity int
	logger       *slog.Logger
	limiter      *rate.Limiter
}

// WithCapacity sets the number of concurrent workers.
// Values <= 0 keep DefaultCapacity.
func WithCapacity(n int) Option {
	return func(cfg *executorConfig) {
		if n > 0 {
			cfg.capacity = n
		}
	}
}

// WithGateCapacity admits fewer simultaneous work-function executions than
// there are workers. It is clamped to [1, capacity]; by default the gate
// matches the worker count.
func WithGateCapacity(n int) Option {
	return func(cfg *executorConfig) {
		if n > 0 {
			cfg.gateCapacity = n
		}
	}
}

// WithLogger sets the structured logger used for lifecycle and retry events
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *executorConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithRateLimit paces attempt starts to perSecond with the given burst.
// An attempt waits for a token before entering the gate, so waiting
// does not hold an admission slot.
//
// Example:
//
//	WithRateLimit(20, 5) // at most 20 remote calls/sec, bursts of 5
func WithRateLimit(perSecond float64, burst int) Option {
	return func(cfg *executorConfig) {
		if perSecond > 0 && burst > 0 {
			cfg.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

func newExecutorConfig(opts ...Option) *executorConfig {
	cfg := &executorConfig{
		capacity: DefaultCapacity,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.gateCapacity <= 0 || cfg.gateCapacity > cfg.capacity {
		cfg.gateCapacity = cfg.capacity
	}
	return cfg
}
