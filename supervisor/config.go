package supervisor

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-dvl/logger"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultLinkCheckInterval is how often a running device's link is checked.
const DefaultLinkCheckInterval = time.Second

// Config holds the supervisor configuration.
type Config struct {
	backoff   Backoff
	seed      int64
	linkCheck time.Duration
	registry  *prometheus.Registry
	handlers  []StateChangeHandler
	logger    logger.Logger
}

// NewConfig creates a supervisor configuration with defaults overridden by opts.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		backoff:   DefaultBackoff,
		linkCheck: DefaultLinkCheckInterval,
		logger:    logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.registry == nil {
		cfg.registry = prometheus.NewRegistry()
	}

	return cfg, nil
}

// Backoff returns the retry policy.
func (cfg *Config) Backoff() Backoff { return cfg.backoff }

// LinkCheckInterval returns the link check period, zero when disabled.
func (cfg *Config) LinkCheckInterval() time.Duration { return cfg.linkCheck }

// Registry returns the registry the device metrics are registered with.
func (cfg *Config) Registry() *prometheus.Registry { return cfg.registry }

// Option is a functional option for configuring a Supervisor.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithBackoff sets the retry policy of every device loop.
func WithBackoff(b Backoff) Option {
	return optFunc(func(cfg *Config) error {
		if b.Initial < 0 || b.Max < 0 {
			return fmt.Errorf("supervisor: backoff delays must not be negative: %+v", b)
		}
		if b.Max > 0 && b.Max < b.Initial {
			return fmt.Errorf("supervisor: backoff max %v below initial %v", b.Max, b.Initial)
		}
		cfg.backoff = b

		return nil
	})
}

// WithJitterSeed seeds the backoff jitter source, for reproducible delays.
func WithJitterSeed(seed int64) Option {
	return optFunc(func(cfg *Config) error {
		cfg.seed = seed
		return nil
	})
}

// WithLinkCheckInterval sets how often the link of a running device is
// checked for failures. Zero disables the check; a broken link is then only
// noticed by the next reconfiguration call.
func WithLinkCheckInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 {
			return fmt.Errorf("supervisor: link check interval must not be negative: %v", d)
		}
		cfg.linkCheck = d

		return nil
	})
}

// WithRegistry sets the prometheus registry for the device metrics.
// A private registry is created by default.
func WithRegistry(reg *prometheus.Registry) Option {
	return optFunc(func(cfg *Config) error {
		if reg == nil {
			return errors.New("supervisor: registry must not be nil")
		}
		cfg.registry = reg

		return nil
	})
}

// WithStateChangeHandler adds handlers invoked on every device state change.
func WithStateChangeHandler(handlers ...StateChangeHandler) Option {
	return optFunc(func(cfg *Config) error {
		for _, h := range handlers {
			if h == nil {
				return errors.New("supervisor: state change handler must not be nil")
			}
		}
		cfg.handlers = append(cfg.handlers, handlers...)

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("supervisor: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
