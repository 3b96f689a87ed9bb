package nortek

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-dvl/logger"
)

// Default protocol timings.
const (
	DefaultCommandTimeout    = 2 * time.Second // configuration command acknowledgment
	DefaultModeChangeTimeout = 1 * time.Second // "MC" acknowledgment
	DefaultBreakTimeout      = 1 * time.Second // optional reply to a break
	DefaultPromptTimeout     = 1 * time.Second // login prompts
	DefaultBannerTimeout     = 2 * time.Second // login confirmation banner

	DefaultLoginSettle = 1 * time.Second
	DefaultBreakSettle = 1 * time.Second
	DefaultDrainWindow = 50 * time.Millisecond

	DefaultReadBufferSize = 256

	DefaultSalinity     = 35.0
	DefaultSamplingRate = 5.0
)

// Parameter ranges accepted by the instrument.
const (
	MinSalinity     = 0.0
	MaxSalinity     = 50.0
	MinSamplingRate = 1.0
	MaxSamplingRate = 8.0

	minReadBufferSize = 16
	maxReadBufferSize = 64 * 1024
)

// Clock provides the wall-clock time used to synchronize the device clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config holds the engine configuration.
type Config struct {
	credential string
	login      bool

	commandTimeout    time.Duration
	modeChangeTimeout time.Duration
	breakTimeout      time.Duration
	promptTimeout     time.Duration
	bannerTimeout     time.Duration

	loginSettle time.Duration
	breakSettle time.Duration
	drainWindow time.Duration

	readBufferSize int

	salinity     float64
	samplingRate float64

	traceAll bool
	clock    Clock
	logger   logger.Logger
}

// NewConfig creates an engine configuration with defaults overridden by opts.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		credential:        DefaultCredential,
		login:             true,
		commandTimeout:    DefaultCommandTimeout,
		modeChangeTimeout: DefaultModeChangeTimeout,
		breakTimeout:      DefaultBreakTimeout,
		promptTimeout:     DefaultPromptTimeout,
		bannerTimeout:     DefaultBannerTimeout,
		loginSettle:       DefaultLoginSettle,
		breakSettle:       DefaultBreakSettle,
		drainWindow:       DefaultDrainWindow,
		readBufferSize:    DefaultReadBufferSize,
		salinity:          DefaultSalinity,
		samplingRate:      DefaultSamplingRate,
		clock:             systemClock{},
		logger:            logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// CommandTimeout returns the acknowledgment timeout of configuration commands.
func (cfg *Config) CommandTimeout() time.Duration { return cfg.commandTimeout }

// ModeChangeTimeout returns the acknowledgment timeout of the mode-change command.
func (cfg *Config) ModeChangeTimeout() time.Duration { return cfg.modeChangeTimeout }

// ReadBufferSize returns the capacity of the read-until buffer.
func (cfg *Config) ReadBufferSize() int { return cfg.readBufferSize }

// LoginEnabled reports whether Setup performs the console login.
func (cfg *Config) LoginEnabled() bool { return cfg.login }

// TraceAll reports whether every exchange is traced.
func (cfg *Config) TraceAll() bool { return cfg.traceAll }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring an Engine.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

func positive(name string, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("nortek: %s must be positive, got %v", name, d)
	}

	return nil
}

// WithCredential sets the console username and password.
func WithCredential(credential string) Option {
	return optFunc(func(cfg *Config) error {
		if credential == "" {
			return errors.New("nortek: credential must not be empty")
		}
		cfg.credential = credential

		return nil
	})
}

// WithLoginDisabled skips the console login. Serial links have no login.
func WithLoginDisabled() Option {
	return optFunc(func(cfg *Config) error {
		cfg.login = false
		return nil
	})
}

// WithCommandTimeout sets how long a configuration command waits for "OK".
func WithCommandTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := positive("command timeout", d); err != nil {
			return err
		}
		cfg.commandTimeout = d

		return nil
	})
}

// WithModeChangeTimeout sets how long the mode-change command waits for "OK".
func WithModeChangeTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := positive("mode change timeout", d); err != nil {
			return err
		}
		cfg.modeChangeTimeout = d

		return nil
	})
}

// WithBreakTimeout sets how long a break waits for an optional reply.
func WithBreakTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := positive("break timeout", d); err != nil {
			return err
		}
		cfg.breakTimeout = d

		return nil
	})
}

// WithLoginTimeouts sets the prompt and banner timeouts of the login.
func WithLoginTimeouts(prompt, banner time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := positive("prompt timeout", prompt); err != nil {
			return err
		}
		if err := positive("banner timeout", banner); err != nil {
			return err
		}
		cfg.promptTimeout = prompt
		cfg.bannerTimeout = banner

		return nil
	})
}

// WithSettleDelays sets the pauses observed after login and after a break.
// Zero disables a delay.
func WithSettleDelays(login, brk time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if login < 0 || brk < 0 {
			return errors.New("nortek: settle delays must not be negative")
		}
		cfg.loginSettle = login
		cfg.breakSettle = brk

		return nil
	})
}

// WithDrainWindow sets the quiet period used to discard stale input before
// the mode-change command. Zero disables draining.
func WithDrainWindow(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 {
			return errors.New("nortek: drain window must not be negative")
		}
		cfg.drainWindow = d

		return nil
	})
}

// WithReadBufferSize sets the read-until buffer capacity.
func WithReadBufferSize(size int) Option {
	return optFunc(func(cfg *Config) error {
		if size < minReadBufferSize || size > maxReadBufferSize {
			return fmt.Errorf("nortek: read buffer size %d out of range [%d, %d]",
				size, minReadBufferSize, maxReadBufferSize)
		}
		cfg.readBufferSize = size

		return nil
	})
}

// WithSamplingRate sets the initial sampling rate in Hz. Out-of-range
// values are ignored, like SetSamplingRate.
func WithSamplingRate(rate float64) Option {
	return optFunc(func(cfg *Config) error {
		if validSamplingRate(rate) {
			cfg.samplingRate = rate
		}

		return nil
	})
}

// WithSalinity sets the initial salinity in PSU. Out-of-range values are
// ignored, like SetSalinity.
func WithSalinity(value float64) Option {
	return optFunc(func(cfg *Config) error {
		if validSalinity(value) {
			cfg.salinity = value
		}

		return nil
	})
}

// WithTraceAll traces every exchange, not only the ones requesting it.
func WithTraceAll() Option {
	return optFunc(func(cfg *Config) error {
		cfg.traceAll = true
		return nil
	})
}

// WithClock sets the clock used by the clock synchronization step.
func WithClock(c Clock) Option {
	return optFunc(func(cfg *Config) error {
		if c == nil {
			return errors.New("nortek: clock must not be nil")
		}
		cfg.clock = c

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("nortek: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
