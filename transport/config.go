package transport

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-dvl/logger"
)

// Default transport settings.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultWriteTimeout   = 2 * time.Second
	DefaultReadTimeout    = 100 * time.Millisecond
	DefaultBaudRate       = 115200
)

// Config holds the settings shared by every transport implementation.
type Config struct {
	connectTimeout time.Duration
	writeTimeout   time.Duration
	readTimeout    time.Duration
	baudRate       int
	logger         logger.Logger
}

// NewConfig returns a Config with defaults overridden by opts.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		connectTimeout: DefaultConnectTimeout,
		writeTimeout:   DefaultWriteTimeout,
		readTimeout:    DefaultReadTimeout,
		baudRate:       DefaultBaudRate,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// ConnectTimeout returns the dial timeout.
func (cfg *Config) ConnectTimeout() time.Duration { return cfg.connectTimeout }

// WriteTimeout returns the per-write deadline.
func (cfg *Config) WriteTimeout() time.Duration { return cfg.writeTimeout }

// ReadTimeout returns how long Read waits when nothing is buffered.
func (cfg *Config) ReadTimeout() time.Duration { return cfg.readTimeout }

// BaudRate returns the serial line speed.
func (cfg *Config) BaudRate() int { return cfg.baudRate }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring a transport.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithConnectTimeout sets the TCP dial timeout.
func WithConnectTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("transport: connect timeout must be positive")
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithWriteTimeout sets the deadline applied to every write.
func WithWriteTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("transport: write timeout must be positive")
		}
		cfg.writeTimeout = d

		return nil
	})
}

// WithReadTimeout sets how long Read may block when nothing is buffered.
func WithReadTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d <= 0 {
			return errors.New("transport: read timeout must be positive")
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithBaudRate sets the serial line speed. Ignored by network transports.
func WithBaudRate(baud int) Option {
	return optFunc(func(cfg *Config) error {
		if baud <= 0 {
			return fmt.Errorf("transport: invalid baud rate %d", baud)
		}
		cfg.baudRate = baud

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("transport: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
