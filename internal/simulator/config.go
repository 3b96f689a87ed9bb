package simulator

import (
	"time"

	"github.com/arloliu/go-dvl/logger"
)

type config struct {
	login          bool
	credential     string
	banner         string
	initialMode    Mode
	breakAck       bool
	streamInterval time.Duration
	failing        []string
	silent         []string
	logger         logger.Logger
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		login:       true,
		credential:  "nortek",
		banner:      loginReply,
		initialMode: ModeCommand,
		logger:      logger.GetLogger(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// Option configures a Simulator.
type Option func(*config)

// WithoutLogin starts the session without the login exchange, like a
// serial console.
func WithoutLogin() Option {
	return func(cfg *config) { cfg.login = false }
}

// WithCredential sets the accepted username and password.
func WithCredential(credential string) Option {
	return func(cfg *config) { cfg.credential = credential }
}

// WithBanner replaces the login confirmation banner.
func WithBanner(banner string) Option {
	return func(cfg *config) { cfg.banner = banner }
}

// WithInitialMode sets the mode entered after login.
func WithInitialMode(mode Mode) Option {
	return func(cfg *config) { cfg.initialMode = mode }
}

// WithBreakAck makes the device acknowledge breaks with "OK".
func WithBreakAck() Option {
	return func(cfg *config) { cfg.breakAck = true }
}

// WithStreaming emits a measurement line every interval in measurement mode.
func WithStreaming(interval time.Duration) Option {
	return func(cfg *config) { cfg.streamInterval = interval }
}

// WithFailingCommand answers commands starting with prefix with "ERROR".
func WithFailingCommand(prefix string) Option {
	return func(cfg *config) { cfg.failing = append(cfg.failing, prefix) }
}

// WithSilentCommand never answers commands starting with prefix.
func WithSilentCommand(prefix string) Option {
	return func(cfg *config) { cfg.silent = append(cfg.silent, prefix) }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}
