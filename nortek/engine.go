package nortek

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-dvl/logger"
	"github.com/arloliu/go-dvl/transport"
)

// Device is the capability set an owning scheduler drives.
type Device interface {
	// Setup runs the full configuration sequence and starts measuring.
	Setup() error
	// SetPowerLevel reconfigures the bottom-track transmit power.
	SetPowerLevel(level PowerLevel) error
	// SetSalinity updates the salinity used by the next configuration.
	SetSalinity(value float64)
	// SetSamplingRate updates the sampling rate used by the next configuration.
	SetSamplingRate(rate float64)
	// Close powers the device down best-effort and releases the transport.
	Close() error
}

// Engine drives one instrument over one transport.
//
// It holds the session state, the current salinity and sampling rate, and a
// single read buffer reused by every exchange.
type Engine struct {
	cfg    *Config
	tr     transport.Transport
	logger logger.Logger
	scan   *scanner

	state        atomicState
	salinity     float64
	samplingRate float64
	closed       bool

	metrics EngineMetrics
}

var _ Device = (*Engine)(nil)

// New creates an Engine bound to a connected transport. The engine takes
// ownership of tr and closes it in Close.
func New(tr transport.Transport, opts ...Option) (*Engine, error) {
	if tr == nil {
		return nil, errors.New("nortek: transport is nil")
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:          cfg,
		tr:           tr,
		logger:       cfg.logger,
		scan:         newScanner(tr, cfg.readBufferSize),
		salinity:     cfg.salinity,
		samplingRate: cfg.samplingRate,
	}
	e.state.Set(Disconnected)

	return e, nil
}

// State returns the current session state. Safe to call from any goroutine.
func (e *Engine) State() State { return e.state.Get() }

// Mode returns the current operating mode. Safe to call from any goroutine.
func (e *Engine) Mode() Mode { return e.state.Get().Mode() }

// Salinity returns the salinity applied by the next configuration.
func (e *Engine) Salinity() float64 { return e.salinity }

// SamplingRate returns the sampling rate applied by the next configuration.
func (e *Engine) SamplingRate() float64 { return e.samplingRate }

// Metrics returns the engine counters.
func (e *Engine) Metrics() *EngineMetrics { return &e.metrics }

// Config returns the engine configuration.
func (e *Engine) Config() *Config { return e.cfg }

// Close sends the power-down command best-effort and closes the transport.
// The power-down outcome is only logged. Calling Close twice is a no-op.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}

	if e.State() != Faulted {
		if err := e.Execute(cmdPowerDown, ExecOptions{}); err != nil {
			e.logger.Debug("nortek: power down failed", "error", err)
		}
	}
	e.closed = true

	if err := e.tr.Close(); err != nil {
		return fmt.Errorf("nortek: close transport: %w", err)
	}

	return nil
}

// usable returns the error every operation reports on a closed or faulted engine.
func (e *Engine) usable() error {
	if e.closed {
		return ErrClosed
	}
	if e.State() == Faulted {
		return ErrFaulted
	}

	return nil
}

// fault moves the session to Faulted after a transport failure.
func (e *Engine) fault(err error) {
	if e.State() == Faulted {
		return
	}

	e.logger.Error("nortek: transport failed, engine faulted", "prevState", e.State(), "error", err)
	e.state.Set(Faulted)
}

func (e *Engine) setState(state State) {
	prev := e.State()
	if prev == state || prev == Faulted {
		return
	}

	e.logger.Debug("nortek: state change", "prevState", prev, "state", state)
	e.state.Set(state)
}
