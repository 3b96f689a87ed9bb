package supervisor

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-dvl/logger"
	"github.com/arloliu/go-dvl/nortek"
	"github.com/arloliu/go-dvl/transport"
)

// DeviceSpec describes one supervised instrument.
type DeviceSpec struct {
	// Name identifies the device in the registry and in the HTTP API.
	Name string
	// Dialer opens the device's transport for every connection attempt.
	Dialer transport.Dialer
	// Options are passed to nortek.New on every attempt.
	Options []nortek.Option
	// Salinity is the salinity in PSU applied by the setup sequence.
	Salinity float64
	// SamplingRate is the sampling rate in Hz applied by the setup
	// sequence. Zero selects nortek.DefaultSamplingRate.
	SamplingRate float64
	// PowerLevel, when set, is applied after every successful setup.
	PowerLevel *nortek.PowerLevel
}

func (spec DeviceSpec) validate() error {
	if spec.Name == "" {
		return fmt.Errorf("%w: empty device name", ErrInvalidParameter)
	}
	if spec.Dialer == nil {
		return fmt.Errorf("%w: device %q has no dialer", ErrInvalidParameter, spec.Name)
	}
	if !validSalinity(spec.Salinity) {
		return fmt.Errorf("%w: device %q salinity %v", ErrInvalidParameter, spec.Name, spec.Salinity)
	}
	if !validSamplingRate(spec.SamplingRate) {
		return fmt.Errorf("%w: device %q sampling rate %v", ErrInvalidParameter, spec.Name, spec.SamplingRate)
	}

	return nil
}

func validSalinity(v float64) bool {
	return v >= nortek.MinSalinity && v <= nortek.MaxSalinity
}

func validSamplingRate(v float64) bool {
	return v >= nortek.MinSamplingRate && v <= nortek.MaxSamplingRate
}

// device is the runtime record of a supervised instrument.
type device struct {
	name   string
	dialer transport.Dialer
	opts   []nortek.Option
	logger logger.Logger

	// mu serializes every call into the engine
	mu     sync.Mutex
	engine *nortek.Engine
	// current mirrors engine for lock-free status reads
	current atomic.Pointer[nortek.Engine]

	paramMu      sync.Mutex
	salinity     float64
	samplingRate float64
	power        *nortek.PowerLevel
	lastErr      error
	// retired sums the counters of closed engines
	retired nortek.MetricsSnapshot

	state    atomicDeviceState
	failures atomic.Uint64
	restarts atomic.Uint64
	started  atomic.Bool

	restart chan struct{}
}

func newDevice(spec DeviceSpec, l logger.Logger) *device {
	rate := spec.SamplingRate
	if rate == 0 {
		rate = nortek.DefaultSamplingRate
	}

	d := &device{
		name:         spec.Name,
		dialer:       spec.Dialer,
		opts:         spec.Options,
		logger:       l.With("device", spec.Name),
		salinity:     spec.Salinity,
		samplingRate: rate,
		restart:      make(chan struct{}, 1),
	}
	if spec.PowerLevel != nil {
		level := *spec.PowerLevel
		d.power = &level
	}

	return d
}

type params struct {
	salinity     float64
	samplingRate float64
	power        *nortek.PowerLevel
}

func (d *device) params() params {
	d.paramMu.Lock()
	defer d.paramMu.Unlock()

	return params{salinity: d.salinity, samplingRate: d.samplingRate, power: d.power}
}

func (d *device) setLastError(err error) {
	d.paramMu.Lock()
	defer d.paramMu.Unlock()

	d.lastErr = err
}

func (d *device) lastError() error {
	d.paramMu.Lock()
	defer d.paramMu.Unlock()

	return d.lastErr
}

// requestRestart asks the device loop to replace the engine. Requests
// coalesce while one is pending.
func (d *device) requestRestart() {
	select {
	case d.restart <- struct{}{}:
	default:
	}
}

func (d *device) clearRestart() {
	select {
	case <-d.restart:
	default:
	}
}

// attach makes engine the device's engine. Callers hold d.mu.
func (d *device) attach(engine *nortek.Engine) {
	d.engine = engine
	d.current.Store(engine)
}

// stop closes the engine, powering the device down best-effort.
func (d *device) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.engine == nil {
		return
	}

	if err := d.engine.Close(); err != nil {
		d.logger.Debug("supervisor: close engine", "error", err)
	}

	d.paramMu.Lock()
	d.retired = d.retired.Add(d.engine.Metrics().Snapshot())
	d.current.Store(nil)
	d.paramMu.Unlock()

	d.engine = nil
}

// totals returns the engine counters summed over the device's lifetime.
func (d *device) totals() nortek.MetricsSnapshot {
	d.paramMu.Lock()
	defer d.paramMu.Unlock()

	total := d.retired
	if e := d.current.Load(); e != nil {
		total = total.Add(e.Metrics().Snapshot())
	}

	return total
}

// withEngine runs fn with the engine while holding the device lock. It
// returns false when no engine is attached.
func (d *device) withEngine(fn func(e *nortek.Engine) error) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.engine == nil {
		return false, nil
	}

	err := fn(d.engine)
	if errors.Is(err, nortek.ErrFaulted) || errors.Is(err, nortek.ErrTransport) {
		d.logger.Warn("supervisor: engine faulted, restart requested", "error", err)
		d.requestRestart()
	}

	return true, err
}
