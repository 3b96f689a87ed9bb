package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/arloliu/go-dvl/internal/pool"
	"github.com/arloliu/go-dvl/logger"
	"github.com/arloliu/go-dvl/nortek"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	// ErrDeviceNotFound indicates an unknown device name.
	ErrDeviceNotFound = errors.New("supervisor: device not found")
	// ErrDeviceExists indicates a device name registered twice.
	ErrDeviceExists = errors.New("supervisor: device already registered")
	// ErrInvalidParameter indicates a rejected device spec or parameter value.
	ErrInvalidParameter = errors.New("supervisor: invalid parameter")
	// ErrAlreadyRunning is returned by a second concurrent Run.
	ErrAlreadyRunning = errors.New("supervisor: already running")
)

// DeviceStatus is a point-in-time view of a supervised device.
type DeviceStatus struct {
	Name         string                  `json:"name"`
	Endpoint     string                  `json:"endpoint"`
	State        DeviceState             `json:"state"`
	EngineState  string                  `json:"engine_state,omitempty"`
	Mode         string                  `json:"mode,omitempty"`
	Salinity     float64                 `json:"salinity"`
	SamplingRate float64                 `json:"sampling_rate"`
	PowerLevel   string                  `json:"power_level,omitempty"`
	Failures     uint64                  `json:"failures"`
	Restarts     uint64                  `json:"restarts"`
	LastError    string                  `json:"last_error,omitempty"`
	Metrics      *nortek.MetricsSnapshot `json:"metrics,omitempty"`
}

// Supervisor runs and reconfigures a set of devices.
type Supervisor struct {
	cfg     *Config
	logger  logger.Logger
	devices *xsync.MapOf[string, *device]

	mu      sync.Mutex
	runCtx  context.Context
	wg      sync.WaitGroup
	seedSeq int64
}

// New creates a Supervisor.
func New(opts ...Option) (*Supervisor, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	seed := cfg.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &Supervisor{
		cfg:     cfg,
		logger:  cfg.logger,
		devices: xsync.NewMapOf[string, *device](),
		seedSeq: seed,
	}, nil
}

// Add registers a device. A device added while Run is active starts
// immediately.
func (s *Supervisor) Add(spec DeviceSpec) error {
	if spec.SamplingRate == 0 {
		spec.SamplingRate = nortek.DefaultSamplingRate
	}
	if err := spec.validate(); err != nil {
		return err
	}

	d := newDevice(spec, s.logger)
	if _, loaded := s.devices.LoadOrStore(spec.Name, d); loaded {
		return fmt.Errorf("%w: %q", ErrDeviceExists, spec.Name)
	}
	if err := registerDevice(s.cfg.registry, d); err != nil {
		s.devices.Delete(spec.Name)
		return err
	}

	s.logger.Info("supervisor: device registered", "device", spec.Name, "endpoint", spec.Dialer.String())

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runCtx != nil {
		s.startLoop(s.runCtx, d)
	}

	return nil
}

// Run starts every registered device loop and blocks until ctx is done.
// Engines are closed before Run returns.
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.runCtx != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.runCtx = ctx

	s.devices.Range(func(_ string, d *device) bool {
		s.startLoop(ctx, d)
		return true
	})
	s.mu.Unlock()

	<-ctx.Done()

	s.mu.Lock()
	s.runCtx = nil
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("supervisor: stopped")

	return nil
}

// startLoop launches the loop of d. Callers hold s.mu.
func (s *Supervisor) startLoop(ctx context.Context, d *device) {
	if !d.started.CompareAndSwap(false, true) {
		return
	}

	s.seedSeq++
	rng := rand.New(rand.NewSource(s.seedSeq)) //nolint:gosec

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer d.started.Store(false)
		s.runDevice(ctx, d, rng)
	}()
}

// runDevice keeps d configured until ctx is done.
func (s *Supervisor) runDevice(ctx context.Context, d *device, rng *rand.Rand) {
	defer s.setState(d, StoppedState)

	attempt := 0
	for ctx.Err() == nil {
		err := s.startDevice(ctx, d)
		if err == nil {
			attempt = 0
			d.setLastError(nil)
			s.setState(d, RunningState)

			restart := s.watch(ctx, d)
			d.stop()
			if !restart {
				return
			}

			d.restarts.Add(1)
			d.logger.Warn("supervisor: restarting device")
		} else {
			attempt++
			d.failures.Add(1)
			d.setLastError(err)
			d.logger.Warn("supervisor: device start failed", "attempt", attempt, "error", err)
		}

		delay := s.cfg.backoff.Delay(attempt, rng)
		s.setState(d, BackoffState)
		d.logger.Debug("supervisor: retry scheduled", "delay", delay)

		if err := pool.Sleep(ctx, delay); err != nil {
			return
		}
	}
}

// watch blocks while d is running and checks its link periodically. It
// reports whether the engine must be replaced.
func (s *Supervisor) watch(ctx context.Context, d *device) bool {
	var tick <-chan time.Time
	if s.cfg.linkCheck > 0 {
		ticker := time.NewTicker(s.cfg.linkCheck)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-d.restart:
			return true
		case <-tick:
			// a broken link requests the restart picked up above
			_, err := d.withEngine(func(e *nortek.Engine) error {
				return e.CheckLink()
			})
			if err != nil {
				d.setLastError(err)
			}
		}
	}
}

// startDevice dials the transport and runs the setup sequence on a fresh
// engine. On failure the engine is closed.
func (s *Supervisor) startDevice(ctx context.Context, d *device) error {
	d.clearRestart()
	s.setState(d, ConnectingState)

	tr, err := d.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("dial %s: %w", d.dialer, err)
	}

	p := d.params()
	opts := make([]nortek.Option, 0, len(d.opts)+3)
	opts = append(opts, nortek.WithLogger(d.logger))
	opts = append(opts, d.opts...)
	opts = append(opts, nortek.WithSalinity(p.salinity), nortek.WithSamplingRate(p.samplingRate))

	engine, err := nortek.New(tr, opts...)
	if err != nil {
		_ = tr.Close()
		return err
	}

	s.setState(d, ConfiguringState)

	d.mu.Lock()
	d.attach(engine)
	err = engine.Setup()
	if err == nil && p.power != nil {
		err = engine.SetPowerLevel(*p.power)
	}
	d.mu.Unlock()

	if err != nil {
		d.stop()
		return err
	}

	return nil
}

func (s *Supervisor) setState(d *device, state DeviceState) {
	prev := d.state.Swap(state)
	if prev == state {
		return
	}

	d.logger.Debug("supervisor: device state change", "prevState", prev, "state", state)
	for _, h := range s.cfg.handlers {
		h(d.name, prev, state)
	}
}

func (s *Supervisor) device(name string) (*device, error) {
	d, ok := s.devices.Load(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, name)
	}

	return d, nil
}

// Gatherer returns the source of the device metrics.
func (s *Supervisor) Gatherer() prometheus.Gatherer {
	return s.cfg.registry
}

// Status returns the status of the named device.
func (s *Supervisor) Status(name string) (DeviceStatus, error) {
	d, err := s.device(name)
	if err != nil {
		return DeviceStatus{}, err
	}

	return s.status(d), nil
}

// List returns the status of every device, ordered by name.
func (s *Supervisor) List() []DeviceStatus {
	list := make([]DeviceStatus, 0, s.devices.Size())
	s.devices.Range(func(_ string, d *device) bool {
		list = append(list, s.status(d))
		return true
	})

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	return list
}

// Names returns the registered device names, sorted.
func (s *Supervisor) Names() []string {
	names := make([]string, 0, s.devices.Size())
	s.devices.Range(func(name string, _ *device) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)

	return names
}

func (s *Supervisor) status(d *device) DeviceStatus {
	p := d.params()
	st := DeviceStatus{
		Name:         d.name,
		Endpoint:     d.dialer.String(),
		State:        d.state.Get(),
		Salinity:     p.salinity,
		SamplingRate: p.samplingRate,
		Failures:     d.failures.Load(),
		Restarts:     d.restarts.Load(),
	}
	if p.power != nil {
		st.PowerLevel = p.power.String()
	}
	if err := d.lastError(); err != nil {
		st.LastError = err.Error()
	}
	if e := d.current.Load(); e != nil {
		snap := e.Metrics().Snapshot()
		st.EngineState = e.State().String()
		st.Mode = e.Mode().String()
		st.Metrics = &snap
	}

	return st
}

// SetPowerLevel stores the power level of the named device and applies it
// to the running engine, if any. A transport failure restarts the device.
func (s *Supervisor) SetPowerLevel(name string, level nortek.PowerLevel) error {
	d, err := s.device(name)
	if err != nil {
		return err
	}
	if level > nortek.PowerMaximum {
		return fmt.Errorf("%w: power level %v", ErrInvalidParameter, level)
	}

	d.paramMu.Lock()
	d.power = &level
	d.paramMu.Unlock()

	_, err = d.withEngine(func(e *nortek.Engine) error {
		return e.SetPowerLevel(level)
	})
	if err != nil {
		return fmt.Errorf("supervisor: device %q: %w", name, err)
	}

	return nil
}

// SetSalinity stores the salinity of the named device. It is applied by
// the next setup sequence.
func (s *Supervisor) SetSalinity(name string, value float64) error {
	d, err := s.device(name)
	if err != nil {
		return err
	}
	if !validSalinity(value) {
		return fmt.Errorf("%w: salinity %v out of range [%v, %v]",
			ErrInvalidParameter, value, nortek.MinSalinity, nortek.MaxSalinity)
	}

	d.paramMu.Lock()
	d.salinity = value
	d.paramMu.Unlock()

	_, _ = d.withEngine(func(e *nortek.Engine) error {
		e.SetSalinity(value)
		return nil
	})

	return nil
}

// SetSamplingRate stores the sampling rate of the named device. It is
// applied by the next setup sequence.
func (s *Supervisor) SetSamplingRate(name string, rate float64) error {
	d, err := s.device(name)
	if err != nil {
		return err
	}
	if !validSamplingRate(rate) {
		return fmt.Errorf("%w: sampling rate %v out of range [%v, %v]",
			ErrInvalidParameter, rate, nortek.MinSamplingRate, nortek.MaxSamplingRate)
	}

	d.paramMu.Lock()
	d.samplingRate = rate
	d.paramMu.Unlock()

	_, _ = d.withEngine(func(e *nortek.Engine) error {
		e.SetSamplingRate(rate)
		return nil
	})

	return nil
}

// Restart replaces the engine of a running device, which reruns the setup
// sequence with the stored parameters.
func (s *Supervisor) Restart(name string) error {
	d, err := s.device(name)
	if err != nil {
		return err
	}

	d.requestRestart()

	return nil
}
