package supervisor

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-dvl/internal/simulator"
	"github.com/arloliu/go-dvl/logger"
	"github.com/arloliu/go-dvl/nortek"
	"github.com/arloliu/go-dvl/transport"
	"github.com/stretchr/testify/require"
)

var errKilled = errors.New("link killed")

func testLogger() logger.Logger {
	return logger.NewSlogWithWriter(io.Discard, logger.DebugLevel, false)
}

func fastEngineOptions() []nortek.Option {
	return []nortek.Option{
		nortek.WithCommandTimeout(300 * time.Millisecond),
		nortek.WithModeChangeTimeout(300 * time.Millisecond),
		nortek.WithBreakTimeout(20 * time.Millisecond),
		nortek.WithLoginTimeouts(300*time.Millisecond, 300*time.Millisecond),
		nortek.WithSettleDelays(0, 0),
		nortek.WithDrainWindow(5 * time.Millisecond),
	}
}

var fastBackoff = Backoff{Initial: 10 * time.Millisecond, Multiplier: 2, Max: 40 * time.Millisecond}

func startSimulator(t *testing.T, opts ...simulator.Option) *simulator.Server {
	t.Helper()

	opts = append([]simulator.Option{simulator.WithLogger(testLogger())}, opts...)
	srv, err := simulator.Listen("127.0.0.1:0", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	return srv
}

// runSupervisor runs s until the test ends.
func runSupervisor(t *testing.T, s *Supervisor) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitRunning(t *testing.T, s *Supervisor) {
	t.Helper()

	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()

		return s.runCtx != nil
	}, time.Second, time.Millisecond)
}

func waitState(t *testing.T, s *Supervisor, name string, state DeviceState) {
	t.Helper()

	require.Eventually(t, func() bool {
		st, err := s.Status(name)
		return err == nil && st.State == state
	}, 5*time.Second, 5*time.Millisecond, "device %q never reached %s", name, state)
}

// stateRecorder collects state changes.
type stateRecorder struct {
	mu      sync.Mutex
	changes []DeviceState
}

func (r *stateRecorder) handle(_ string, _ DeviceState, state DeviceState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.changes = append(r.changes, state)
}

func (r *stateRecorder) states() []DeviceState {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]DeviceState, len(r.changes))
	copy(out, r.changes)

	return out
}

// killableDialer dials TCP and lets the test break the current link.
type killableDialer struct {
	transport.TCPDialer
	current atomic.Pointer[killableTransport]
}

type killableTransport struct {
	transport.Transport
	dead atomic.Bool
}

func (k *killableTransport) Write(p []byte) (int, error) {
	if k.dead.Load() {
		return 0, errKilled
	}

	return k.Transport.Write(p)
}

func (k *killableTransport) WaitReadable(timeout time.Duration) (bool, error) {
	if k.dead.Load() {
		return false, errKilled
	}

	return k.Transport.WaitReadable(timeout)
}

func (d *killableDialer) Dial(ctx context.Context) (transport.Transport, error) {
	tr, err := d.TCPDialer.Dial(ctx)
	if err != nil {
		return nil, err
	}

	k := &killableTransport{Transport: tr}
	d.current.Store(k)

	return k, nil
}

func (d *killableDialer) kill() {
	if k := d.current.Load(); k != nil {
		k.dead.Store(true)
	}
}
