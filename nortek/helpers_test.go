package nortek

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-dvl/internal/simulator"
	"github.com/arloliu/go-dvl/logger"
	"github.com/arloliu/go-dvl/transport"
	"github.com/stretchr/testify/require"
)

var errLinkDown = errors.New("link down")

// testLogger runs every trace path without printing.
func testLogger() logger.Logger {
	return logger.NewSlogWithWriter(io.Discard, logger.TraceLevel, false)
}

// fastOptions shortens every protocol timing so tests run quickly.
func fastOptions() []Option {
	return []Option{
		WithCommandTimeout(500 * time.Millisecond),
		WithModeChangeTimeout(400 * time.Millisecond),
		WithBreakTimeout(30 * time.Millisecond),
		WithLoginTimeouts(500*time.Millisecond, 500*time.Millisecond),
		WithSettleDelays(0, 0),
		WithDrainWindow(5 * time.Millisecond),
		WithLogger(testLogger()),
	}
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

// scriptedTransport is an in-memory Transport. Written lines can trigger
// canned replies; reads deliver queued chunks one at a time.
type scriptedTransport struct {
	mu        sync.Mutex
	chunks    [][]byte
	written   []string
	replies   map[string][]string
	writeErrs []error
	readErr   error
	closed    bool
}

var _ transport.Transport = (*scriptedTransport)(nil)

func newScripted() *scriptedTransport {
	return &scriptedTransport{replies: make(map[string][]string)}
}

// on queues reply chunks to be delivered after line is written.
func (s *scriptedTransport) on(line string, chunks ...string) *scriptedTransport {
	s.replies[line] = chunks
	return s
}

// feed queues chunks for the next reads.
func (s *scriptedTransport) feed(chunks ...string) *scriptedTransport {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		s.chunks = append(s.chunks, []byte(c))
	}

	return s
}

// failWrites makes the next writes return the given errors, nil entries succeed.
func (s *scriptedTransport) failWrites(errs ...error) *scriptedTransport {
	s.writeErrs = append(s.writeErrs, errs...)
	return s
}

func (s *scriptedTransport) lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.written))
	copy(out, s.written)

	return out
}

func (s *scriptedTransport) WaitReadable(timeout time.Duration) (bool, error) {
	s.mu.Lock()
	ready := len(s.chunks) > 0
	readErr := s.readErr
	s.mu.Unlock()

	if ready {
		return true, nil
	}
	if readErr != nil {
		return false, readErr
	}

	time.Sleep(timeout)

	return false, nil
}

func (s *scriptedTransport) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.chunks) == 0 {
		return 0, s.readErr
	}

	n := copy(p, s.chunks[0])
	if n < len(s.chunks[0]) {
		s.chunks[0] = s.chunks[0][n:]
	} else {
		s.chunks = s.chunks[1:]
	}

	return n, nil
}

func (s *scriptedTransport) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.writeErrs) > 0 {
		err := s.writeErrs[0]
		s.writeErrs = s.writeErrs[1:]
		if err != nil {
			return 0, err
		}
	}

	line := string(p)
	s.written = append(s.written, line)
	for _, c := range s.replies[line] {
		s.chunks = append(s.chunks, []byte(c))
	}

	return len(p), nil
}

func (s *scriptedTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	return nil
}

// newScriptedEngine returns an engine on a scripted transport, already in state.
func newScriptedEngine(t *testing.T, tr *scriptedTransport, state State, opts ...Option) *Engine {
	t.Helper()

	e, err := New(tr, append(fastOptions(), opts...)...)
	require.NoError(t, err)
	e.state.Set(state)

	return e
}

// newSimEngine starts a simulator on loopback and returns an engine dialed to it.
func newSimEngine(t *testing.T, simOpts []simulator.Option, opts ...Option) (*Engine, *simulator.Simulator) {
	t.Helper()

	simOpts = append([]simulator.Option{simulator.WithLogger(testLogger())}, simOpts...)
	srv, err := simulator.Listen("127.0.0.1:0", simOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })

	tr, err := transport.DialTCP(context.Background(), srv.Addr(), transport.WithLogger(testLogger()))
	require.NoError(t, err)

	e, err := New(tr, append(fastOptions(), opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	require.Eventually(t, func() bool { return srv.Last() != nil }, time.Second, 5*time.Millisecond)

	return e, srv.Last()
}
