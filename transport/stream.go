package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/ziutek/telnet"
)

// Stream is a Transport backed by a net.Conn.
//
// Readiness is detected by peeking one byte through a bufio.Reader under a
// read deadline; the peeked bytes stay buffered for the following Read.
type Stream struct {
	conn   net.Conn
	reader *bufio.Reader
	cfg    *Config
	closed atomic.Bool
}

var _ Transport = (*Stream)(nil)

// NewStream wraps an established connection.
func NewStream(conn net.Conn, opts ...Option) (*Stream, error) {
	if conn == nil {
		return nil, fmt.Errorf("transport: nil connection")
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Stream{
		conn:   conn,
		reader: bufio.NewReader(conn),
		cfg:    cfg,
	}, nil
}

// DialTCP connects to the instrument's telnet console at address ("host:port").
func DialTCP(ctx context.Context, address string, opts ...Option) (*Stream, error) {
	if address == "" {
		return nil, ErrEmptyAddress
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	timeout := cfg.connectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := telnet.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", address, err)
	}

	cfg.logger.Debug("transport: connected",
		"localAddr", conn.LocalAddr(),
		"remoteAddr", conn.RemoteAddr())

	return &Stream{
		conn:   conn,
		reader: bufio.NewReader(conn),
		cfg:    cfg,
	}, nil
}

// WaitReadable implements Transport.
func (s *Stream) WaitReadable(timeout time.Duration) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}

	if s.reader.Buffered() > 0 {
		return true, nil
	}

	if timeout < 0 {
		timeout = 0
	}
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return false, err
	}

	_, err := s.reader.Peek(1)
	if err == nil {
		return true, nil
	}
	if isTimeout(err) {
		return false, nil
	}

	return false, err
}

// Read implements Transport. It never returns more than what is buffered
// after a successful readiness wait.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	ok, err := s.WaitReadable(s.cfg.readTimeout)
	if err != nil || !ok {
		return 0, err
	}

	n := s.reader.Buffered()
	if n > len(p) {
		n = len(p)
	}

	return s.reader.Read(p[:n])
}

// Write implements Transport. The whole buffer is written under one write
// deadline.
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.writeTimeout)); err != nil {
		return 0, err
	}

	written := 0
	for written < len(p) {
		n, err := s.conn.Write(p[written:])
		written += n

		if err != nil {
			return written, err
		}
	}

	return written, nil
}

// Close implements Transport. Closing twice is a no-op.
func (s *Stream) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	return s.conn.Close()
}

// RemoteAddr returns the peer address.
func (s *Stream) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }
