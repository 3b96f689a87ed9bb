package transport

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

const serialChunkSize = 256

// serialOpen is replaced in tests.
var serialOpen = serial.Open

// SerialPort is a Transport backed by a serial line.
//
// go.bug.st/serial reports a read timeout as (0, nil), so readiness is
// detected by reading into a small pending buffer which Read drains first.
type SerialPort struct {
	port    serial.Port
	name    string
	cfg     *Config
	pending []byte
	chunk   [serialChunkSize]byte
	closed  atomic.Bool
}

var _ Transport = (*SerialPort)(nil)

// OpenSerial opens portName in 8N1 at the configured baud rate.
func OpenSerial(portName string, opts ...Option) (*SerialPort, error) {
	if portName == "" {
		return nil, ErrEmptyAddress
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serialOpen(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open serial port %s: %w", portName, err)
	}

	cfg.logger.Debug("transport: serial port opened", "port", portName, "baud", cfg.baudRate)

	return newSerialPort(port, portName, cfg), nil
}

func newSerialPort(port serial.Port, name string, cfg *Config) *SerialPort {
	return &SerialPort{
		port:    port,
		name:    name,
		cfg:     cfg,
		pending: make([]byte, 0, serialChunkSize),
	}
}

// WaitReadable implements Transport.
func (s *SerialPort) WaitReadable(timeout time.Duration) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}

	if len(s.pending) > 0 {
		return true, nil
	}

	if timeout <= 0 {
		timeout = time.Millisecond
	}
	if err := s.port.SetReadTimeout(timeout); err != nil {
		return false, err
	}

	n, err := s.port.Read(s.chunk[:])
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	s.pending = append(s.pending[:0], s.chunk[:n]...)

	return true, nil
}

// Read implements Transport.
func (s *SerialPort) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	ok, err := s.WaitReadable(s.cfg.readTimeout)
	if err != nil || !ok {
		return 0, err
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]

	return n, nil
}

// Write implements Transport.
func (s *SerialPort) Write(p []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}

	written := 0
	for written < len(p) {
		n, err := s.port.Write(p[written:])
		written += n

		if err != nil {
			return written, err
		}
	}

	return written, nil
}

// Close implements Transport. Closing twice is a no-op.
func (s *SerialPort) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	return s.port.Close()
}

// Name returns the OS device path.
func (s *SerialPort) Name() string { return s.name }
