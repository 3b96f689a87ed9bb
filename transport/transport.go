package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"time"
)

var (
	// ErrClosed is returned by operations on a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrEmptyAddress indicates a dialer without a target address or port name.
	ErrEmptyAddress = errors.New("transport: empty address")
)

// Transport is a connected, bidirectional byte stream.
//
// Implementations are not required to be goroutine-safe; a single protocol
// engine owns a transport at a time.
type Transport interface {
	io.Writer
	io.Closer

	// Read reads whatever is currently available into p. It blocks for at
	// most the transport's read timeout when nothing is buffered, and
	// returns 0, nil if nothing arrived in that window.
	Read(p []byte) (int, error)

	// WaitReadable blocks until data is available or timeout elapses.
	// It returns false, nil on timeout and a non-nil error only when the
	// stream itself failed.
	WaitReadable(timeout time.Duration) (bool, error)
}

// Dialer opens a Transport.
type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
	// String returns a human readable endpoint description used in logs.
	String() string
}

// TCPDialer dials the instrument's telnet console.
type TCPDialer struct {
	Address string
	Options []Option
}

var _ Dialer = TCPDialer{}

// Dial implements Dialer.
func (d TCPDialer) Dial(ctx context.Context) (Transport, error) {
	return DialTCP(ctx, d.Address, d.Options...)
}

func (d TCPDialer) String() string { return "tcp://" + d.Address }

// SerialDialer opens a serial port.
type SerialDialer struct {
	PortName string
	Options  []Option
}

var _ Dialer = SerialDialer{}

// Dial implements Dialer.
func (d SerialDialer) Dial(ctx context.Context) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return OpenSerial(d.PortName, d.Options...)
}

func (d SerialDialer) String() string { return "serial://" + d.PortName }

// isTimeout reports whether err is a read/write deadline expiry.
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
