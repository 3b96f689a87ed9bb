// Package simulator emulates the console of a Nortek DVL for tests and
// bench work. It speaks the same line protocol as the instrument: login
// prompts, break/mode-change handling, "OK" acknowledgments and measurement
// streaming.
package simulator

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-dvl/logger"
)

// Mode is the emulated device mode.
type Mode int

// Emulated device modes.
const (
	ModeLogin Mode = iota
	ModeCommand
	// ModeConfirm is entered after a break; the device waits for "MC".
	ModeConfirm
	ModeMeasurement
	ModeOff
)

func (m Mode) String() string {
	switch m {
	case ModeLogin:
		return "login"
	case ModeCommand:
		return "command"
	case ModeConfirm:
		return "confirm"
	case ModeMeasurement:
		return "measurement"
	case ModeOff:
		return "off"
	default:
		return "unknown"
	}
}

// Record is one line received after login together with the mode the
// device was in when it arrived.
type Record struct {
	Line string
	Mode Mode
}

const (
	breakLine  = "K1W%!Q"
	loginReply = "\r\nNortek DVL1000 Command Interface\r\r\n"
	dataLine   = "$PNORBT7,1452244406.7920,0.00000,0.212,-0.012,0.002,10.123,10.120,10.119,10.122,1.23,2.34,0x00000000*4F\r\n"
)

var errPowerDown = errors.New("simulator: powered down")

// Simulator serves one console session over a connection.
type Simulator struct {
	conn   net.Conn
	cfg    *config
	logger logger.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	mode    Mode
	records []Record
	done    chan struct{}
}

// New creates a Simulator for conn. Call Serve to run the session.
func New(conn net.Conn, opts ...Option) *Simulator {
	cfg := newConfig(opts...)

	s := &Simulator{
		conn:   conn,
		cfg:    cfg,
		logger: cfg.logger,
		done:   make(chan struct{}),
	}

	if cfg.login {
		s.mode = ModeLogin
	} else {
		s.mode = cfg.initialMode
	}

	return s
}

// Mode returns the current emulated mode.
func (s *Simulator) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mode
}

// Records returns a copy of every line received after login.
func (s *Simulator) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)

	return out
}

// Commands returns the received lines, break sequences excluded.
func (s *Simulator) Commands() []string {
	var cmds []string
	for _, r := range s.Records() {
		if r.Line != breakLine {
			cmds = append(cmds, r.Line)
		}
	}

	return cmds
}

// Done is closed when Serve returns.
func (s *Simulator) Done() <-chan struct{} {
	return s.done
}

// Hangup drops the connection the way a device losing power or network
// would. Serve returns soon after.
func (s *Simulator) Hangup() error {
	return s.conn.Close()
}

// Serve runs the session until the connection closes or the device is
// powered down. It closes the connection before returning.
func (s *Simulator) Serve() error {
	defer close(s.done)
	defer s.conn.Close()

	reader := bufio.NewReader(s.conn)

	if s.cfg.streamInterval > 0 {
		go s.streamLoop()
	}

	if s.cfg.login {
		if err := s.serveLogin(reader); err != nil {
			return err
		}
	}

	for {
		line, err := readLine(reader)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		if err := s.handle(line); err != nil {
			if errors.Is(err, errPowerDown) {
				return nil
			}
			return err
		}
	}
}

func (s *Simulator) serveLogin(reader *bufio.Reader) error {
	for _, prompt := range []string{"Username: ", "Password: "} {
		if err := s.write(prompt); err != nil {
			return err
		}

		line, err := readLine(reader)
		if err != nil {
			return err
		}
		if line != s.cfg.credential {
			_ = s.write("\r\nLogin failed\r\n")
			return fmt.Errorf("simulator: bad credential %q", line)
		}
	}

	if err := s.write(s.cfg.banner); err != nil {
		return err
	}

	s.setMode(s.cfg.initialMode)

	return nil
}

func (s *Simulator) handle(line string) error {
	s.mu.Lock()
	mode := s.mode
	s.records = append(s.records, Record{Line: line, Mode: mode})
	s.mu.Unlock()

	s.logger.Trace("simulator: recv", "line", line, "mode", mode)

	if line == breakLine {
		if mode == ModeMeasurement {
			s.setMode(ModeConfirm)
		}
		if s.cfg.breakAck {
			return s.write("\r\nOK\r\n")
		}
		return nil
	}

	switch mode {
	case ModeMeasurement:
		// configuration is ignored while streaming
		return nil

	case ModeConfirm:
		if line == "MC" {
			s.setMode(ModeCommand)
			return s.reply(line)
		}
		return nil
	}

	switch line {
	case "START":
		acked, err := s.replyAcked(line)
		if err != nil {
			return err
		}
		if acked {
			s.setMode(ModeMeasurement)
		}

		return nil

	case "POWERDOWN":
		_ = s.reply(line)
		s.setMode(ModeOff)

		return errPowerDown

	case "GETERROR":
		return s.write("ERROR,0,\"No error\"\r\nOK\r\n")
	}

	return s.reply(line)
}

func (s *Simulator) reply(line string) error {
	_, err := s.replyAcked(line)
	return err
}

// replyAcked answers a command according to the failure injection settings
// and reports whether it was acknowledged.
func (s *Simulator) replyAcked(line string) (bool, error) {
	for _, prefix := range s.cfg.silent {
		if strings.HasPrefix(line, prefix) {
			return false, nil
		}
	}
	for _, prefix := range s.cfg.failing {
		if strings.HasPrefix(line, prefix) {
			return false, s.write("ERROR\r\n")
		}
	}

	return true, s.write("OK\r\n")
}

func (s *Simulator) setMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mode = mode
}

func (s *Simulator) write(data string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.Write([]byte(data))

	return err
}

func (s *Simulator) streamLoop() {
	ticker := time.NewTicker(s.cfg.streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.Mode() != ModeMeasurement {
				continue
			}
			if err := s.write(dataLine); err != nil {
				return
			}
		}
	}
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}
