package nortek

import (
	"errors"
	"fmt"
	"time"
)

// ExecOptions tunes a single command exchange. The zero value sends the
// command through the default path: command mode is forced first and the
// standard "OK\r\n" acknowledgment is awaited for the configured command
// timeout.
type ExecOptions struct {
	// BypassModeSwitch sends the command without entering command mode first.
	BypassModeSwitch bool
	// Trace logs the raw exchange at trace level.
	Trace bool
	// Timeout overrides the acknowledgment timeout when positive.
	Timeout time.Duration
	// Reply overrides the expected reply terminator when not empty.
	Reply string
}

// Execute sends one command line and waits for its acknowledgment.
//
// Unless opts.BypassModeSwitch is set, command mode is entered first and
// nothing is written if that fails. A missing acknowledgment is reported
// as an error matching ErrTransportTimeout; the bytes received instead are
// available through errors.As with *ScanError.
func (e *Engine) Execute(cmd string, opts ExecOptions) error {
	if err := e.usable(); err != nil {
		return err
	}

	if !opts.BypassModeSwitch {
		if err := e.EnterCommandMode(); err != nil {
			return fmt.Errorf("nortek: command %q: %w", cmd, err)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = e.cfg.commandTimeout
	}
	reply := opts.Reply
	if reply == "" {
		reply = replyOK
	}
	trace := opts.Trace || e.cfg.traceAll

	if err := e.writeLine(cmd, trace); err != nil {
		return fmt.Errorf("nortek: command %q: %w", cmd, err)
	}
	e.metrics.incCommandSendCount()

	if err := e.readUntil(reply, timeout, trace); err != nil {
		e.metrics.incCommandFailCount()
		return fmt.Errorf("nortek: command %q: %w", cmd, err)
	}
	e.metrics.incCommandAckCount()

	return nil
}

// writeLine writes s followed by the line terminator.
func (e *Engine) writeLine(s string, trace bool) error {
	line := []byte(s + lineTerminator)

	if _, err := e.tr.Write(line); err != nil {
		e.fault(err)
		return fmt.Errorf("%w: write: %w", ErrTransport, err)
	}

	if trace {
		e.logger.Trace("nortek: sent", "data", Sanitize(line))
	}

	return nil
}

// readUntil scans for seq and keeps the metrics and the session state in
// line with the outcome.
func (e *Engine) readUntil(seq string, timeout time.Duration, trace bool) error {
	err := e.scan.readUntil([]byte(seq), timeout)
	if err == nil {
		if trace {
			e.logger.Trace("nortek: recv", "data", Sanitize(e.scan.received()))
		}

		return nil
	}

	if trace {
		e.logger.Trace("nortek: recv", "data", Sanitize(e.scan.received()), "expected", Sanitize([]byte(seq)))
	}

	switch {
	case errors.Is(err, ErrTransport):
		e.fault(err)
	case errors.Is(err, ErrBufferOverflow):
		e.metrics.incOverflowCount()
	case errors.Is(err, ErrTransportTimeout):
		e.metrics.incTimeoutCount()
	}

	return err
}
