package nortek

import (
	"errors"
	"fmt"
)

// Sentinel errors of the protocol engine.
var (
	// ErrTransportTimeout indicates the expected reply did not arrive in time.
	ErrTransportTimeout = errors.New("nortek: transport timeout")
	// ErrUnexpectedReply indicates data was received but did not end with
	// the expected terminator.
	ErrUnexpectedReply = errors.New("nortek: unexpected reply")
	// ErrBufferOverflow indicates the read buffer filled up before the
	// expected terminator was seen.
	ErrBufferOverflow = errors.New("nortek: read buffer overflow")
	// ErrSequenceAborted indicates the setup sequence stopped at a failed step.
	ErrSequenceAborted = errors.New("nortek: setup sequence aborted")
	// ErrTransport indicates the underlying byte stream failed.
	ErrTransport = errors.New("nortek: transport failure")
	// ErrFaulted is returned by every operation after a transport failure.
	// Only a new engine on a new transport can recover.
	ErrFaulted = errors.New("nortek: engine faulted")
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("nortek: engine closed")
)

// ScanError describes a failed read-until scan. It carries the sequence the
// scanner waited for and the bytes it actually received.
type ScanError struct {
	// Err is ErrTransportTimeout, ErrBufferOverflow or ErrTransport.
	Err error
	// Cause is the underlying transport error, if any.
	Cause error
	// Expected is the terminal sequence the scan waited for.
	Expected []byte
	// Received holds the bytes accumulated before the scan failed.
	Received []byte
}

func (e *ScanError) Error() string {
	msg := fmt.Sprintf("%s: received '%s' (does not end with: '%s')",
		e.Err.Error(), Sanitize(e.Received), Sanitize(e.Expected))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

// Unwrap returns the error kinds this scan failure matches. A timeout
// after partial data also matches ErrUnexpectedReply.
func (e *ScanError) Unwrap() []error {
	errs := []error{e.Err}
	if errors.Is(e.Err, ErrTransportTimeout) && len(e.Received) > 0 {
		errs = append(errs, ErrUnexpectedReply)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}

	return errs
}

// SetupError reports the step at which Setup stopped.
type SetupError struct {
	// Step is the 1-based position in the setup sequence.
	Step int
	// Name is the step's human readable name.
	Name string
	// Err is the failure of that step.
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("%s at step %d (%s): %s", ErrSequenceAborted, e.Step, e.Name, e.Err)
}

func (e *SetupError) Unwrap() []error {
	return []error{ErrSequenceAborted, e.Err}
}
