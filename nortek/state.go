package nortek

import "sync/atomic"

// State is the session state of an Engine.
type State uint32

// Session states.
const (
	// Disconnected: no successful login yet, or the last login failed.
	Disconnected State = iota
	// LoggingIn: the login exchange is in progress.
	LoggingIn
	// Authenticated: the console accepted the credentials; the operating
	// mode is not confirmed yet.
	Authenticated
	// CommandMode: the device acknowledged the mode-change command.
	CommandMode
	// MeasurementMode: the device acknowledged the start command and streams data.
	MeasurementMode
	// Faulted: the transport failed. Terminal for this engine.
	Faulted
)

// String returns string representation of the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case LoggingIn:
		return "logging-in"
	case Authenticated:
		return "authenticated"
	case CommandMode:
		return "command"
	case MeasurementMode:
		return "measurement"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// Mode returns the operating mode implied by the state.
func (s State) Mode() Mode {
	switch s {
	case CommandMode:
		return ModeCommand
	case MeasurementMode:
		return ModeMeasurement
	default:
		return ModeUnknown
	}
}

// Mode is the device operating mode.
type Mode uint8

// Operating modes.
const (
	ModeUnknown Mode = iota
	ModeMeasurement
	ModeCommand
)

// String returns string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeMeasurement:
		return "measurement"
	case ModeCommand:
		return "command"
	default:
		return "unknown"
	}
}

// atomicState lets observers read the state while the single caller drives
// the engine.
type atomicState struct {
	state atomic.Uint32
}

func (st *atomicState) Get() State {
	return State(st.state.Load())
}

func (st *atomicState) Set(state State) {
	st.state.Store(uint32(state))
}
