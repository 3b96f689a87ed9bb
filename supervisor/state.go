package supervisor

import "sync/atomic"

// DeviceState is the lifecycle state of a supervised device.
type DeviceState uint32

// Device lifecycle states.
const (
	// StoppedState: the device loop is not running.
	StoppedState DeviceState = iota
	// ConnectingState: the transport is being opened.
	ConnectingState
	// ConfiguringState: the setup sequence is running.
	ConfiguringState
	// RunningState: the device is configured and measuring.
	RunningState
	// BackoffState: the last attempt failed and the loop waits to retry.
	BackoffState
)

// String returns string representation of the state.
func (s DeviceState) String() string {
	switch s {
	case StoppedState:
		return "stopped"
	case ConnectingState:
		return "connecting"
	case ConfiguringState:
		return "configuring"
	case RunningState:
		return "running"
	case BackoffState:
		return "backoff"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s DeviceState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StateChangeHandler is invoked on every device state change.
//
// Note: the handler is invoked synchronously from the device loop. Take care
// with long-running implementations.
type StateChangeHandler func(name string, prevState DeviceState, newState DeviceState)

type atomicDeviceState struct {
	state atomic.Uint32
}

func (st *atomicDeviceState) Get() DeviceState {
	return DeviceState(st.state.Load())
}

func (st *atomicDeviceState) Swap(state DeviceState) DeviceState {
	return DeviceState(st.state.Swap(uint32(state)))
}
