package nortek

import (
	"sync/atomic"
)

// EngineMetrics contains atomic counters of an Engine.
// The supervisor exports them as prometheus counters.
type EngineMetrics struct {
	// CommandSendCount indicates the number of command lines written.
	CommandSendCount atomic.Uint64
	// CommandAckCount indicates the number of commands acknowledged.
	CommandAckCount atomic.Uint64
	// CommandFailCount indicates the number of commands without acknowledgment.
	CommandFailCount atomic.Uint64
	// TimeoutCount indicates the number of scans that timed out.
	TimeoutCount atomic.Uint64
	// OverflowCount indicates the number of scans that overflowed the buffer.
	OverflowCount atomic.Uint64
	// BreakCount indicates the number of break attempts.
	BreakCount atomic.Uint64
	// BreakRetryCount indicates the number of break retries.
	BreakRetryCount atomic.Uint64
	// ModeChangeCount indicates the number of successful command mode entries.
	ModeChangeCount atomic.Uint64
	// SetupCount indicates the number of completed setup sequences.
	SetupCount atomic.Uint64
	// SetupFailCount indicates the number of aborted setup sequences.
	SetupFailCount atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of EngineMetrics.
type MetricsSnapshot struct {
	CommandSendCount uint64 `json:"command_send_count"`
	CommandAckCount  uint64 `json:"command_ack_count"`
	CommandFailCount uint64 `json:"command_fail_count"`
	TimeoutCount     uint64 `json:"timeout_count"`
	OverflowCount    uint64 `json:"overflow_count"`
	BreakCount       uint64 `json:"break_count"`
	BreakRetryCount  uint64 `json:"break_retry_count"`
	ModeChangeCount  uint64 `json:"mode_change_count"`
	SetupCount       uint64 `json:"setup_count"`
	SetupFailCount   uint64 `json:"setup_fail_count"`
}

// Snapshot returns the current counter values.
func (m *EngineMetrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		CommandSendCount: m.CommandSendCount.Load(),
		CommandAckCount:  m.CommandAckCount.Load(),
		CommandFailCount: m.CommandFailCount.Load(),
		TimeoutCount:     m.TimeoutCount.Load(),
		OverflowCount:    m.OverflowCount.Load(),
		BreakCount:       m.BreakCount.Load(),
		BreakRetryCount:  m.BreakRetryCount.Load(),
		ModeChangeCount:  m.ModeChangeCount.Load(),
		SetupCount:       m.SetupCount.Load(),
		SetupFailCount:   m.SetupFailCount.Load(),
	}
}

// Add returns the field-wise sum of s and o.
func (s MetricsSnapshot) Add(o MetricsSnapshot) MetricsSnapshot {
	return MetricsSnapshot{
		CommandSendCount: s.CommandSendCount + o.CommandSendCount,
		CommandAckCount:  s.CommandAckCount + o.CommandAckCount,
		CommandFailCount: s.CommandFailCount + o.CommandFailCount,
		TimeoutCount:     s.TimeoutCount + o.TimeoutCount,
		OverflowCount:    s.OverflowCount + o.OverflowCount,
		BreakCount:       s.BreakCount + o.BreakCount,
		BreakRetryCount:  s.BreakRetryCount + o.BreakRetryCount,
		ModeChangeCount:  s.ModeChangeCount + o.ModeChangeCount,
		SetupCount:       s.SetupCount + o.SetupCount,
		SetupFailCount:   s.SetupFailCount + o.SetupFailCount,
	}
}

func (m *EngineMetrics) incCommandSendCount() {
	m.CommandSendCount.Add(1)
}

func (m *EngineMetrics) incCommandAckCount() {
	m.CommandAckCount.Add(1)
}

func (m *EngineMetrics) incCommandFailCount() {
	m.CommandFailCount.Add(1)
}

func (m *EngineMetrics) incTimeoutCount() {
	m.TimeoutCount.Add(1)
}

func (m *EngineMetrics) incOverflowCount() {
	m.OverflowCount.Add(1)
}

func (m *EngineMetrics) incBreakCount() {
	m.BreakCount.Add(1)
}

func (m *EngineMetrics) incBreakRetryCount() {
	m.BreakRetryCount.Add(1)
}

func (m *EngineMetrics) incModeChangeCount() {
	m.ModeChangeCount.Add(1)
}

func (m *EngineMetrics) incSetupCount() {
	m.SetupCount.Add(1)
}

func (m *EngineMetrics) incSetupFailCount() {
	m.SetupFailCount.Add(1)
}
