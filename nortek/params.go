package nortek

import (
	"fmt"
	"strings"
)

// PowerLevel is the bottom-track transmit power category.
type PowerLevel uint8

// Power levels.
const (
	PowerMinimum PowerLevel = iota
	PowerMedium
	PowerMaximum
)

// String returns string representation of the power level.
func (p PowerLevel) String() string {
	switch p {
	case PowerMinimum:
		return "min"
	case PowerMedium:
		return "med"
	case PowerMaximum:
		return "max"
	default:
		return fmt.Sprintf("PowerLevel(%d)", uint8(p))
	}
}

// Decibels returns the transmit power in dB.
func (p PowerLevel) Decibels() float64 {
	return PowerLevelToDecibels(p)
}

// PowerLevelToDecibels maps a power level to its transmit power in dB:
// minimum -20, medium -10, maximum 0. Values outside the enumeration map
// to maximum.
func PowerLevelToDecibels(level PowerLevel) float64 {
	switch level {
	case PowerMinimum:
		return -20.0
	case PowerMedium:
		return -10.0
	default:
		return 0.0
	}
}

// ParsePowerLevel parses "min", "med", "max" or their long forms
// "minimum", "medium", "maximum", case-insensitively.
func ParsePowerLevel(s string) (PowerLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "min", "minimum":
		return PowerMinimum, nil
	case "med", "medium":
		return PowerMedium, nil
	case "max", "maximum":
		return PowerMaximum, nil
	default:
		return PowerMaximum, fmt.Errorf("nortek: unknown power level %q", s)
	}
}

func validSalinity(value float64) bool {
	return value >= MinSalinity && value <= MaxSalinity
}

func validSamplingRate(rate float64) bool {
	return rate >= MinSamplingRate && rate <= MaxSamplingRate
}

// SetSalinity sets the salinity in PSU applied by the next configuration.
// Values outside [0, 50] are ignored.
func (e *Engine) SetSalinity(value float64) {
	if !validSalinity(value) {
		return
	}

	e.salinity = value
}

// SetSamplingRate sets the sampling rate in Hz applied by the next
// configuration. Values outside [1, 8] are ignored.
func (e *Engine) SetSamplingRate(rate float64) {
	if !validSamplingRate(rate) {
		return
	}

	e.samplingRate = rate
}

// SetPowerLevel configures the bottom-track transmit power and then
// restarts the measurement.
//
// The start is attempted even when the power command failed, and only the
// power command's outcome is returned; a failed start is logged.
func (e *Engine) SetPowerLevel(level PowerLevel) error {
	err := e.Execute(fmt.Sprintf(fmtSetBTPower, level.Decibels()), ExecOptions{})

	if startErr := e.Start(); startErr != nil {
		e.logger.Debug("nortek: restart after power level change failed", "level", level, "error", startErr)
	}

	return err
}
