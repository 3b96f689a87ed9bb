package nortek

import (
	"fmt"
)

// setupStep is one entry of the setup sequence.
type setupStep struct {
	name string
	run  func(e *Engine) error
}

// setupSequence is the ordered configuration sequence run by Setup.
var setupSequence = []setupStep{
	{"login", (*Engine).setupLogin},
	{"enter command mode", (*Engine).EnterCommandMode},
	{"reset to defaults", func(e *Engine) error { return e.Execute(cmdSetDefault, ExecOptions{}) }},
	{"disable indicator", func(e *Engine) error { return e.Execute(cmdLEDOff, ExecOptions{}) }},
	{"set clock", (*Engine).setClock},
	{"set parameters", (*Engine).setDVL},
	{"save configuration", (*Engine).save},
	{"start", (*Engine).Start},
}

// SetupSteps returns the names of the setup steps, in order.
func SetupSteps() []string {
	names := make([]string, len(setupSequence))
	for i, step := range setupSequence {
		names[i] = step.name
	}

	return names
}

// Setup runs the configuration sequence: login, enter command mode, reset
// to factory defaults, disable the LED, synchronize the clock, apply the
// sampling rate and salinity, save the configuration and start measuring.
//
// It stops at the first failed step and returns a *SetupError matching
// ErrSequenceAborted. No step is retried; restarting is up to the caller.
func (e *Engine) Setup() error {
	for i, step := range setupSequence {
		if err := step.run(e); err != nil {
			e.metrics.incSetupFailCount()
			e.logger.Warn("nortek: setup aborted", "step", i+1, "name", step.name, "error", err)

			return &SetupError{Step: i + 1, Name: step.name, Err: err}
		}

		e.logger.Debug("nortek: setup step done", "step", i+1, "name", step.name)
	}

	e.metrics.incSetupCount()
	e.logger.Info("nortek: setup completed",
		"samplingRate", e.samplingRate,
		"salinity", e.salinity)

	return nil
}

func (e *Engine) setupLogin() error {
	if !e.cfg.login {
		if err := e.usable(); err != nil {
			return err
		}
		e.setState(Authenticated)

		return nil
	}

	return e.Login()
}

// setClock synchronizes the device clock to the current UTC time.
func (e *Engine) setClock() error {
	now := e.cfg.clock.Now().UTC()
	cmd := fmt.Sprintf(fmtSetClock,
		now.Year(), int(now.Month()), now.Day(),
		now.Hour(), now.Minute(), now.Second())

	return e.Execute(cmd, ExecOptions{})
}

// setDVL applies the sampling rate and salinity.
func (e *Engine) setDVL() error {
	return e.Execute(fmt.Sprintf(fmtSetDVL, e.samplingRate, e.salinity), ExecOptions{})
}

// save persists the configuration. When saving fails the device's last
// error is requested for the trace log; that request's outcome is ignored.
func (e *Engine) save() error {
	err := e.Execute(cmdSave, ExecOptions{})
	if err == nil {
		return nil
	}

	_ = e.Execute(cmdGetError, ExecOptions{Trace: true})

	return err
}
