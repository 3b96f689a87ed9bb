package nortek

import (
	"context"
	"fmt"
	"time"

	"github.com/arloliu/go-dvl/internal/pool"
)

// maxDrainWindows bounds how long stale input is discarded, in multiples of
// the drain window, in case the device keeps streaming.
const maxDrainWindows = 10

// linkCheckWait is how long CheckLink waits for input or a link error.
const linkCheckWait = 5 * time.Millisecond

// Login performs the console login: it answers the username and password
// prompts with the credential and waits for the confirmation banner.
//
// Any missed prompt fails the login and leaves the session Disconnected.
// On success the login settling delay is observed and the session becomes
// Authenticated.
func (e *Engine) Login() error {
	if err := e.usable(); err != nil {
		return err
	}

	e.setState(LoggingIn)

	if err := e.login(); err != nil {
		e.setState(Disconnected)
		return fmt.Errorf("nortek: login: %w", err)
	}

	e.settle(e.cfg.loginSettle)
	e.setState(Authenticated)
	e.logger.Debug("nortek: logged in")

	return nil
}

func (e *Engine) login() error {
	if err := e.replyLogin(promptUsername); err != nil {
		return err
	}
	if err := e.replyLogin(promptPassword); err != nil {
		return err
	}

	return e.readUntil(bannerLogin, e.cfg.bannerTimeout, true)
}

// replyLogin waits for prompt and answers it with the credential.
func (e *Engine) replyLogin(prompt string) error {
	if err := e.readUntil(prompt, e.cfg.promptTimeout, true); err != nil {
		return err
	}

	return e.writeLine(e.cfg.credential, true)
}

// EnterCommandMode stops a running measurement and puts the device in
// command mode. It is a no-op when the device already is in command mode.
//
// The device is woken with a break, given the break settling delay, and
// then asked to change mode; the mode-change acknowledgment must arrive
// within the mode-change timeout.
func (e *Engine) EnterCommandMode() error {
	if err := e.usable(); err != nil {
		return err
	}

	if e.State() == CommandMode {
		return nil
	}

	if err := e.sendBreak(); err != nil {
		return fmt.Errorf("nortek: enter command mode: %w", err)
	}

	e.settle(e.cfg.breakSettle)
	e.discardPending()

	err := e.Execute(cmdModeChange, ExecOptions{
		BypassModeSwitch: true,
		Trace:            true,
		Timeout:          e.cfg.modeChangeTimeout,
	})
	if err != nil {
		// the break may have stopped the stream; the mode is unknown now
		if e.State() == MeasurementMode {
			e.setState(Authenticated)
		}

		return fmt.Errorf("nortek: enter command mode: %w", err)
	}

	e.metrics.incModeChangeCount()
	e.setState(CommandMode)

	return nil
}

// Start puts the device in measurement mode.
//
// The session only leaves CommandMode on an acknowledged START. If the
// acknowledgment is lost after the device did start, the session still
// reports CommandMode and the next command is sent without a break; the
// device ignores it while streaming and the command times out.
func (e *Engine) Start() error {
	if err := e.Execute(cmdStart, ExecOptions{}); err != nil {
		return fmt.Errorf("nortek: start: %w", err)
	}

	e.setState(MeasurementMode)

	return nil
}

// maxCheckReads bounds the reads of one CheckLink on a device that keeps
// streaming.
const maxCheckReads = 16

// CheckLink discards input the device sent unprompted, typically streamed
// measurement records, and reports a broken link. A transport failure
// faults the engine and is returned as ErrTransport.
func (e *Engine) CheckLink() error {
	if err := e.usable(); err != nil {
		return err
	}

	for range maxCheckReads {
		ok, err := e.tr.WaitReadable(linkCheckWait)
		if err == nil && ok {
			_, err = e.tr.Read(e.scan.buf)
		}
		if err != nil {
			e.fault(err)
			return fmt.Errorf("nortek: check link: %w: %w", ErrTransport, err)
		}
		if !ok {
			return nil
		}
	}

	return nil
}

// settle observes a protocol settling delay.
func (e *Engine) settle(d time.Duration) {
	_ = pool.Sleep(context.Background(), d)
}

// discardPending drops input that is still queued, typically measurement
// data streamed before the break took effect, so the next reply scan starts
// on a quiet line.
func (e *Engine) discardPending() {
	if e.cfg.drainWindow <= 0 {
		return
	}

	deadline := time.Now().Add(maxDrainWindows * e.cfg.drainWindow)
	scratch := e.scan.buf
	discarded := 0

	for time.Now().Before(deadline) {
		ok, err := e.tr.WaitReadable(e.cfg.drainWindow)
		if err != nil {
			e.fault(err)
			return
		}
		if !ok {
			break
		}

		n, err := e.tr.Read(scratch)
		discarded += n
		if err != nil {
			e.fault(err)
			return
		}
	}

	if discarded > 0 {
		e.logger.Debug("nortek: discarded stale input", "bytes", discarded)
	}
}
