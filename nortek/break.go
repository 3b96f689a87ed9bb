package nortek

import (
	"errors"
	"fmt"
)

// breakAttempts is the number of times a break is sent before giving up:
// one attempt and exactly one immediate retry.
const breakAttempts = 2

// sendBreak wakes the device with the break sequence.
//
// The device does not necessarily answer a break, so a missing reply is
// not a failure; the reply wait only consumes an acknowledgment if one
// comes. An attempt fails when the stream itself fails, and a failed
// attempt is retried once. Two failed attempts fault the engine.
func (e *Engine) sendBreak() error {
	var err error

	for attempt := 1; attempt <= breakAttempts; attempt++ {
		if attempt > 1 {
			e.metrics.incBreakRetryCount()
			e.logger.Debug("nortek: retrying break", "attempt", attempt, "error", err)
		}

		if err = e.breakOnce(); err == nil {
			return nil
		}
	}

	e.fault(err)

	return err
}

func (e *Engine) breakOnce() error {
	e.metrics.incBreakCount()

	line := []byte(breakSequence + lineTerminator)
	if _, err := e.tr.Write(line); err != nil {
		return fmt.Errorf("%w: write break: %w", ErrTransport, err)
	}
	e.logger.Trace("nortek: sent", "data", Sanitize(line))

	err := e.scan.readUntil([]byte(replyOK), e.cfg.breakTimeout)
	if err == nil {
		e.logger.Trace("nortek: recv", "data", Sanitize(e.scan.received()))
		return nil
	}
	if errors.Is(err, ErrTransport) {
		return err
	}

	e.logger.Trace("nortek: no reply to break", "data", Sanitize(e.scan.received()))

	return nil
}
