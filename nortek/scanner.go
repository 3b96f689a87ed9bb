package nortek

import (
	"bytes"
	"time"

	"github.com/arloliu/go-dvl/transport"
)

// scanner accumulates transport input into a fixed-capacity buffer until
// the buffer ends with a terminal sequence.
//
// The buffer is reset at the start of every scan; nothing carries over
// between exchanges. This type is NOT goroutine-safe.
type scanner struct {
	tr     transport.Transport
	buf    []byte
	cursor int
}

func newScanner(tr transport.Transport, capacity int) *scanner {
	return &scanner{
		tr:  tr,
		buf: make([]byte, capacity),
	}
}

// received returns the bytes accumulated by the last scan. The slice is
// only valid until the next scan.
func (s *scanner) received() []byte {
	return s.buf[:s.cursor]
}

// readUntil reads until the accumulated bytes end with seq or timeout
// elapses. Failures are returned as *ScanError.
//
// Data arriving after seq within the same read stays in the buffer; the
// match is a suffix check on everything received so far.
func (s *scanner) readUntil(seq []byte, timeout time.Duration) error {
	s.cursor = 0
	deadline := time.Now().Add(timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return s.fail(ErrTransportTimeout, seq, nil)
		}

		ok, err := s.tr.WaitReadable(remaining)
		if err != nil {
			return s.fail(ErrTransport, seq, err)
		}
		if !ok {
			continue
		}

		n, err := s.tr.Read(s.buf[s.cursor:])
		s.cursor += n
		if err != nil {
			return s.fail(ErrTransport, seq, err)
		}

		if n > 0 && bytes.HasSuffix(s.buf[:s.cursor], seq) {
			return nil
		}

		// the next read would have nowhere to go
		if s.cursor == len(s.buf) {
			return s.fail(ErrBufferOverflow, seq, nil)
		}
	}
}

func (s *scanner) fail(kind error, seq []byte, cause error) *ScanError {
	received := make([]byte, s.cursor)
	copy(received, s.buf[:s.cursor])

	return &ScanError{
		Err:      kind,
		Cause:    cause,
		Expected: bytes.Clone(seq),
		Received: received,
	}
}
