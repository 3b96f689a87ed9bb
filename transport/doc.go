// Package transport provides the byte-stream endpoints a DVL protocol engine
// talks through.
//
// A [Transport] is an already connected, bidirectional stream with one extra
// primitive: [Transport.WaitReadable] blocks for at most the given duration
// and reports whether data is ready to be read. The engine never blocks on a
// Read without first waiting for readiness, which keeps every protocol
// exchange bounded by its timeout.
//
// Two concrete transports are provided:
//
//   - [DialTCP] opens the instrument's Ethernet console. The console is a
//     telnet service, so the connection goes through github.com/ziutek/telnet
//     which strips option negotiation from the byte stream.
//   - [OpenSerial] opens an RS-232/RS-422 port with go.bug.st/serial.
//
// [NewStream] wraps any net.Conn and is what tests use with net.Pipe.
package transport
