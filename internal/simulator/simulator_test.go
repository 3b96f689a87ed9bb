package simulator

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/arloliu/go-dvl/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type peer struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func startSession(t *testing.T, opts ...Option) (*Simulator, *peer) {
	t.Helper()

	client, server := net.Pipe()
	opts = append([]Option{WithLogger(logger.NewSlogWithWriter(io.Discard, logger.TraceLevel, false))}, opts...)
	sim := New(server, opts...)
	go func() { _ = sim.Serve() }()

	t.Cleanup(func() {
		_ = client.Close()
		<-sim.Done()
	})

	return sim, &peer{t: t, conn: client, reader: bufio.NewReader(client)}
}

func (p *peer) send(line string) {
	p.t.Helper()

	require.NoError(p.t, p.conn.SetWriteDeadline(time.Now().Add(time.Second)))
	_, err := p.conn.Write([]byte(line + "\r\n"))
	require.NoError(p.t, err)
}

// expect reads exactly len(want) bytes.
func (p *peer) expect(want string) {
	p.t.Helper()

	require.NoError(p.t, p.conn.SetReadDeadline(time.Now().Add(time.Second)))
	buf := make([]byte, len(want))
	_, err := io.ReadFull(p.reader, buf)
	require.NoError(p.t, err)
	assert.Equal(p.t, want, string(buf))
}

func (p *peer) login() {
	p.t.Helper()

	p.expect("Username: ")
	p.send("nortek")
	p.expect("Password: ")
	p.send("nortek")
	p.expect(loginReply)
}

func TestSimulator_Login(t *testing.T) {
	sim, p := startSession(t)
	assert.Equal(t, ModeLogin, sim.Mode())

	p.login()
	require.Eventually(t, func() bool { return sim.Mode() == ModeCommand }, time.Second, time.Millisecond)
	assert.Empty(t, sim.Records())
}

func TestSimulator_LoginRejected(t *testing.T) {
	sim, p := startSession(t, WithCredential("secret"))

	p.expect("Username: ")
	p.send("nortek")
	p.expect("\r\nLogin failed\r\n")

	select {
	case <-sim.Done():
	case <-time.After(time.Second):
		t.Fatal("session still open after rejected login")
	}
}

func TestSimulator_CommandReplies(t *testing.T) {
	sim, p := startSession(t, WithoutLogin(), WithFailingCommand("SAVE"))

	p.send("SETDEFAULT,ALL")
	p.expect("OK\r\n")
	p.send("SAVE,ALL")
	p.expect("ERROR\r\n")
	p.send("GETERROR")
	p.expect("ERROR,0,\"No error\"\r\nOK\r\n")

	assert.Equal(t, []string{"SETDEFAULT,ALL", "SAVE,ALL", "GETERROR"}, sim.Commands())
}

func TestSimulator_BreakAndModeChange(t *testing.T) {
	sim, p := startSession(t, WithoutLogin(), WithInitialMode(ModeMeasurement), WithBreakAck())

	// ignored while measuring
	p.send("SETDEFAULT,ALL")
	p.send("K1W%!Q")
	p.expect("\r\nOK\r\n")
	assert.Equal(t, ModeConfirm, sim.Mode())

	p.send("MC")
	p.expect("OK\r\n")
	assert.Equal(t, ModeCommand, sim.Mode())

	p.send("START")
	p.expect("OK\r\n")
	require.Eventually(t, func() bool { return sim.Mode() == ModeMeasurement }, time.Second, time.Millisecond)

	records := sim.Records()
	require.Len(t, records, 4)
	assert.Equal(t, Record{Line: "SETDEFAULT,ALL", Mode: ModeMeasurement}, records[0])
	assert.Equal(t, Record{Line: "K1W%!Q", Mode: ModeMeasurement}, records[1])
	assert.Equal(t, Record{Line: "MC", Mode: ModeConfirm}, records[2])
	assert.Equal(t, Record{Line: "START", Mode: ModeCommand}, records[3])
	assert.Equal(t, []string{"SETDEFAULT,ALL", "MC", "START"}, sim.Commands())
}

func TestSimulator_SilentCommand(t *testing.T) {
	sim, p := startSession(t, WithoutLogin(), WithSilentCommand("START"))

	p.send("START")
	p.send("SAVE,ALL")
	p.expect("OK\r\n")
	assert.Equal(t, ModeCommand, sim.Mode())
}

func TestSimulator_Streaming(t *testing.T) {
	_, p := startSession(t, WithoutLogin(), WithStreaming(time.Millisecond))

	p.send("START")
	p.expect("OK\r\n")

	require.NoError(t, p.conn.SetReadDeadline(time.Now().Add(time.Second)))
	line, err := p.reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "$PNORBT7,"), line)
}

func TestSimulator_PowerDown(t *testing.T) {
	sim, p := startSession(t, WithoutLogin())

	p.send("POWERDOWN")
	p.expect("OK\r\n")

	select {
	case <-sim.Done():
	case <-time.After(time.Second):
		t.Fatal("session still open after power down")
	}
	assert.Equal(t, ModeOff, sim.Mode())
}

func TestSimulator_Hangup(t *testing.T) {
	sim, p := startSession(t, WithoutLogin())

	require.NoError(t, sim.Hangup())

	select {
	case <-sim.Done():
	case <-time.After(time.Second):
		t.Fatal("session still open after hangup")
	}

	// the peer sees the hangup as the end of the stream
	_, err := p.reader.ReadByte()
	require.ErrorIs(t, err, io.EOF)
}

func TestServer_Sessions(t *testing.T) {
	srv, err := Listen("127.0.0.1:0", WithoutLogin())
	require.NoError(t, err)
	defer srv.Close()

	assert.Nil(t, srv.Last())

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("MC\r\n"))
	require.NoError(t, err)

	reply := make([]byte, 4)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = io.ReadFull(conn, reply)
	require.NoError(t, err)
	assert.Equal(t, "OK\r\n", string(reply))

	require.Len(t, srv.Sessions(), 1)
	assert.Equal(t, []string{"MC"}, srv.Last().Commands())
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "login", ModeLogin.String())
	assert.Equal(t, "confirm", ModeConfirm.String())
	assert.Equal(t, "off", ModeOff.String())
	assert.Equal(t, "unknown", Mode(99).String())
}
