// Command dvlsim serves an emulated DVL console on a TCP port, for bench
// testing dvld without an instrument.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arloliu/go-dvl/internal/simulator"
	"github.com/arloliu/go-dvl/logger"
)

func main() {
	addr := flag.String("listen", "127.0.0.1:9000", "listen address")
	noLogin := flag.Bool("no-login", false, "skip the login exchange, like a serial console")
	credential := flag.String("credential", "nortek", "accepted username and password")
	measuring := flag.Bool("measuring", true, "start in measurement mode after login")
	stream := flag.Duration("stream", 200*time.Millisecond, "measurement output interval, 0 disables")
	breakAck := flag.Bool("break-ack", false, "acknowledge breaks with OK")
	fail := flag.String("fail", "", "answer commands with this prefix with ERROR")
	silent := flag.String("silent", "", "never answer commands with this prefix")
	flag.Parse()

	os.Setenv("ENV", "development")
	log := logger.NewSlog(logger.TraceLevel, false)

	opts := []simulator.Option{
		simulator.WithLogger(log),
		simulator.WithCredential(*credential),
	}
	if *noLogin {
		opts = append(opts, simulator.WithoutLogin())
	}
	if *measuring {
		opts = append(opts, simulator.WithInitialMode(simulator.ModeMeasurement))
	}
	if *stream > 0 {
		opts = append(opts, simulator.WithStreaming(*stream))
	}
	if *breakAck {
		opts = append(opts, simulator.WithBreakAck())
	}
	if *fail != "" {
		opts = append(opts, simulator.WithFailingCommand(*fail))
	}
	if *silent != "" {
		opts = append(opts, simulator.WithSilentCommand(*silent))
	}

	srv, err := simulator.Listen(*addr, opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "dvlsim:", err)
		os.Exit(1)
	}

	log.Info("simulator listening", "addr", srv.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	_ = srv.Close()
	log.Info("simulator stopped", "sessions", len(srv.Sessions()))
}
