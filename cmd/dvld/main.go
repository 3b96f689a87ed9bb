// Command dvld keeps the configured DVL instruments configured and
// measuring, and serves their status and reconfiguration over HTTP.
//
// Usage:
//
//	dvld -config /etc/dvld.toml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arloliu/go-dvl/config"
	"github.com/arloliu/go-dvl/httpapi"
	"github.com/arloliu/go-dvl/logger"
	"github.com/arloliu/go-dvl/supervisor"
	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "dvld:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("dvld", flag.ContinueOnError)
	configPath := flags.String("config", "", "path of the TOML configuration file")
	listen := flags.String("listen", "", "HTTP listen address, overrides the configuration")
	logLevel := flags.String("log-level", "", "log level, overrides the configuration")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *logLevel != "" {
		level, ok := logger.ParseLevel(*logLevel)
		if !ok {
			return fmt.Errorf("unknown log level %q", *logLevel)
		}
		cfg.LogLevel = level
	}

	log := logger.NewSlog(cfg.LogLevel, cfg.LogSource)
	logger.SetLogger(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sup, err := supervisor.New(
		supervisor.WithLogger(log),
		supervisor.WithRegistry(reg),
		supervisor.WithBackoff(cfg.Backoff),
		supervisor.WithStateChangeHandler(func(name string, prev, cur supervisor.DeviceState) {
			log.Info("device state changed", "device", name, "prevState", prev, "state", cur)
		}),
	)
	if err != nil {
		return err
	}

	for _, dev := range cfg.Devices {
		if err := sup.Add(dev.Spec()); err != nil {
			return err
		}
	}
	if len(cfg.Devices) == 0 {
		log.Warn("no devices configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           httpapi.NewRouter(sup, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	httpErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
		close(httpErr)
	}()

	supDone := make(chan struct{})
	go func() {
		defer close(supDone)
		_ = sup.Run(ctx)
	}()

	notify(log, daemon.SdNotifyReady)

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-httpErr:
		if err != nil {
			log.Error("http server failed", "error", err)
			runErr = fmt.Errorf("http server: %w", err)
		}
		stop()
	}

	notify(log, daemon.SdNotifyStopping)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown", "error", err)
	}

	// engines power the devices down before the loops exit
	<-supDone

	return runErr
}

// notify sends a systemd state notification. Outside systemd it is a no-op.
func notify(log logger.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("systemd notification failed", "state", state, "error", err)
		return
	}
	if sent {
		log.Debug("systemd notified", "state", state)
	}
}
