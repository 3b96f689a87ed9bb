// Package config loads the daemon configuration from a TOML file.
//
// Every key is optional except the device name and its endpoint; keys that
// are not defined keep their defaults. Unknown keys are rejected so a typo
// does not silently fall back to a default.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/arloliu/go-dvl/logger"
	"github.com/arloliu/go-dvl/nortek"
	"github.com/arloliu/go-dvl/supervisor"
	"github.com/arloliu/go-dvl/transport"
)

// DefaultListenAddr is the default HTTP listen address of the daemon.
const DefaultListenAddr = "127.0.0.1:8080"

// Config is the daemon configuration.
type Config struct {
	Listen    string
	LogLevel  logger.Level
	LogSource bool
	Backoff   supervisor.Backoff
	Devices   []Device
}

// Device is the configuration of one instrument. Exactly one of Address
// and Serial is set.
type Device struct {
	Name         string
	Address      string
	Serial       string
	BaudRate     int
	Login        bool
	Credential   string
	Salinity     float64
	SamplingRate float64
	PowerLevel   *nortek.PowerLevel
	Trace        bool

	ConnectTimeout    time.Duration
	CommandTimeout    time.Duration
	ModeChangeTimeout time.Duration
}

// Default returns the configuration used for undefined keys.
func Default() Config {
	return Config{
		Listen:   DefaultListenAddr,
		LogLevel: logger.InfoLevel,
		Backoff:  supervisor.DefaultBackoff,
	}
}

type fileConfig struct {
	Listen    string       `toml:"listen"`
	LogLevel  string       `toml:"log_level"`
	LogSource bool         `toml:"log_source"`
	Backoff   fileBackoff  `toml:"backoff"`
	Devices   []fileDevice `toml:"device"`
}

type fileBackoff struct {
	Initial    string  `toml:"initial"`
	Multiplier float64 `toml:"multiplier"`
	Max        string  `toml:"max"`
	Jitter     bool    `toml:"jitter"`
}

type fileDevice struct {
	Name              string   `toml:"name"`
	Address           string   `toml:"address"`
	Serial            string   `toml:"serial"`
	BaudRate          *int     `toml:"baud_rate"`
	Login             *bool    `toml:"login"`
	Credential        *string  `toml:"credential"`
	Salinity          *float64 `toml:"salinity"`
	SamplingRate      *float64 `toml:"sampling_rate"`
	PowerLevel        *string  `toml:"power_level"`
	Trace             bool     `toml:"trace"`
	ConnectTimeout    *string  `toml:"connect_timeout"`
	CommandTimeout    *string  `toml:"command_timeout"`
	ModeChangeTimeout *string  `toml:"mode_change_timeout"`
}

// Load reads the configuration file at path.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	return build(raw, meta)
}

// Parse reads a configuration from TOML text.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	return build(raw, meta)
}

func build(raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}

		return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	cfg := Default()

	if meta.IsDefined("listen") {
		cfg.Listen = strings.TrimSpace(raw.Listen)
	}

	if meta.IsDefined("log_level") {
		level, ok := logger.ParseLevel(raw.LogLevel)
		if !ok {
			return Config{}, fmt.Errorf("parse log_level: unknown level %q", raw.LogLevel)
		}
		cfg.LogLevel = level
	}

	if meta.IsDefined("log_source") {
		cfg.LogSource = raw.LogSource
	}

	if err := buildBackoff(&cfg.Backoff, raw.Backoff, meta); err != nil {
		return Config{}, err
	}

	names := make(map[string]bool, len(raw.Devices))
	for i, rd := range raw.Devices {
		dev, err := buildDevice(rd)
		if err != nil {
			return Config{}, fmt.Errorf("device[%d]: %w", i, err)
		}
		if names[dev.Name] {
			return Config{}, fmt.Errorf("device[%d]: duplicate name %q", i, dev.Name)
		}
		names[dev.Name] = true
		cfg.Devices = append(cfg.Devices, dev)
	}

	return cfg, nil
}

func buildBackoff(b *supervisor.Backoff, raw fileBackoff, meta toml.MetaData) error {
	if meta.IsDefined("backoff", "initial") {
		d, err := parseDuration("backoff.initial", raw.Initial)
		if err != nil {
			return err
		}
		b.Initial = d
	}

	if meta.IsDefined("backoff", "multiplier") {
		if raw.Multiplier < 1 {
			return fmt.Errorf("backoff.multiplier must be at least 1, got %v", raw.Multiplier)
		}
		b.Multiplier = raw.Multiplier
	}

	if meta.IsDefined("backoff", "max") {
		d, err := parseDuration("backoff.max", raw.Max)
		if err != nil {
			return err
		}
		b.Max = d
	}

	if meta.IsDefined("backoff", "jitter") {
		b.Jitter = raw.Jitter
	}

	return nil
}

func buildDevice(raw fileDevice) (Device, error) {
	dev := Device{
		Name:         strings.TrimSpace(raw.Name),
		Address:      strings.TrimSpace(raw.Address),
		Serial:       strings.TrimSpace(raw.Serial),
		BaudRate:     transport.DefaultBaudRate,
		Credential:   nortek.DefaultCredential,
		Salinity:     nortek.DefaultSalinity,
		SamplingRate: nortek.DefaultSamplingRate,
		Trace:        raw.Trace,
	}

	if dev.Name == "" {
		return Device{}, errors.New("missing name")
	}
	if (dev.Address == "") == (dev.Serial == "") {
		return Device{}, fmt.Errorf("%q: exactly one of address and serial must be set", dev.Name)
	}

	// serial consoles have no login
	dev.Login = dev.Address != ""
	if raw.Login != nil {
		dev.Login = *raw.Login
	}

	if raw.BaudRate != nil {
		if *raw.BaudRate <= 0 {
			return Device{}, fmt.Errorf("%q: invalid baud_rate %d", dev.Name, *raw.BaudRate)
		}
		dev.BaudRate = *raw.BaudRate
	}

	if raw.Credential != nil {
		dev.Credential = *raw.Credential
	}

	if raw.Salinity != nil {
		v := *raw.Salinity
		if v < nortek.MinSalinity || v > nortek.MaxSalinity {
			return Device{}, fmt.Errorf("%q: salinity %v out of range [%v, %v]",
				dev.Name, v, nortek.MinSalinity, nortek.MaxSalinity)
		}
		dev.Salinity = v
	}

	if raw.SamplingRate != nil {
		v := *raw.SamplingRate
		if v < nortek.MinSamplingRate || v > nortek.MaxSamplingRate {
			return Device{}, fmt.Errorf("%q: sampling_rate %v out of range [%v, %v]",
				dev.Name, v, nortek.MinSamplingRate, nortek.MaxSamplingRate)
		}
		dev.SamplingRate = v
	}

	if raw.PowerLevel != nil {
		level, err := nortek.ParsePowerLevel(*raw.PowerLevel)
		if err != nil {
			return Device{}, fmt.Errorf("%q: %w", dev.Name, err)
		}
		dev.PowerLevel = &level
	}

	var err error
	if dev.ConnectTimeout, err = optionalDuration("connect_timeout", raw.ConnectTimeout); err != nil {
		return Device{}, fmt.Errorf("%q: %w", dev.Name, err)
	}
	if dev.CommandTimeout, err = optionalDuration("command_timeout", raw.CommandTimeout); err != nil {
		return Device{}, fmt.Errorf("%q: %w", dev.Name, err)
	}
	if dev.ModeChangeTimeout, err = optionalDuration("mode_change_timeout", raw.ModeChangeTimeout); err != nil {
		return Device{}, fmt.Errorf("%q: %w", dev.Name, err)
	}

	return dev, nil
}

func parseDuration(key, value string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("parse %s: negative duration %v", key, d)
	}

	return d, nil
}

func optionalDuration(key string, value *string) (time.Duration, error) {
	if value == nil {
		return 0, nil
	}

	d, err := parseDuration(key, *value)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return 0, fmt.Errorf("parse %s: must be positive", key)
	}

	return d, nil
}

// Spec converts the device configuration into a supervisor device spec.
func (d Device) Spec() supervisor.DeviceSpec {
	var tropts []transport.Option
	if d.ConnectTimeout > 0 {
		tropts = append(tropts, transport.WithConnectTimeout(d.ConnectTimeout))
	}

	var dialer transport.Dialer
	if d.Serial != "" {
		tropts = append(tropts, transport.WithBaudRate(d.BaudRate))
		dialer = transport.SerialDialer{PortName: d.Serial, Options: tropts}
	} else {
		dialer = transport.TCPDialer{Address: d.Address, Options: tropts}
	}

	opts := []nortek.Option{nortek.WithCredential(d.Credential)}
	if !d.Login {
		opts = append(opts, nortek.WithLoginDisabled())
	}
	if d.CommandTimeout > 0 {
		opts = append(opts, nortek.WithCommandTimeout(d.CommandTimeout))
	}
	if d.ModeChangeTimeout > 0 {
		opts = append(opts, nortek.WithModeChangeTimeout(d.ModeChangeTimeout))
	}
	if d.Trace {
		opts = append(opts, nortek.WithTraceAll())
	}

	spec := supervisor.DeviceSpec{
		Name:         d.Name,
		Dialer:       dialer,
		Options:      opts,
		Salinity:     d.Salinity,
		SamplingRate: d.SamplingRate,
	}
	if d.PowerLevel != nil {
		level := *d.PowerLevel
		spec.PowerLevel = &level
	}

	return spec
}
