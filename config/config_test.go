package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/arloliu/go-dvl/logger"
	"github.com/arloliu/go-dvl/nortek"
	"github.com/arloliu/go-dvl/supervisor"
	"github.com/arloliu/go-dvl/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "dvld.toml"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Listen)
	assert.Equal(t, logger.DebugLevel, cfg.LogLevel)
	assert.False(t, cfg.LogSource)
	assert.Equal(t, supervisor.Backoff{
		Initial:    250 * time.Millisecond,
		Multiplier: 1.5,
		Max:        10 * time.Second,
	}, cfg.Backoff)

	require.Len(t, cfg.Devices, 2)

	bow := cfg.Devices[0]
	assert.Equal(t, "bow", bow.Name)
	assert.Equal(t, "192.168.1.20:9000", bow.Address)
	assert.True(t, bow.Login)
	assert.Equal(t, nortek.DefaultCredential, bow.Credential)
	assert.InDelta(t, 0.0, bow.Salinity, 0)
	assert.InDelta(t, 4.0, bow.SamplingRate, 0)
	require.NotNil(t, bow.PowerLevel)
	assert.Equal(t, nortek.PowerMedium, *bow.PowerLevel)
	assert.Equal(t, 3*time.Second, bow.CommandTimeout)
	assert.Zero(t, bow.ModeChangeTimeout)

	stern := cfg.Devices[1]
	assert.Equal(t, "/dev/ttyUSB0", stern.Serial)
	assert.Equal(t, 9600, stern.BaudRate)
	assert.False(t, stern.Login)
	assert.True(t, stern.Trace)
	assert.InDelta(t, nortek.DefaultSalinity, stern.Salinity, 0)
	assert.Nil(t, stern.PowerLevel)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join("testdata", "missing.toml"))
	require.Error(t, err)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, DefaultListenAddr, cfg.Listen)
	assert.Equal(t, supervisor.DefaultBackoff, cfg.Backoff)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		msg  string
	}{
		{"syntax", `listen = `, "parse config"},
		{"unknown key", `listne = "x"`, "unknown config keys: listne"},
		{"unknown device key", "[[device]]\nname = \"a\"\naddress = \"h:1\"\nsalinty = 3", "device.salinty"},
		{"log level", `log_level = "loud"`, "log_level"},
		{"backoff duration", "[backoff]\ninitial = \"soon\"", "backoff.initial"},
		{"backoff multiplier", "[backoff]\nmultiplier = 0.5", "backoff.multiplier"},
		{"missing name", "[[device]]\naddress = \"h:1\"", "missing name"},
		{"no endpoint", "[[device]]\nname = \"a\"", "exactly one of address and serial"},
		{"two endpoints", "[[device]]\nname = \"a\"\naddress = \"h:1\"\nserial = \"/dev/x\"", "exactly one of address and serial"},
		{"salinity", "[[device]]\nname = \"a\"\naddress = \"h:1\"\nsalinity = 51.0", "salinity"},
		{"sampling rate", "[[device]]\nname = \"a\"\naddress = \"h:1\"\nsampling_rate = 0.5", "sampling_rate"},
		{"power level", "[[device]]\nname = \"a\"\naddress = \"h:1\"\npower_level = \"loud\"", "unknown power level"},
		{"baud rate", "[[device]]\nname = \"a\"\nserial = \"/dev/x\"\nbaud_rate = 0", "baud_rate"},
		{"zero timeout", "[[device]]\nname = \"a\"\naddress = \"h:1\"\ncommand_timeout = \"0s\"", "command_timeout"},
		{"duplicate", "[[device]]\nname = \"a\"\naddress = \"h:1\"\n[[device]]\nname = \"a\"\naddress = \"h:2\"", "duplicate name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestDevice_Spec(t *testing.T) {
	cfg, err := Parse(`
[[device]]
name = "tcp"
address = "10.0.0.1:9000"
connect_timeout = "2s"
power_level = "min"

[[device]]
name = "ser"
serial = "/dev/ttyS1"
login = true
`)
	require.NoError(t, err)
	require.Len(t, cfg.Devices, 2)

	spec := cfg.Devices[0].Spec()
	assert.Equal(t, "tcp", spec.Name)
	assert.Equal(t, "tcp://10.0.0.1:9000", spec.Dialer.String())
	assert.IsType(t, transport.TCPDialer{}, spec.Dialer)
	require.NotNil(t, spec.PowerLevel)
	assert.Equal(t, nortek.PowerMinimum, *spec.PowerLevel)

	engineCfg, err := nortek.NewConfig(spec.Options...)
	require.NoError(t, err)
	assert.True(t, engineCfg.LoginEnabled())

	spec = cfg.Devices[1].Spec()
	assert.Equal(t, "serial:///dev/ttyS1", spec.Dialer.String())
	engineCfg, err = nortek.NewConfig(spec.Options...)
	require.NoError(t, err)
	assert.True(t, engineCfg.LoginEnabled())

	// the device spec is accepted by the supervisor as is
	s, err := supervisor.New(supervisor.WithLogger(logger.NewSlog(logger.ErrorLevel, false)))
	require.NoError(t, err)
	require.NoError(t, s.Add(cfg.Devices[0].Spec()))
	require.NoError(t, s.Add(cfg.Devices[1].Spec()))
}
