package nortek

import (
	"errors"
	"testing"
	"time"

	"github.com/arloliu/go-dvl/internal/simulator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var setupTime = fixedClock(time.Date(2024, time.March, 5, 6, 7, 8, 0, time.UTC))

var fullSetupCommands = []string{
	"MC",
	"SETDEFAULT,ALL",
	`SETINST,LED="OFF"`,
	"SETCLOCK,YEAR=2024,MONTH=3,DAY=5,HOUR=6,MINUTE=7,SECOND=8",
	"SETDVL,SR=5.000000,SA=35.000000",
	"SAVE,ALL",
	"START",
}

func TestSetupSteps(t *testing.T) {
	assert.Equal(t, []string{
		"login",
		"enter command mode",
		"reset to defaults",
		"disable indicator",
		"set clock",
		"set parameters",
		"save configuration",
		"start",
	}, SetupSteps())
}

func TestSetup_FullSequence(t *testing.T) {
	e, sim := newSimEngine(t, nil, WithClock(setupTime))

	require.NoError(t, e.Setup())
	assert.Equal(t, fullSetupCommands, sim.Commands())
	assert.Equal(t, MeasurementMode, e.State())
	assert.Equal(t, simulator.ModeMeasurement, sim.Mode())

	snap := e.Metrics().Snapshot()
	assert.Equal(t, uint64(1), snap.SetupCount)
	assert.Zero(t, snap.SetupFailCount)
}

func TestSetup_FromStreamingDevice(t *testing.T) {
	e, sim := newSimEngine(t, []simulator.Option{
		simulator.WithInitialMode(simulator.ModeMeasurement),
		simulator.WithStreaming(5 * time.Millisecond),
	}, WithClock(setupTime))

	require.NoError(t, e.Setup())
	assert.Equal(t, fullSetupCommands, sim.Commands())

	// configuration commands only ever reach a device in command mode
	records := sim.Records()
	require.NotEmpty(t, records)
	assert.Equal(t, "K1W%!Q", records[0].Line)
	assert.Equal(t, simulator.ModeMeasurement, records[0].Mode)
	for _, r := range records[1:] {
		if r.Line == "K1W%!Q" || r.Line == "MC" {
			continue
		}
		assert.Equal(t, simulator.ModeCommand, r.Mode, r.Line)
	}
}

func TestSetup_Parameters(t *testing.T) {
	e, sim := newSimEngine(t, nil, WithClock(setupTime))
	e.SetSamplingRate(2)
	e.SetSalinity(0)
	e.SetSalinity(60)

	require.NoError(t, e.Setup())
	assert.Contains(t, sim.Commands(), "SETDVL,SR=2.000000,SA=0.000000")
}

func TestSetup_ClockUsesUTC(t *testing.T) {
	local := time.FixedZone("UTC+2", 2*60*60)
	clock := fixedClock(time.Date(2024, time.March, 5, 1, 30, 0, 0, local))
	e, sim := newSimEngine(t, nil, WithClock(clock))

	require.NoError(t, e.Setup())
	assert.Contains(t, sim.Commands(), "SETCLOCK,YEAR=2024,MONTH=3,DAY=4,HOUR=23,MINUTE=30,SECOND=0")
}

func TestSetup_AbortsAtFailedStep(t *testing.T) {
	tests := []struct {
		silent   string
		step     int
		name     string
		lastSent string
	}{
		{"MC", 2, "enter command mode", "MC"},
		{"SETDEFAULT", 3, "reset to defaults", "SETDEFAULT,ALL"},
		{"SETINST", 4, "disable indicator", `SETINST,LED="OFF"`},
		{"SETCLOCK", 5, "set clock", fullSetupCommands[3]},
		{"SETDVL", 6, "set parameters", fullSetupCommands[4]},
		{"SAVE", 7, "save configuration", "GETERROR"},
		{"START", 8, "start", "START"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, sim := newSimEngine(t,
				[]simulator.Option{simulator.WithSilentCommand(tt.silent)},
				WithClock(setupTime),
				WithCommandTimeout(100*time.Millisecond),
				WithModeChangeTimeout(100*time.Millisecond))

			err := e.Setup()
			require.ErrorIs(t, err, ErrSequenceAborted)
			require.ErrorIs(t, err, ErrTransportTimeout)

			var setupErr *SetupError
			require.True(t, errors.As(err, &setupErr))
			assert.Equal(t, tt.step, setupErr.Step)
			assert.Equal(t, tt.name, setupErr.Name)

			cmds := sim.Commands()
			require.NotEmpty(t, cmds)
			assert.Equal(t, tt.lastSent, cmds[len(cmds)-1])
			assert.Equal(t, uint64(1), e.Metrics().SetupFailCount.Load())
		})
	}
}

func TestSetup_SaveFailureQueriesError(t *testing.T) {
	e, sim := newSimEngine(t,
		[]simulator.Option{simulator.WithFailingCommand("SAVE")},
		WithClock(setupTime),
		WithCommandTimeout(100*time.Millisecond))

	err := e.Setup()
	require.ErrorIs(t, err, ErrUnexpectedReply)

	cmds := sim.Commands()
	assert.Equal(t, []string{"SAVE,ALL", "GETERROR"}, cmds[len(cmds)-2:])
	assert.NotContains(t, cmds, "START")
	assert.Equal(t, CommandMode, e.State())
}

func TestSetup_LoginFailure(t *testing.T) {
	e, sim := newSimEngine(t,
		[]simulator.Option{simulator.WithBanner("Goodbye\r\n")},
		WithLoginTimeouts(100*time.Millisecond, 100*time.Millisecond))

	err := e.Setup()
	var setupErr *SetupError
	require.True(t, errors.As(err, &setupErr))
	assert.Equal(t, 1, setupErr.Step)
	assert.Equal(t, Disconnected, e.State())
	assert.Empty(t, sim.Commands())
}

func TestSetup_LoginDisabled(t *testing.T) {
	e, sim := newSimEngine(t,
		[]simulator.Option{simulator.WithoutLogin()},
		WithLoginDisabled(),
		WithClock(setupTime))

	require.NoError(t, e.Setup())
	assert.Equal(t, fullSetupCommands, sim.Commands())
	assert.False(t, e.Config().LoginEnabled())
}

func TestSetup_Rerun(t *testing.T) {
	e, sim := newSimEngine(t,
		[]simulator.Option{simulator.WithoutLogin()},
		WithLoginDisabled(),
		WithClock(setupTime))

	require.NoError(t, e.Setup())
	require.NoError(t, e.Setup())
	assert.Equal(t, append(append([]string{}, fullSetupCommands...), fullSetupCommands...), sim.Commands())
	assert.Equal(t, uint64(2), e.Metrics().SetupCount.Load())
}

func TestClose_PowersDown(t *testing.T) {
	e, sim := newSimEngine(t, nil, WithClock(setupTime))
	require.NoError(t, e.Setup())

	require.NoError(t, e.Close())

	select {
	case <-sim.Done():
	case <-time.After(time.Second):
		t.Fatal("simulator still running after close")
	}
	cmds := sim.Commands()
	assert.Equal(t, []string{"MC", "POWERDOWN"}, cmds[len(cmds)-2:])
	assert.Equal(t, simulator.ModeOff, sim.Mode())
}
