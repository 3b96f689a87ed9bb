// Package nortek implements the command/reply protocol engine for Nortek
// DVL instruments.
//
// The instrument exposes a line oriented ASCII console. Every command is
// terminated by CR LF and a successful command is acknowledged with the
// literal "OK\r\n". The device has two operating modes:
//
//   - Measurement mode: the device streams sampled data and ignores
//     configuration commands.
//   - Command mode: the device accepts configuration commands.
//
// Leaving measurement mode requires a break sequence ("K1W%!Q") followed,
// after a short settling delay, by the "MC" mode-change command. On the
// Ethernet console a username/password login precedes everything else.
//
// # Engine
//
// An [Engine] is bound to one connected [transport.Transport]. The owning
// scheduler calls [Engine.Setup] once, which logs in, enters command mode,
// resets the instrument to factory defaults, disables the LED, synchronizes
// the clock, applies the sampling rate and salinity, saves the
// configuration and starts measuring. Afterwards targeted reconfiguration
// such as [Engine.SetPowerLevel] may be issued; each configuration command
// transparently forces command mode first, so configuration is never sent
// while the device is streaming.
//
// # Timing
//
// All I/O is synchronous and bounded. Each exchange waits for its reply
// terminator for at most its timeout, and the only sleeps are the fixed
// settling delays the instrument requires after login and after a break.
// Nothing runs in the background.
//
// An Engine is NOT goroutine-safe. It must be driven by a single caller,
// one operation at a time; see package supervisor for a concurrent owner.
package nortek
