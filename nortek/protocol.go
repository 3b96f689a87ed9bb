package nortek

// Wire literals of the instrument's console protocol.
const (
	lineTerminator = "\r\n"

	replyOK        = "OK\r\n"
	promptUsername = "Username: "
	promptPassword = "Password: "
	bannerLogin    = "Command Interface\r\r\n"

	// DefaultCredential is the factory username and password of the console.
	DefaultCredential = "nortek"

	// breakSequence wakes the device and interrupts a running measurement.
	breakSequence = "K1W%!Q"
)

// Console commands.
const (
	cmdModeChange = "MC"
	cmdStart      = "START"
	cmdSetDefault = "SETDEFAULT,ALL"
	cmdLEDOff     = `SETINST,LED="OFF"`
	cmdSave       = "SAVE,ALL"
	cmdGetError   = "GETERROR"
	cmdPowerDown  = "POWERDOWN"
	fmtSetClock   = "SETCLOCK,YEAR=%d,MONTH=%d,DAY=%d,HOUR=%d,MINUTE=%d,SECOND=%d"
	fmtSetDVL     = "SETDVL,SR=%f,SA=%f"
	fmtSetBTPower = "SETBT,PL=%f"
)
