package proto

import "fmt"

// InvalidCommandError reports a command ordinal outside the defined range,
// either about to be sent or decoded off the wire. The offending ordinal is
// kept for logging; it must never be treated as a usable Command.
type InvalidCommandError struct {
	Ordinal uint32
}

func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("invalid command ordinal %d (max %d)", e.Ordinal, uint32(maxCommand)-1)
}

// MismatchError reports a decoded command that differs from the one the
// protocol requires at this point in the exchange.
type MismatchError struct {
	Expected Command
	Got      Command
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("unexpected command %s, expected %s", e.Got, e.Expected)
}
