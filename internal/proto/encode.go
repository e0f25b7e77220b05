package proto

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Conn is the slice of a channel handle the codec needs: an ordered,
// reliable byte stream whose buffered writes can be forced onto the wire.
type Conn interface {
	io.Reader
	io.Writer
	Flush() error
}

// WriteCommand writes one command word and flushes it. An out-of-range
// command is rejected before any byte reaches the channel.
func WriteCommand(c Conn, cmd Command) error {
	if !cmd.Valid() {
		return &InvalidCommandError{Ordinal: uint32(cmd)}
	}
	if err := binary.Write(c, binary.BigEndian, uint32(cmd)); err != nil {
		return errors.Wrapf(err, "can't write command %s", cmd)
	}
	if err := c.Flush(); err != nil {
		return errors.Wrapf(err, "can't flush command %s", cmd)
	}
	return nil
}

// WriteCommandValue writes a command word followed by its 8-byte value. If
// the command write fails the value is never written.
func WriteCommandValue(c Conn, cmd Command, value uint64) error {
	if err := WriteCommand(c, cmd); err != nil {
		return err
	}
	if err := binary.Write(c, binary.BigEndian, value); err != nil {
		return errors.Wrapf(err, "can't write value for command %s", cmd)
	}
	if err := c.Flush(); err != nil {
		return errors.Wrapf(err, "can't flush value for command %s", cmd)
	}
	return nil
}

// ReadCommand reads one command word. On an out-of-range ordinal the raw
// value is returned alongside the error so the caller can log it, but it is
// not a valid Command and must not be acted on.
func ReadCommand(c Conn) (Command, error) {
	var ordinal uint32
	if err := binary.Read(c, binary.BigEndian, &ordinal); err != nil {
		return 0, errors.Wrap(err, "can't read command")
	}
	cmd := Command(ordinal)
	if !cmd.Valid() {
		return cmd, &InvalidCommandError{Ordinal: ordinal}
	}
	return cmd, nil
}

// ReadValue reads the 8-byte value trailing a command such as VMStateSize.
func ReadValue(c Conn) (uint64, error) {
	var value uint64
	if err := binary.Read(c, binary.BigEndian, &value); err != nil {
		return 0, errors.Wrap(err, "can't read command value")
	}
	return value, nil
}

// ReadExpected reads one command and requires it to be exactly want.
func ReadExpected(c Conn, want Command) error {
	got, err := ReadCommand(c)
	if err != nil {
		return err
	}
	if got != want {
		return &MismatchError{Expected: want, Got: got}
	}
	return nil
}
