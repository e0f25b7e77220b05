package proto

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bufConn is an in-memory Conn backed by a single buffer; writes become
// readable in order, which is all the lock-step codec needs in tests.
type bufConn struct {
	buf     bytes.Buffer
	flushes int
}

func (c *bufConn) Read(p []byte) (int, error)  { return c.buf.Read(p) }
func (c *bufConn) Write(p []byte) (int, error) { return c.buf.Write(p) }
func (c *bufConn) Flush() error {
	c.flushes++
	return nil
}

// errConn fails every operation with the given error.
type errConn struct {
	err error
}

func (c *errConn) Read(p []byte) (int, error)  { return 0, c.err }
func (c *errConn) Write(p []byte) (int, error) { return 0, c.err }
func (c *errConn) Flush() error                { return c.err }

func allCommands() []Command {
	cmds := make([]Command, 0, int(maxCommand))
	for c := Command(0); c < maxCommand; c++ {
		cmds = append(cmds, c)
	}
	return cmds
}

func TestCommandRoundTrip(t *testing.T) {
	for _, cmd := range allCommands() {
		conn := &bufConn{}
		require.NoError(t, WriteCommand(conn, cmd))
		require.Equal(t, 1, conn.flushes, "every command write must flush")

		got, err := ReadCommand(conn)
		require.NoError(t, err)
		assert.Equal(t, cmd, got)
	}
}

func TestCommandValueRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 1024, 1<<32 - 1, 1 << 33, 1<<64 - 1}
	for _, value := range values {
		conn := &bufConn{}
		require.NoError(t, WriteCommandValue(conn, VMStateSize, value))

		got, err := ReadCommand(conn)
		require.NoError(t, err)
		assert.Equal(t, VMStateSize, got)

		v, err := ReadValue(conn)
		require.NoError(t, err)
		assert.Equal(t, value, v)
	}
}

func TestWriteCommandRangeRejection(t *testing.T) {
	conn := &bufConn{}
	err := WriteCommand(conn, maxCommand)
	var invalid *InvalidCommandError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, uint32(maxCommand), invalid.Ordinal)
	// Rejection happens before any I/O.
	assert.Zero(t, conn.buf.Len())
	assert.Zero(t, conn.flushes)
}

func TestWriteCommandValueSkipsValueOnFailure(t *testing.T) {
	conn := &bufConn{}
	err := WriteCommandValue(conn, maxCommand+7, 42)
	var invalid *InvalidCommandError
	require.True(t, errors.As(err, &invalid))
	assert.Zero(t, conn.buf.Len(), "value must not be written after a failed command write")
}

func TestReadCommandRangeRejection(t *testing.T) {
	conn := &bufConn{}
	conn.buf.Write([]byte{0x00, 0x00, 0x00, 0xff})

	got, err := ReadCommand(conn)
	var invalid *InvalidCommandError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, uint32(0xff), invalid.Ordinal)
	// The raw ordinal comes back for logging only.
	assert.Equal(t, Command(0xff), got)
	assert.False(t, got.Valid())
}

func TestReadExpectedMismatch(t *testing.T) {
	conn := &bufConn{}
	require.NoError(t, WriteCommand(conn, CheckpointReply))

	err := ReadExpected(conn, VMStateReceived)
	var mismatch *MismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, VMStateReceived, mismatch.Expected)
	assert.Equal(t, CheckpointReply, mismatch.Got)
}

func TestTransportErrorsPropagate(t *testing.T) {
	cause := errors.New("broken wire")
	conn := &errConn{err: cause}

	err := WriteCommand(conn, CheckpointRequest)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	_, err = ReadCommand(conn)
	require.Error(t, err)

	_, err = ReadValue(conn)
	require.Error(t, err)
}

func TestReadCommandShortRead(t *testing.T) {
	conn := &bufConn{}
	conn.buf.Write([]byte{0x00, 0x01})

	_, err := ReadCommand(conn)
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "checkpoint-request", CheckpointRequest.String())
	assert.Equal(t, "vmstate-size", VMStateSize.String())
	assert.Equal(t, "invalid-command(99)", Command(99).String())
}
