package colo

import (
	"bufio"
	"net"
	"sync"
)

// Channel is one endpoint of the reliable, ordered duplex byte stream the
// protocol runs over. How the stream achieves reliability (and any timeout
// behavior) belongs to the transport, not to this package; mid-stream I/O
// errors simply surface from Read, Write, or Flush.
type Channel interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	// Flush forces any buffered writes onto the wire. The protocol flushes
	// after every command, so implementations may buffer freely.
	Flush() error
	Close() error
}

// Conn is the outbound channel handle a phase starts from. The inbound
// ("return path") handle is derived from it once, at phase entry; each side
// then owns both handles and closes both exactly once at phase exit.
type Conn interface {
	Channel
	ReturnPath() (Channel, error)
}

// netChannel adapts a stream connection to the Conn contract with a buffered
// writer. The return path shares the connection and the close guard, so
// closing both handles still closes the underlying connection once.
type netChannel struct {
	conn net.Conn
	bw   *bufio.Writer

	closeOnce *sync.Once
	closeErr  *error
}

// NewNetConn wraps a stream connection (typically TCP) as a protocol channel.
func NewNetConn(conn net.Conn) Conn {
	return &netChannel{
		conn:      conn,
		bw:        bufio.NewWriter(conn),
		closeOnce: &sync.Once{},
		closeErr:  new(error),
	}
}

func (c *netChannel) Read(p []byte) (int, error) {
	return c.conn.Read(p)
}

func (c *netChannel) Write(p []byte) (int, error) {
	return c.bw.Write(p)
}

func (c *netChannel) Flush() error {
	return c.bw.Flush()
}

func (c *netChannel) Close() error {
	c.closeOnce.Do(func() {
		*c.closeErr = c.conn.Close()
	})
	return *c.closeErr
}

func (c *netChannel) ReturnPath() (Channel, error) {
	return &netChannel{
		conn:      c.conn,
		bw:        c.bw,
		closeOnce: c.closeOnce,
		closeErr:  c.closeErr,
	}, nil
}
