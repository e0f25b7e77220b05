package colo

import (
	"net"
	"testing"
	"time"

	"github.com/inconshreveable/log15"
)

func testLogger() log15.Logger {
	l := log15.New()
	l.SetHandler(log15.DiscardHandler())
	return l
}

// newChannelPair returns two connected channel handles, one per side, over a
// synchronous in-memory stream.
func newChannelPair() (Conn, Conn) {
	a, b := net.Pipe()
	return NewNetConn(a), NewNetConn(b)
}

func waitSignal(t *testing.T, c <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-c:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func waitClosed(t *testing.T, c <-chan struct{}, what string) {
	t.Helper()
	waitSignal(t, c, what)
}

func waitErr(t *testing.T, c <-chan error, what string) error {
	t.Helper()
	select {
	case err := <-c:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}
