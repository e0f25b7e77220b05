package main

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/inconshreveable/log15"
)

// syntheticGuest stands in for VM execution control: stop and resume just
// flip a flag.
type syntheticGuest struct {
	mu      sync.Mutex
	running bool
}

func newSyntheticGuest() *syntheticGuest {
	return &syntheticGuest{}
}

func (g *syntheticGuest) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = false
	return nil
}

func (g *syntheticGuest) Resume() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.running = true
	return nil
}

// syntheticSnapshotter emits a deterministic state blob: an 8-byte cycle
// sequence number followed by pattern fill up to the configured size.
type syntheticSnapshotter struct {
	size int
	seq  uint64
}

func newSyntheticSnapshotter(size int) *syntheticSnapshotter {
	if size < 8 {
		size = 8
	}
	return &syntheticSnapshotter{size: size}
}

func (s *syntheticSnapshotter) Snapshot(sink io.Writer) error {
	s.seq++
	var header [8]byte
	binary.BigEndian.PutUint64(header[:], s.seq)
	if _, err := sink.Write(header[:]); err != nil {
		return err
	}
	fill := make([]byte, 32*1024)
	for i := range fill {
		fill[i] = byte(s.seq)
	}
	remaining := s.size - len(header)
	for remaining > 0 {
		n := len(fill)
		if remaining < n {
			n = remaining
		}
		if _, err := sink.Write(fill[:n]); err != nil {
			return err
		}
		remaining -= n
	}
	return nil
}

// discardLoader consumes incoming state, verifying the sequence header is
// monotonic so reordering or replay in the plumbing shows up.
type discardLoader struct {
	l       log15.Logger
	lastSeq uint64
}

func newDiscardLoader(l log15.Logger) *discardLoader {
	return &discardLoader{l: l}
}

func (d *discardLoader) Load(src io.Reader) error {
	var header [8]byte
	if _, err := io.ReadFull(src, header[:]); err != nil {
		return err
	}
	seq := binary.BigEndian.Uint64(header[:])
	if seq <= d.lastSeq {
		d.l.Warn("checkpoint sequence went backwards", "seq", seq, "last", d.lastSeq)
	}
	d.lastSeq = seq
	_, err := io.Copy(io.Discard, src)
	return err
}

type noopCache struct{}

func (noopCache) Init() error { return nil }
func (noopCache) Release()    {}
