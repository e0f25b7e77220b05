package colo

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

type mockGuest struct {
	mu        sync.Mutex
	calls     []string
	stopped   bool
	stopErr   error
	resumeErr error
}

func (g *mockGuest) Stop() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopErr != nil {
		return g.stopErr
	}
	g.calls = append(g.calls, "stop")
	g.stopped = true
	return nil
}

func (g *mockGuest) Resume() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resumeErr != nil {
		return g.resumeErr
	}
	g.calls = append(g.calls, "resume")
	g.stopped = false
	return nil
}

func (g *mockGuest) callCount(name string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (g *mockGuest) callOrder() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *mockGuest) isStopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopped
}

// mockSnapshotter writes a fixed blob and remembers how long the sink was
// when snapshotting started, so tests can assert the staging buffer is
// truncated at the top of every transaction.
type mockSnapshotter struct {
	mu        sync.Mutex
	blob      []byte
	err       error
	snapshots int
	sinkLens  []int
}

func (s *mockSnapshotter) Snapshot(sink io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if buf, ok := sink.(*stagingBuffer); ok {
		s.sinkLens = append(s.sinkLens, buf.Len())
	}
	if s.err != nil {
		return s.err
	}
	s.snapshots++
	_, err := sink.Write(s.blob)
	return err
}

type mockLoader struct {
	mu    sync.Mutex
	blobs [][]byte
	err   error
	// loadedC gets one send per successful load, if set.
	loadedC chan struct{}
}

func (l *mockLoader) Load(src io.Reader) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	l.mu.Lock()
	if l.err != nil {
		l.mu.Unlock()
		return l.err
	}
	l.blobs = append(l.blobs, data)
	c := l.loadedC
	l.mu.Unlock()
	if c != nil {
		c <- struct{}{}
	}
	return nil
}

func (l *mockLoader) loaded() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]byte(nil), l.blobs...)
}

type mockCache struct {
	mu       sync.Mutex
	inits    int
	releases int
	initErr  error
}

func (c *mockCache) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initErr != nil {
		return c.initErr
	}
	c.inits++
	return nil
}

func (c *mockCache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releases++
}

func (c *mockCache) counts() (inits, releases int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inits, c.releases
}

// countingLocker tracks how often the guest execution lock is taken.
type countingLocker struct {
	mu      sync.Mutex
	locks   int
	unlocks int
}

func (l *countingLocker) Lock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locks++
}

func (l *countingLocker) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.unlocks++
}

func (l *countingLocker) counts() (locks, unlocks int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locks, l.unlocks
}

var errMock = errors.New("mock failure")
