package colo

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/vmftkit/colo/internal/proto"
)

// Secondary drives the incoming side of a checkpoint phase. Its responder
// loop runs on its own unit of execution for the whole phase: it announces
// readiness, then answers every checkpoint request, applies the shipped
// state to the local guest, and acknowledges receipt and load.
//
// A Secondary runs exactly one phase; Run blocks until the responder has
// exited and torn down its replication cache, staging buffer, and both
// channel handles.
type Secondary struct {
	l              log15.Logger
	bufferCapacity int
	maxStateSize   uint64
	metrics        *Metrics

	conn   Conn
	loader StateLoader
	cache  ReplicationCache

	stateLock sync.Mutex
	phase     Phase

	finishOnce sync.Once
	finishC    chan struct{}
	doneC      chan struct{}
}

// NewSecondary builds the secondary side of a checkpoint phase over the
// channel carrying the primary's commands. loader applies incoming state to
// the local guest; cache is the replication cache backing that application.
func NewSecondary(conn Conn, loader StateLoader, cache ReplicationCache, opts ...Option) *Secondary {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Secondary{
		l:              o.logger.New("role", "secondary", "phase", uuid.New().String()),
		bufferCapacity: o.bufferCapacity,
		maxStateSize:   o.maxStateSize,
		metrics:        o.metrics,
		conn:           conn,
		loader:         loader,
		cache:          cache,
		phase:          PhaseNormal,
		finishC:        make(chan struct{}),
		doneC:          make(chan struct{}),
	}
}

// Phase returns the secondary's current phase state. Collaborators observe
// the phase only through this accessor.
func (s *Secondary) Phase() Phase {
	s.stateLock.Lock()
	defer s.stateLock.Unlock()
	return s.phase
}

// Finish asks the responder to end the phase at the next iteration boundary.
// A responder blocked waiting for the primary's next request keeps waiting;
// ending the phase promptly from the primary side ends both.
func (s *Secondary) Finish() {
	s.finishOnce.Do(func() {
		close(s.finishC)
	})
}

// Done returns a channel closed once the phase has fully completed,
// including teardown.
func (s *Secondary) Done() <-chan struct{} {
	return s.doneC
}

// Run enters the incoming checkpoint phase, launches the responder, and
// blocks until it exits.
func (s *Secondary) Run() error {
	s.stateLock.Lock()
	err := s.phase.transitionTo(PhaseCheckpointing)
	s.stateLock.Unlock()
	if err != nil {
		return err
	}

	defer func() {
		s.stateLock.Lock()
		if err := s.phase.transitionTo(PhaseCompleted); err != nil {
			s.stateLock.Unlock()
			panic(fmt.Sprintf("BUG: error transitioning to %q: %v", PhaseCompleted, err))
		}
		s.stateLock.Unlock()
		s.l.Info("incoming checkpoint phase completed")
		close(s.doneC)
	}()

	var g errgroup.Group
	g.Go(s.respond)
	if err := g.Wait(); err != nil {
		s.metrics.observeFailure()
		s.l.Error("incoming checkpoint phase failed", "err", err)
		return err
	}
	return nil
}

// respond is the responder loop. Whatever step fails and however many
// iterations ran, the deferred teardown releases the cache and closes both
// channel handles exactly once.
func (s *Secondary) respond() error {
	rp, err := s.conn.ReturnPath()
	if err != nil {
		s.conn.Close()
		return errors.Wrap(err, "can't open return path")
	}

	cacheReady := false
	defer func() {
		if cacheReady {
			s.cache.Release()
		}
		if err := rp.Close(); err != nil {
			s.l.Error("error closing return path", "err", err)
		}
		if err := s.conn.Close(); err != nil {
			s.l.Error("error closing inbound channel", "err", err)
		}
	}()

	if err := s.cache.Init(); err != nil {
		return errors.Wrap(err, "can't initialize replication cache")
	}
	cacheReady = true

	buf, err := newStagingBuffer(s.bufferCapacity)
	if err != nil {
		return err
	}
	defer buf.free()

	if err := proto.WriteCommand(rp, proto.CheckpointReady); err != nil {
		return err
	}
	s.l.Info("ready for checkpoints")

	for {
		select {
		case <-s.finishC:
			return nil
		default:
		}
		if err := s.handleCheckpoint(rp, buf); err != nil {
			return err
		}
	}
}

// handleCheckpoint answers one checkpoint cycle from the primary.
func (s *Secondary) handleCheckpoint(rp Channel, buf *stagingBuffer) error {
	cmd, err := proto.ReadCommand(s.conn)
	if err != nil {
		return err
	}
	if cmd != proto.CheckpointRequest {
		// The protocol defines nothing else the primary may send here.
		return &proto.MismatchError{Expected: proto.CheckpointRequest, Got: cmd}
	}
	s.l.Debug("got command", "cmd", cmd)

	if err := proto.WriteCommand(rp, proto.CheckpointReply); err != nil {
		return err
	}
	if err := proto.ReadExpected(s.conn, proto.VMStateSend); err != nil {
		return err
	}
	if err := proto.ReadExpected(s.conn, proto.VMStateSize); err != nil {
		return err
	}
	size, err := proto.ReadValue(s.conn)
	if err != nil {
		return err
	}
	if size > s.maxStateSize {
		return errors.Errorf("vmstate size %d exceeds limit %d", size, s.maxStateSize)
	}

	// Stage the full blob before loading, mirroring the primary's
	// buffer-then-send: the loader never sees a half-received checkpoint.
	buf.Reset()
	if _, err := io.CopyN(buf, s.conn, int64(size)); err != nil {
		return errors.Wrapf(err, "can't read %d bytes of guest state", size)
	}
	if err := proto.WriteCommand(rp, proto.VMStateReceived); err != nil {
		return err
	}

	if err := s.loader.Load(bytes.NewReader(buf.Bytes())); err != nil {
		return errors.Wrap(err, "can't load guest state")
	}
	if err := proto.WriteCommand(rp, proto.VMStateLoaded); err != nil {
		return err
	}
	s.l.Info("checkpoint applied", "state", humanize.IBytes(size))
	s.metrics.observeCycle(size)
	return nil
}
