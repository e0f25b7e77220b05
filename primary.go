package colo

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"k8s.io/utils/clock"

	"github.com/vmftkit/colo/internal/proto"
)

// Primary drives the outgoing side of a checkpoint phase: it repeatedly
// freezes the guest, serializes its state into the staging buffer, ships the
// buffer to the secondary, and resumes the guest once the secondary has
// acknowledged both receipt and load.
//
// A Primary runs exactly one phase; Run blocks until the phase has fully
// completed, including teardown of the staging buffer and both channel
// handles.
type Primary struct {
	l                  log15.Logger
	clock              clock.Clock
	checkpointInterval time.Duration
	bufferCapacity     int
	guestLock          sync.Locker
	metrics            *Metrics

	conn  Conn
	guest GuestControl
	snap  Snapshotter

	// rp and buf live from phase entry to the single teardown.
	rp  Channel
	buf *stagingBuffer

	stateLock sync.Mutex
	phase     Phase

	finishOnce sync.Once
	finishC    chan struct{}
	doneC      chan struct{}
}

// NewPrimary builds the primary side of a checkpoint phase over the given
// outbound channel. guest and snap are the embedder's execution control and
// state serializer.
func NewPrimary(conn Conn, guest GuestControl, snap Snapshotter, opts ...Option) *Primary {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Primary{
		l:                  o.logger.New("role", "primary", "phase", uuid.New().String()),
		clock:              o.clock,
		checkpointInterval: o.checkpointInterval,
		bufferCapacity:     o.bufferCapacity,
		guestLock:          o.guestLock,
		metrics:            o.metrics,
		conn:               conn,
		guest:              guest,
		snap:               snap,
		phase:              PhaseNormal,
		finishC:            make(chan struct{}),
		doneC:              make(chan struct{}),
	}
}

// Phase returns the primary's current phase state. Collaborators observe the
// phase only through this accessor.
func (p *Primary) Phase() Phase {
	p.stateLock.Lock()
	defer p.stateLock.Unlock()
	return p.phase
}

// Finish asks the primary to end the phase at the next checkpoint boundary.
// An in-progress checkpoint cycle always runs to completion or hard failure
// first.
func (p *Primary) Finish() {
	p.finishOnce.Do(func() {
		close(p.finishC)
	})
}

// Done returns a channel closed once the phase has fully completed,
// including teardown.
func (p *Primary) Done() <-chan struct{} {
	return p.doneC
}

// Run enters the checkpoint phase and blocks until it ends, either by Finish
// or by the first failed checkpoint cycle. The caller must hold the guest
// execution lock (if one was configured) on entry; Run releases it for the
// duration of the phase and re-acquires it before returning.
func (p *Primary) Run() error {
	p.stateLock.Lock()
	err := p.phase.transitionTo(PhaseCheckpointing)
	p.stateLock.Unlock()
	if err != nil {
		return err
	}

	// Checkpointing takes the execution lock only around the brief
	// stop/resume calls, so the embedder's execution-management path never
	// waits on network I/O.
	p.guestLock.Unlock()
	defer p.guestLock.Lock()
	defer p.teardown()

	if err := p.runPhase(); err != nil {
		p.metrics.observeFailure()
		p.l.Error("checkpoint phase failed", "err", err)
		return err
	}
	return nil
}

// teardown is the single exit path for every way runPhase can end.
func (p *Primary) teardown() {
	p.stateLock.Lock()
	if err := p.phase.transitionTo(PhaseCompleted); err != nil {
		p.stateLock.Unlock()
		panic(fmt.Sprintf("BUG: error transitioning to %q: %v", PhaseCompleted, err))
	}
	p.stateLock.Unlock()

	if p.buf != nil {
		p.buf.free()
		p.buf = nil
	}
	if p.rp != nil {
		if err := p.rp.Close(); err != nil {
			p.l.Error("error closing return path", "err", err)
		}
		p.rp = nil
	}
	if err := p.conn.Close(); err != nil {
		p.l.Error("error closing outbound channel", "err", err)
	}
	p.l.Info("checkpoint phase completed")
	close(p.doneC)
}

func (p *Primary) runPhase() error {
	rp, err := p.conn.ReturnPath()
	if err != nil {
		return errors.Wrap(err, "can't open return path")
	}
	p.rp = rp

	// Wait for the secondary to finish loading the initial machine state
	// and enter its checkpoint phase.
	if err := proto.ReadExpected(p.rp, proto.CheckpointReady); err != nil {
		return err
	}

	buf, err := newStagingBuffer(p.bufferCapacity)
	if err != nil {
		return err
	}
	p.buf = buf

	p.guestLock.Lock()
	err = p.guest.Resume()
	p.guestLock.Unlock()
	if err != nil {
		return errors.Wrap(err, "can't start guest")
	}
	p.l.Info("guest state change", "from", "stop", "to", "run")

	for {
		select {
		case <-p.finishC:
			return nil
		default:
		}
		if err := p.checkpoint(); err != nil {
			return err
		}
		if p.checkpointInterval > 0 {
			timer := p.clock.NewTimer(p.checkpointInterval)
			select {
			case <-p.finishC:
				timer.Stop()
				return nil
			case <-timer.C():
			}
		}
	}
}

// checkpoint runs one full cycle. Any failure aborts the cycle immediately;
// the guest is left exactly as the failing step implies, and in particular
// is never resumed on an unconfirmed transmit.
func (p *Primary) checkpoint() error {
	p.l.Debug("put command", "cmd", proto.CheckpointRequest)
	if err := proto.WriteCommand(p.conn, proto.CheckpointRequest); err != nil {
		return err
	}
	if err := proto.ReadExpected(p.rp, proto.CheckpointReply); err != nil {
		return err
	}

	p.buf.Reset()

	p.guestLock.Lock()
	err := p.guest.Stop()
	p.guestLock.Unlock()
	if err != nil {
		return errors.Wrap(err, "can't stop guest")
	}
	frozenAt := p.clock.Now()
	p.l.Info("guest state change", "from", "run", "to", "stop")

	if err := p.snap.Snapshot(p.buf); err != nil {
		return errors.Wrap(err, "can't snapshot guest state")
	}

	if err := proto.WriteCommand(p.conn, proto.VMStateSend); err != nil {
		return err
	}
	size := uint64(p.buf.Len())
	if err := proto.WriteCommandValue(p.conn, proto.VMStateSize, size); err != nil {
		return err
	}
	if _, err := p.conn.Write(p.buf.Bytes()); err != nil {
		return errors.Wrap(err, "can't send guest state")
	}
	if err := p.conn.Flush(); err != nil {
		return errors.Wrap(err, "can't flush guest state")
	}

	if err := proto.ReadExpected(p.rp, proto.VMStateReceived); err != nil {
		return err
	}
	if err := proto.ReadExpected(p.rp, proto.VMStateLoaded); err != nil {
		return err
	}

	// Both acknowledgments landed; the frozen window can close.
	p.guestLock.Lock()
	err = p.guest.Resume()
	p.guestLock.Unlock()
	if err != nil {
		return errors.Wrap(err, "can't resume guest")
	}
	frozen := p.clock.Since(frozenAt)
	p.l.Info("guest state change", "from", "stop", "to", "run",
		"state", humanize.IBytes(size), "frozen", frozen)
	p.metrics.observeCycle(size)
	p.metrics.observeFrozen(frozen.Seconds())
	return nil
}
