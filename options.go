package colo

import (
	"sync"
	"time"

	"github.com/inconshreveable/log15"
	"k8s.io/utils/clock"
)

// DefaultMaxStateSize bounds the state size the secondary will accept for a
// single checkpoint. A size word above the bound is treated as a protocol
// violation rather than attempted as an allocation.
const DefaultMaxStateSize = 8 << 30

type options struct {
	logger             log15.Logger
	clock              clock.Clock
	checkpointInterval time.Duration
	bufferCapacity     int
	maxStateSize       uint64
	guestLock          sync.Locker
	metrics            *Metrics
}

func defaultOptions() options {
	noopLogger := log15.New()
	noopLogger.SetHandler(log15.DiscardHandler())
	return options{
		logger:         noopLogger,
		clock:          clock.RealClock{},
		bufferCapacity: DefaultBufferCapacity,
		maxStateSize:   DefaultMaxStateSize,
		guestLock:      noopLocker{},
	}
}

// Option is an option function for Primary and Secondary.
// See Rob Pike's post on the topic for more information on this pattern:
// https://commandcenter.blogspot.com/2014/01/self-referential-functions-and-design.html
type Option func(o *options)

// WithLogger configures the logger to use for checkpoint operations.
// By default, nothing will be logged.
func WithLogger(l log15.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithClock replaces the wall clock, primarily so tests can drive checkpoint
// pacing with a fake clock.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithCheckpointInterval makes the primary wait the given duration between
// successful cycles. The default of 0 starts the next cycle immediately.
func WithCheckpointInterval(d time.Duration) Option {
	return func(o *options) {
		if d < 0 {
			d = 0
		}
		o.checkpointInterval = d
	}
}

// WithBufferCapacity sets the staging buffer's base capacity in bytes.
func WithBufferCapacity(capacity int) Option {
	return func(o *options) {
		if capacity > 0 {
			o.bufferCapacity = capacity
		}
	}
}

// WithMaxStateSize sets the largest state blob the secondary will accept.
func WithMaxStateSize(limit uint64) Option {
	return func(o *options) {
		if limit > 0 {
			o.maxStateSize = limit
		}
	}
}

// WithGuestLock supplies the external execution lock that serializes guest
// stop/resume with the embedder's own execution-management path. The lock is
// held only around the stop and resume calls, never across network I/O, and
// Primary.Run expects its caller to hold it on entry.
func WithGuestLock(l sync.Locker) Option {
	return func(o *options) {
		if l != nil {
			o.guestLock = l
		}
	}
}

// WithMetrics attaches checkpoint metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
