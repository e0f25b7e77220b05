package colo

import "io"

// GuestControl stops and resumes the guest's instruction execution. Stop is
// synchronous: when it returns, the guest is frozen and its externally
// observable behavior is fixed until Resume. Each is called at most once per
// checkpoint cycle.
type GuestControl interface {
	Stop() error
	Resume() error
}

// Snapshotter serializes the guest's full state (header plus device and
// memory state) into the given sink. It is called only while the guest is
// stopped.
type Snapshotter interface {
	Snapshot(sink io.Writer) error
}

// StateLoader applies one checkpoint's serialized state to the running
// secondary guest. The reader yields exactly the blob the primary staged.
type StateLoader interface {
	Load(src io.Reader) error
}

// ReplicationCache is the secondary's local cache backing incoming state
// application. It is initialized once before the responder sends
// CheckpointReady and released exactly once when the responder exits,
// however it exits.
type ReplicationCache interface {
	Init() error
	Release()
}

// noopLocker is the default guest execution lock when the embedder has no
// execution-management path to serialize with.
type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}
