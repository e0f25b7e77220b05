// Package colo implements checkpoint-based fault tolerance between a paired
// primary and secondary virtual machine (coarse-grained lock-stepping).
//
// The primary periodically freezes its guest, serializes the guest's full
// state into a staging buffer, ships the buffer to the secondary, and resumes
// the guest only once the secondary has confirmed both receipt and load of
// that state. If the primary fails, the secondary can take over from the last
// confirmed checkpoint, losing at most one checkpoint interval of execution.
//
// The package owns only the checkpoint protocol and its orchestration on both
// sides. Everything below it is a collaborator handed in by the embedder: the
// duplex byte channel (Conn), guest execution control (GuestControl), the
// state serializer and loader (Snapshotter, StateLoader), and the secondary's
// replication cache (ReplicationCache).
//
// A phase is entered by calling Primary.Run on one machine and Secondary.Run
// on its peer. Both calls block until the phase has fully completed,
// including teardown of the staging buffer and both channel handles; either
// side may end the phase with Finish, observed at the next checkpoint
// boundary. Any protocol, transport, or collaborator error ends the phase on
// the side that saw it.
package colo
