// Package proto encapsulates the commands exchanged between a checkpointing
// primary and its secondary, and the functions for reading and writing them
// off the wire.
//
// The wire format is deliberately small: every command is one 4-byte
// big-endian word. VMStateSize additionally carries an 8-byte big-endian
// unsigned value immediately after the command word, and the serialized
// guest state itself travels as a raw blob of exactly that many bytes.
//
// The protocol is strictly lock-step: one side writes a command and then
// waits for its peer's answer before writing anything else. Every write is
// therefore flushed immediately; there is never a second command worth
// batching behind the first.
//
// One full checkpoint exchange between P (primary) and S (secondary):
//
//	S sends 'CheckpointReady' once, before the first cycle
//	P sends 'CheckpointRequest'
//	S sends 'CheckpointReply'
//	P sends 'VMStateSend', 'VMStateSize' with the blob length, then the blob
//	S sends 'VMStateReceived' once the blob is fully read
//	S sends 'VMStateLoaded' once the blob is applied to its guest
//
// Anything else received at any of those points is a protocol violation and
// ends the phase; there is no recovery at this layer.
package proto
