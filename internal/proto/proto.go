package proto

import "fmt"

// Command is one protocol message word. The zero value is CheckpointReady;
// ordinals are wire format and must not be reordered.
type Command uint32

const (
	// CheckpointReady is sent once by the secondary when it has finished
	// loading the initial machine state and can accept checkpoints.
	CheckpointReady Command = iota
	// CheckpointRequest asks the secondary to begin a checkpoint cycle.
	CheckpointRequest
	// CheckpointReply acknowledges a CheckpointRequest.
	CheckpointReply
	// VMStateSend announces that serialized guest state follows.
	VMStateSend
	// VMStateSize carries the byte length of the state blob as its value.
	VMStateSize
	// VMStateReceived acknowledges receipt of the complete state blob.
	VMStateReceived
	// VMStateLoaded acknowledges that the state blob has been applied.
	VMStateLoaded

	maxCommand
)

var commandNames = map[Command]string{
	CheckpointReady:   "checkpoint-ready",
	CheckpointRequest: "checkpoint-request",
	CheckpointReply:   "checkpoint-reply",
	VMStateSend:       "vmstate-send",
	VMStateSize:       "vmstate-size",
	VMStateReceived:   "vmstate-received",
	VMStateLoaded:     "vmstate-loaded",
}

// Valid reports whether c is inside the defined command range.
func (c Command) Valid() bool {
	return c < maxCommand
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("invalid-command(%d)", uint32(c))
}
