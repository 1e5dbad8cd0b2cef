package chunk

import "fmt"

// MessageType enumerates the RTMP message type ids the decoder recognizes.
// A message header whose on-wire type byte doesn't match one of these fails
// Decoder.ReadChunk with a KindInvalidMessageType DecodeError — the decoder never passes an
// unknown type through as an opaque integer.
type MessageType uint8

const (
	MessageTypeSetChunkSize    MessageType = 1
	MessageTypeAbort           MessageType = 2
	MessageTypeAcknowledgement MessageType = 3
	MessageTypeUserControl     MessageType = 4
	MessageTypeWindowAckSize   MessageType = 5
	MessageTypeSetPeerBW       MessageType = 6
	MessageTypeAudio           MessageType = 8
	MessageTypeVideo           MessageType = 9
	MessageTypeAMF3Data        MessageType = 15
	MessageTypeAMF3SharedObj   MessageType = 16
	MessageTypeAMF3Command     MessageType = 17
	MessageTypeAMF0Data        MessageType = 18
	MessageTypeAMF0SharedObj   MessageType = 19
	MessageTypeAMF0Command     MessageType = 20
	MessageTypeAggregate       MessageType = 22
)

// String renders the message type for log lines and test failure messages.
func (t MessageType) String() string {
	switch t {
	case MessageTypeSetChunkSize:
		return "set-chunk-size"
	case MessageTypeAbort:
		return "abort"
	case MessageTypeAcknowledgement:
		return "acknowledgement"
	case MessageTypeUserControl:
		return "user-control"
	case MessageTypeWindowAckSize:
		return "window-ack-size"
	case MessageTypeSetPeerBW:
		return "set-peer-bandwidth"
	case MessageTypeAudio:
		return "audio"
	case MessageTypeVideo:
		return "video"
	case MessageTypeAMF3Data:
		return "amf3-data"
	case MessageTypeAMF3SharedObj:
		return "amf3-shared-object"
	case MessageTypeAMF3Command:
		return "amf3-command"
	case MessageTypeAMF0Data:
		return "amf0-data"
	case MessageTypeAMF0SharedObj:
		return "amf0-shared-object"
	case MessageTypeAMF0Command:
		return "amf0-command"
	case MessageTypeAggregate:
		return "aggregate"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// validMessageType reports whether b is one of the known RTMP message type
// ids. Any other value is a hard decode error (InvalidMessageTypeID).
func validMessageType(b uint8) bool {
	switch MessageType(b) {
	case MessageTypeSetChunkSize, MessageTypeAbort, MessageTypeAcknowledgement,
		MessageTypeUserControl, MessageTypeWindowAckSize, MessageTypeSetPeerBW,
		MessageTypeAudio, MessageTypeVideo,
		MessageTypeAMF3Data, MessageTypeAMF3SharedObj, MessageTypeAMF3Command,
		MessageTypeAMF0Data, MessageTypeAMF0SharedObj, MessageTypeAMF0Command,
		MessageTypeAggregate:
		return true
	default:
		return false
	}
}
