package chunk

// BasicHeader is the 1-3 byte chunk basic header: the chunk type selector and
// chunk stream id.
type BasicHeader struct {
	Format        uint8
	ChunkStreamID uint32
}

// MessageHeader is always fully materialized after a chunk header parses,
// regardless of which on-wire format produced it — omitted fields are filled
// in from the per-stream header cache.
type MessageHeader struct {
	Timestamp       uint32
	MessageLength   uint32
	MessageTypeID   MessageType
	MessageStreamID uint32
}

// Chunk is a fully reassembled RTMP message, tagged with the basic/message
// header of its terminating (possibly only) fragment. Payload is exactly
// MessageHeader.MessageLength bytes; the decoder never emits a partial one.
type Chunk struct {
	BasicHeader   BasicHeader
	MessageHeader MessageHeader
	Payload       []byte
}

// Message is the legacy flattened view of a decoded Chunk, kept for the
// connection/control/rpc/media/relay layers that were written against it
// before the decoder moved to the two-phase buffer model. ToMessage converts
// from the new Chunk shape; nothing downstream of the decoder needs to
// change.
type Message struct {
	CSID            uint32
	Timestamp       uint32
	MessageLength   uint32
	TypeID          uint8
	MessageStreamID uint32
	Payload         []byte
}

// ToMessage flattens a Chunk into the legacy Message shape used by the rest
// of the connection stack.
func (c *Chunk) ToMessage() *Message {
	if c == nil {
		return nil
	}
	return &Message{
		CSID:            c.BasicHeader.ChunkStreamID,
		Timestamp:       c.MessageHeader.Timestamp,
		MessageLength:   c.MessageHeader.MessageLength,
		TypeID:          uint8(c.MessageHeader.MessageTypeID),
		MessageStreamID: c.MessageHeader.MessageStreamID,
		Payload:         c.Payload,
	}
}

// ChunkHeader is encoder-side bookkeeping only: Writer tracks the last header
// sent per chunk stream id so it can pick the cheapest FMT (0-3) for the next
// message, mirroring the decoder's header cache but on the write path. The
// wire-format encoder is an external collaborator of the decoder (see
// spec scope) and is not touched by the read-path rework.
type ChunkHeader struct {
	FMT                    uint8
	CSID                   uint32
	Timestamp              uint32
	MessageLength          uint32
	MessageTypeID          uint8
	MessageStreamID        uint32
	HasExtendedTimestamp   bool
	ExtendedTimestampValue uint32
}
