package chunk

import (
	"bytes"
	"encoding/binary"
)

// Decoder reassembles RTMP messages from an interleaved stream of chunks.
// Unlike Reader/StreamReader it never performs I/O itself: ReadChunk pulls
// from whatever bytes are already buffered and reports when it needs more,
// so the same Decoder works equally against a socket-fed buffer or a replay
// of captured traffic. Not safe for concurrent use.
//
// Two maps carry state with independent lifetimes and bounds:
//   - headers tracks the last materialized MessageHeader per chunk stream id,
//     plus whether that header used the extended-timestamp form. It persists
//     for the life of the connection and is bounded by MaxPreviousChunkHeaders.
//   - partials tracks messages currently being assembled across chunks. An
//     entry exists only between a message's first fragment and its last, and
//     is bounded by MaxPartialChunks.
// The teacher's original ChunkStreamState folded both into one map with one
// bound; splitting them is what makes the two limits independently
// enforceable instead of one starving the other.
type Decoder struct {
	chunkSize uint32
	headers   map[uint32]*cachedHeader
	partials  map[uint32]*partialMessage
}

type cachedHeader struct {
	header               MessageHeader
	hasExtendedTimestamp bool
}

type partialMessage struct {
	buf []byte
}

// NewDecoder returns a Decoder with the protocol's default chunk size.
func NewDecoder() *Decoder {
	return &Decoder{
		chunkSize: DefaultChunkSize,
		headers:   make(map[uint32]*cachedHeader),
		partials:  make(map[uint32]*partialMessage),
	}
}

// SetChunkSize changes the size the decoder uses to compute how many payload
// bytes a fragment carries. The decoder never infers this from the chunk
// stream itself — the caller must decode a Set Chunk Size control message
// and call this explicitly, otherwise a message whose payload happens to
// look like a control message would silently desynchronize the stream.
func (d *Decoder) SetChunkSize(size uint32) error {
	if size < minChunkSize || size > maxChunkSize {
		return errInvalidChunkSize(size)
	}
	d.chunkSize = size
	return nil
}

// ReadChunk attempts to decode chunks from the front of buf until either a
// message completes or buf no longer holds a complete (header, fragment)
// pair. It never consumes a partial header or fragment: when it returns
// (nil, nil), buf is exactly as large as it was at the point the next chunk
// became unreadable, and the caller should append more bytes and retry.
//
// Because a later-started stream can finish before an earlier one, a single
// call may advance several chunk stream ids' assemblers before the one that
// happens to complete returns — emission order follows completion order, not
// chunk order.
func (d *Decoder) ReadChunk(buf *bytes.Buffer) (*Chunk, error) {
	for {
		chunk, done, err := d.step(buf)
		if err != nil {
			return nil, err
		}
		if done {
			return chunk, nil
		}
	}
}

// step processes at most one (header, fragment) pair. done is true when the
// loop in ReadChunk should stop: either because chunk is a freshly completed
// message, or because there isn't enough data yet for the next pair. It is
// never true with both chunk and err set.
func (d *Decoder) step(buf *bytes.Buffer) (chunk *Chunk, done bool, err error) {
	data := buf.Bytes()

	format, csid, basicLen, ok := peekBasicHeader(data)
	if !ok {
		return nil, true, nil
	}

	mh, hasExt, headerBodyLen, ok, err := d.deriveMessageHeader(format, csid, data[basicLen:])
	if err != nil {
		return nil, true, err
	}
	if !ok {
		return nil, true, nil
	}
	totalHeaderLen := basicLen + headerBodyLen

	partial := d.partials[csid]
	var accumulated uint32
	if partial != nil {
		accumulated = uint32(len(partial.buf))
	}
	if accumulated >= mh.MessageLength {
		// A previous header redeclared a length we've already met or passed.
		// Not reachable from any conforming peer; guard against looping.
		accumulated = mh.MessageLength
	}
	take := mh.MessageLength - accumulated
	if take > d.chunkSize {
		take = d.chunkSize
	}

	if uint32(len(data)) < uint32(totalHeaderLen)+take {
		return nil, true, nil
	}

	singleShot := partial == nil && take == mh.MessageLength

	if !singleShot && partial == nil {
		if len(d.partials) >= MaxPartialChunks {
			return nil, true, errTooManyPartialChunks()
		}
	}
	if format == 0 {
		if _, exists := d.headers[csid]; !exists {
			if len(d.headers) >= MaxPreviousChunkHeaders {
				return nil, true, errTooManyPreviousHeaders()
			}
		}
	}

	// Commit: everything above this point is read-only with respect to buf
	// and decoder state, so an error or insufficient-data return above never
	// left a partial mutation behind.
	buf.Next(totalHeaderLen)
	payload := append([]byte(nil), buf.Next(int(take))...)

	d.headers[csid] = &cachedHeader{header: mh, hasExtendedTimestamp: hasExt}

	if singleShot {
		return &Chunk{
			BasicHeader:   BasicHeader{Format: format, ChunkStreamID: csid},
			MessageHeader: mh,
			Payload:       payload,
		}, true, nil
	}

	if partial == nil {
		partial = &partialMessage{buf: make([]byte, 0, mh.MessageLength)}
		d.partials[csid] = partial
	}
	partial.buf = append(partial.buf, payload...)
	if uint32(len(partial.buf)) < mh.MessageLength {
		return nil, false, nil // committed a fragment; keep looping for more
	}

	out := &Chunk{
		BasicHeader:   BasicHeader{Format: format, ChunkStreamID: csid},
		MessageHeader: mh,
		Payload:       partial.buf,
	}
	delete(d.partials, csid)
	return out, true, nil
}

// deriveMessageHeader parses and fully materializes a message header for the
// given format, filling in fields the wire format omits from the per-stream
// cache. ok is false only when rest doesn't yet hold every byte this format
// requires; err is non-nil only once enough bytes are in hand to know the
// chunk is invalid outright (unknown type id, missing cache entry, oversized
// length, or timestamp overflow), in which case ok is true.
func (d *Decoder) deriveMessageHeader(format uint8, csid uint32, rest []byte) (mh MessageHeader, hasExt bool, consumed int, ok bool, err error) {
	switch format {
	case 0:
		if len(rest) < 11 {
			return MessageHeader{}, false, 0, false, nil
		}
		ts := readUint24(rest[0:3])
		length := readUint24(rest[3:6])
		typeByte := rest[6]
		msid := binary.LittleEndian.Uint32(rest[7:11])
		consumed = 11
		if ts == extendedTimestampMarker {
			if len(rest) < 15 {
				return MessageHeader{}, false, 0, false, nil
			}
			ts = binary.BigEndian.Uint32(rest[11:15])
			consumed = 15
			hasExt = true
		}
		if !validMessageType(typeByte) {
			return MessageHeader{}, hasExt, consumed, true, errInvalidMessageType(typeByte)
		}
		if length > MaxPartialPayloadSize {
			return MessageHeader{}, hasExt, consumed, true, errPartialChunkTooLarge(length)
		}
		mh = MessageHeader{Timestamp: ts, MessageLength: length, MessageTypeID: MessageType(typeByte), MessageStreamID: msid}
		return mh, hasExt, consumed, true, nil

	case 1:
		cached, exists := d.headers[csid]
		if !exists {
			return MessageHeader{}, false, 0, true, errMissingPreviousHeader(csid)
		}
		if len(rest) < 7 {
			return MessageHeader{}, false, 0, false, nil
		}
		delta := readUint24(rest[0:3])
		length := readUint24(rest[3:6])
		typeByte := rest[6]
		consumed = 7
		if delta == extendedTimestampMarker {
			if len(rest) < 11 {
				return MessageHeader{}, false, 0, false, nil
			}
			delta = binary.BigEndian.Uint32(rest[7:11])
			consumed = 11
			hasExt = true
		}
		if !validMessageType(typeByte) {
			return MessageHeader{}, hasExt, consumed, true, errInvalidMessageType(typeByte)
		}
		if length > MaxPartialPayloadSize {
			return MessageHeader{}, hasExt, consumed, true, errPartialChunkTooLarge(length)
		}
		ts, overflow := addTimestampDelta(cached.header.Timestamp, delta)
		if overflow {
			return MessageHeader{}, hasExt, consumed, true, errTimestampOverflow(cached.header.Timestamp, delta)
		}
		mh = MessageHeader{Timestamp: ts, MessageLength: length, MessageTypeID: MessageType(typeByte), MessageStreamID: cached.header.MessageStreamID}
		return mh, hasExt, consumed, true, nil

	case 2:
		cached, exists := d.headers[csid]
		if !exists {
			return MessageHeader{}, false, 0, true, errMissingPreviousHeader(csid)
		}
		if len(rest) < 3 {
			return MessageHeader{}, false, 0, false, nil
		}
		delta := readUint24(rest[0:3])
		consumed = 3
		if delta == extendedTimestampMarker {
			if len(rest) < 7 {
				return MessageHeader{}, false, 0, false, nil
			}
			delta = binary.BigEndian.Uint32(rest[3:7])
			consumed = 7
			hasExt = true
		}
		ts, overflow := addTimestampDelta(cached.header.Timestamp, delta)
		if overflow {
			return MessageHeader{}, hasExt, consumed, true, errTimestampOverflow(cached.header.Timestamp, delta)
		}
		mh = MessageHeader{
			Timestamp:       ts,
			MessageLength:   cached.header.MessageLength,
			MessageTypeID:   cached.header.MessageTypeID,
			MessageStreamID: cached.header.MessageStreamID,
		}
		return mh, hasExt, consumed, true, nil

	case 3:
		cached, exists := d.headers[csid]
		if !exists {
			return MessageHeader{}, false, 0, true, errMissingPreviousHeader(csid)
		}
		if cached.hasExtendedTimestamp {
			if len(rest) < 4 {
				return MessageHeader{}, false, 0, false, nil
			}
			consumed = 4 // value is read only to stay in sync with the wire; it is discarded
		}
		return cached.header, cached.hasExtendedTimestamp, consumed, true, nil

	default:
		// format is two bits wide; every value is one of the above.
		return MessageHeader{}, false, 0, true, nil
	}
}
