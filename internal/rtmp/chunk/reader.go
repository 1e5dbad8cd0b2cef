package chunk

import (
	"bytes"
	"io"
)

// StreamReader adapts the buffer-pull Decoder to the blocking io.Reader
// model the connection/control/rpc/media/relay layers are written against:
// ReadMessage blocks until a full Message is available or the underlying
// connection fails. It performs no control-message sniffing of its own —
// callers that need to react to Set Chunk Size must decode that message
// themselves (it arrives like any other Message) and call SetChunkSize,
// matching the explicit-caller-call contract Decoder exposes.
type StreamReader struct {
	r       io.Reader
	dec     *Decoder
	buf     bytes.Buffer
	scratch []byte
}

// NewReader wraps r with a StreamReader using the given initial chunk size
// (the protocol default of 128 is used when chunkSize is zero).
func NewReader(r io.Reader, chunkSize uint32) *StreamReader {
	dec := NewDecoder()
	if chunkSize != 0 {
		_ = dec.SetChunkSize(chunkSize)
	}
	return &StreamReader{
		r:       r,
		dec:     dec,
		scratch: make([]byte, 4096),
	}
}

// SetChunkSize changes the inbound chunk size the decoder uses to size
// fragments. Safe to call between ReadMessage calls.
func (sr *StreamReader) SetChunkSize(size uint32) error {
	return sr.dec.SetChunkSize(size)
}

// ReadMessage blocks until the next complete RTMP message is reassembled,
// filling the internal buffer from the underlying reader as needed.
func (sr *StreamReader) ReadMessage() (*Message, error) {
	for {
		chunk, err := sr.dec.ReadChunk(&sr.buf)
		if err != nil {
			return nil, err
		}
		if chunk != nil {
			return chunk.ToMessage(), nil
		}
		n, err := sr.r.Read(sr.scratch)
		if n > 0 {
			sr.buf.Write(sr.scratch[:n])
		}
		if err != nil {
			if n > 0 && err == io.EOF {
				// Let the next ReadChunk call drain whatever completed with
				// this last read before surfacing EOF.
				continue
			}
			return nil, errIO(err)
		}
	}
}
