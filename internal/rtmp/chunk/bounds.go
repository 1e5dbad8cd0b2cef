package chunk

// Protocol constants and resource caps.
//
// MAX_PARTIAL_CHUNKS and MAX_PREVIOUS_CHUNK_HEADERS bound the decoder's two
// per-connection maps independently (see decoder.go): the assembler map is
// ephemeral and small, the header cache persists for the session and is
// allowed to grow larger. Both exist purely to keep a hostile or buggy peer
// from growing unbounded state; raising them is safe, removing them is not.
const (
	// DefaultChunkSize is the inbound/outbound chunk payload size before any
	// Set Chunk Size negotiation.
	DefaultChunkSize = 128

	// extendedTimestampMarker is the 24-bit escape value signalling that a
	// 4-byte extended timestamp follows the message header.
	extendedTimestampMarker = 0xFFFFFF

	// MaxPartialChunks bounds the number of concurrently in-flight messages
	// (distinct chunk stream ids with a non-empty assembler entry).
	MaxPartialChunks = 4

	// MaxPreviousChunkHeaders bounds the number of distinct chunk stream ids
	// ever seen (the size of the per-stream header cache).
	MaxPreviousChunkHeaders = 100

	// MaxPartialPayloadSize bounds msg_length before any buffer is grown for
	// it. 10 MiB comfortably covers any single audio/video/aggregate frame a
	// real encoder emits while keeping MaxPartialChunks concurrent messages
	// from amplifying past tens of MiB of resident memory.
	MaxPartialPayloadSize = 10 * 1024 * 1024

	// minChunkSize / maxChunkSize bound values accepted by SetChunkSize,
	// matching the RTMP spec's 31-bit chunk size field.
	minChunkSize = 1
	maxChunkSize = 1<<31 - 1
)
