// Package metrics exposes process-wide Prometheus collectors for the chunk
// decoder and connection lifecycle, in the promauto global-vars style the
// ffmpeg-go-relay example uses. It lives outside internal/rtmp/server so
// that internal/rtmp/conn (lower in the import graph than server) can record
// decode-path metrics directly instead of threading a callback down from
// the server package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	chunksDecodedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtmp_chunks_decoded_total",
		Help: "Approximate total number of chunks decoded, estimated per message as ceil(payload length / read chunk size).",
	})

	messagesDecodedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtmp_messages_decoded_total",
		Help: "Total number of complete RTMP messages reassembled, by message type.",
	}, []string{"type"})

	decodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtmp_decode_errors_total",
		Help: "Total decoder failures, by error kind.",
	}, []string{"kind"})

	partialBoundRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rtmp_partial_bound_rejections_total",
		Help: "Total connections dropped for exceeding a partial-chunk or header-cache bound.",
	}, []string{"kind"})

	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rtmp_active_connections",
		Help: "Number of currently accepted RTMP connections.",
	})

	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rtmp_active_streams",
		Help: "Number of currently published streams in the registry.",
	})
)

// RecordDecodedMessage increments the per-type message counter and adds
// chunkCount to the chunk counter for the chunks that made up the message.
func RecordDecodedMessage(typeID uint8, chunkCount int) {
	chunksDecodedTotal.Add(float64(chunkCount))
	messagesDecodedTotal.WithLabelValues(messageTypeLabel(typeID)).Inc()
}

// RecordDecodeError classifies a decode failure by its DecodeErrorKind
// string (chunk.DecodeErrorKind.String()) and increments the matching
// counter, additionally bumping the bound-rejection counter for the two
// kinds that indicate a resource-exhaustion attempt rather than a
// malformed stream.
func RecordDecodeError(kind string) {
	decodeErrorsTotal.WithLabelValues(kind).Inc()
	switch kind {
	case "too_many_partial_chunks", "too_many_previous_headers":
		partialBoundRejectionsTotal.WithLabelValues(kind).Inc()
	}
}

func messageTypeLabel(id uint8) string {
	switch id {
	case 1:
		return "set_chunk_size"
	case 2:
		return "abort"
	case 3:
		return "acknowledgement"
	case 4:
		return "user_control"
	case 5:
		return "window_ack_size"
	case 6:
		return "set_peer_bandwidth"
	case 8:
		return "audio"
	case 9:
		return "video"
	case 15, 18:
		return "data"
	case 16, 19:
		return "shared_object"
	case 17, 20:
		return "command"
	case 22:
		return "aggregate"
	default:
		return "unknown"
	}
}
