package main

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// startMetricsServer launches a best-effort HTTP server exposing /metrics and
// the admin websocket event stream on addr. Failures are logged, not fatal —
// the RTMP server itself is already running and should not be brought down
// by a metrics listener problem.
func startMetricsServer(addr string, adminEvents http.Handler, log *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if adminEvents != nil {
		mux.Handle("/admin/events", adminEvents)
	}

	go func() {
		log.Info("metrics server listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("metrics server stopped", "error", err)
		}
	}()
}
