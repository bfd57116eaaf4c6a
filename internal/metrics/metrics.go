package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Frame cycle metrics
	framesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudstream_frames_fetched_total",
		Help: "Frames successfully fetched from the source",
	})

	framesParsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudstream_frames_parsed_total",
		Help: "Frames whose header and body decoded successfully",
	})

	framesPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudstream_frames_published_total",
		Help: "Snapshots published to consumers",
	})

	fetchBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cloudstream_fetch_bytes_total",
		Help: "Bytes received from the frame source",
	})

	frameErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudstream_frame_errors_total",
		Help: "Frame cycle failures by stage and kind",
	}, []string{"stage", "kind"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cloudstream_fetch_duration_seconds",
		Help:    "Time spent waiting on the frame source",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})

	parseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cloudstream_parse_duration_seconds",
		Help:    "Time spent decoding one frame",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	// Session state
	frameIndex = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cloudstream_frame_index",
		Help: "Logical index of the next frame to fetch",
	})

	currentSlot = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cloudstream_slot",
		Help: "Local slot written by the most recent cycle",
	})

	pointsPublished = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cloudstream_points_published",
		Help: "Point count of the most recently published frame",
	})

	sessionHalted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cloudstream_session_halted",
		Help: "1 once the streaming session has halted",
	})

	websocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cloudstream_websocket_clients",
		Help: "Connected frame notification subscribers",
	})

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cloudstream_http_requests_total",
		Help: "HTTP requests served",
	}, []string{"route", "method", "code"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cloudstream_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})
)

// RecordFetch records a successful fetch of n bytes.
func RecordFetch(n int, seconds float64) {
	framesFetchedTotal.Inc()
	fetchBytesTotal.Add(float64(n))
	fetchDuration.Observe(seconds)
}

// RecordParse records a successful decode.
func RecordParse(seconds float64) {
	framesParsedTotal.Inc()
	parseDuration.Observe(seconds)
}

// RecordPublish records a published snapshot of points points.
func RecordPublish(points int) {
	framesPublishedTotal.Inc()
	pointsPublished.Set(float64(points))
}

// IncrementFrameError counts a failed cycle. stage is fetch, store or parse.
func IncrementFrameError(stage, kind string) {
	frameErrorsTotal.WithLabelValues(stage, kind).Inc()
}

// SetSessionPosition mirrors the session's counters.
func SetSessionPosition(index uint64, slot int) {
	frameIndex.Set(float64(index))
	currentSlot.Set(float64(slot))
}

func SetSessionHalted(halted bool) {
	if halted {
		sessionHalted.Set(1)
		return
	}
	sessionHalted.Set(0)
}

func IncrementWebSocketClients() { websocketClients.Inc() }

func DecrementWebSocketClients() { websocketClients.Dec() }

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(route, method, code string, seconds float64) {
	httpRequestsTotal.WithLabelValues(route, method, code).Inc()
	httpRequestDuration.WithLabelValues(route, method).Observe(seconds)
}
