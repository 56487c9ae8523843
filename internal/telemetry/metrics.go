// Package telemetry exposes Prometheus metrics for the attendance pipeline.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors shared across the pipeline.
type Metrics struct {
	FramesProcessed  prometheus.Counter
	FramesSkipped    prometheus.Counter
	StreamReconnects prometheus.Counter
	DetectionErrors  prometheus.Counter
	FacesDetected    prometheus.Counter
	MarksRecorded    *prometheus.CounterVec
	ActiveViewers    prometheus.Gauge
}

const metricsPath = "/metrics"

// NewMetrics initializes and registers all Prometheus metrics.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facewatch_frames_processed_total",
			Help: "Frames run through face detection.",
		}),
		FramesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facewatch_frames_skipped_total",
			Help: "Frames passed through without detection by the alternation policy.",
		}),
		StreamReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facewatch_stream_reconnects_total",
			Help: "Reconnect attempts made against the frame source.",
		}),
		DetectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facewatch_detection_errors_total",
			Help: "Detection cycles that degraded to zero detections on error.",
		}),
		FacesDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facewatch_faces_detected_total",
			Help: "Faces found across all processed frames.",
		}),
		MarksRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facewatch_marks_recorded_total",
			Help: "Attendance marks recorded, partitioned by status.",
		}, []string{"status"}),
		ActiveViewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "facewatch_video_viewers",
			Help: "Connected live video feed viewers.",
		}),
	}

	collectors := []prometheus.Collector{
		m.FramesProcessed, m.FramesSkipped, m.StreamReconnects,
		m.DetectionErrors, m.FacesDetected, m.MarksRecorded, m.ActiveViewers,
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// RegisterMetricsHandlers adds metrics routes to the provided mux
func RegisterMetricsHandlers(mux *http.ServeMux) {
	mux.Handle(metricsPath, promhttp.Handler())
}
