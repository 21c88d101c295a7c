package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingest metrics
var (
	IngestFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slideshow_ingest_files_total",
			Help: "Total number of ingested files by outcome and source format",
		},
		[]string{"outcome", "format"}, // outcome: "direct", "converted", "failed"
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "slideshow_ingest_duration_seconds",
			Help:    "Time spent ingesting one batch of files",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	AssetHandlesOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slideshow_asset_handles_open",
			Help: "Number of displayable handles currently held",
		},
	)
)

// Playback metrics
var (
	AdvancesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slideshow_advances_total",
			Help: "Total number of position changes by trigger",
		},
		[]string{"trigger"}, // "timer", "manual"
	)

	PlaybackTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slideshow_playback_state_transitions_total",
			Help: "Total number of playback state machine transitions",
		},
		[]string{"to"},
	)
)

// Capture metrics
var (
	CaptureJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slideshow_capture_jobs_total",
			Help: "Total number of capture jobs by terminal status",
		},
		[]string{"status"}, // "completed", "aborted"
	)

	CaptureRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slideshow_capture_rejected_total",
			Help: "Capture start requests rejected because a job was already recording",
		},
	)

	CaptureBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slideshow_capture_bytes_total",
			Help: "Total bytes buffered from capture sources",
		},
	)

	CaptureRecording = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slideshow_capture_recording",
			Help: "1 while a capture job is recording",
		},
	)
)
