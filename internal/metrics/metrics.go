package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dubstream_tasks_active",
		Help: "Currently running dubbing tasks",
	})

	TasksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dubstream_tasks_total",
		Help: "Total tasks completed, by final status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dubstream_stage_duration_seconds",
		Help:    "Per-stage latency (fetch, align, mix, hls)",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
	}, []string{"stage"})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dubstream_errors_total",
		Help: "Error counts by stage and error kind",
	}, []string{"stage", "error_kind"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dubstream_queue_depth",
		Help: "In-flight batches on Q1 (tts->align) or Q2 (align->compose)",
	}, []string{"queue"})

	BatchesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dubstream_batches_processed_total",
		Help: "Batches that reached the Mixer, by outcome",
	}, []string{"outcome"}) // "published" | "dropped"

	SegmentsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dubstream_hls_segments_published_total",
		Help: "HLS .ts segments successfully uploaded",
	})

	UploadRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dubstream_upload_retries_total",
		Help: "Object-store upload retries across all keys",
	})

	SimplificationRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dubstream_simplification_retries_total",
		Help: "Sentences sent to the Simplifier for a speed-driven rewrite",
	})

	AlignSpeed = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dubstream_align_speed_ratio",
		Help:    "Per-sentence speed factor chosen by the Duration Aligner",
		Buckets: []float64{0.8, 0.9, 1.0, 1.05, 1.1, 1.15, 1.2, 1.3},
	})
)
