package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "studyrag"

// Ingestion, retrieval, OCR and completion metrics.
var (
	DocumentsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_ingested_total",
			Help:      "Documents processed by ingestion runs",
		},
		[]string{"subject", "source_type", "status"}, // status: ok / failed
	)

	ChunksIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Chunks written to the vector index",
		},
		[]string{"subject"},
	)

	IngestionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_duration_seconds",
			Help:      "Duration of a full subject ingestion run",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"subject"},
	)

	OCRPagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ocr_pages_total",
			Help:      "Pages sent to the OCR fallback",
		},
		[]string{"status"},
	)

	RetrievalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrievals_total",
			Help:      "Scoped retrievals, labelled by whether the unfiltered fallback fired",
		},
		[]string{"subject", "fallback"},
	)

	CompletionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_duration_seconds",
			Help:      "Text completion call duration",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider", "status"},
	)

	GeneratedItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generated_items_total",
			Help:      "Valid MCQs and flashcards produced",
		},
		[]string{"kind"},
	)
)

var registerOnce sync.Once

// Register registers all metrics with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			DocumentsIngestedTotal,
			ChunksIndexedTotal,
			IngestionDuration,
			OCRPagesTotal,
			RetrievalsTotal,
			CompletionDuration,
			GeneratedItemsTotal,
		)
	})
}
