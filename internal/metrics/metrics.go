// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChunksIngested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ragbase",
		Name:      "chunks_ingested_total",
		Help:      "Chunks persisted to the store.",
	})

	IngestFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ragbase",
		Name:      "ingest_failures_total",
		Help:      "Files or chunks that failed during ingestion.",
	})

	QuestionsAnswered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ragbase",
		Name:      "questions_answered_total",
		Help:      "Questions answered, including empty-recall answers.",
	})

	QAFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ragbase",
		Name:      "qa_failures_total",
		Help:      "Questions that failed with an error.",
	})

	IngestJobsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ragbase",
		Name:      "ingest_jobs_enqueued_total",
		Help:      "Import and sync jobs published to the queue.",
	})
)
