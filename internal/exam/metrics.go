package exam

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "examportal",
		Name:      "generation_duration_seconds",
		Help:      "Wall time to generate the full question list for one exam.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	chunkAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "examportal",
		Name:      "chunk_attempts_total",
		Help:      "Model call attempts per chunk, by outcome.",
	}, []string{"outcome"})

	placeholderQuestionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "examportal",
		Name:      "placeholder_questions_total",
		Help:      "Placeholder questions substituted for failed generation.",
	})
)
