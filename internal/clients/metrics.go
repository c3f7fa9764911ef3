package clients

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fable_generation_requests_total",
			Help: "Total number of requests to generation providers.",
		},
		[]string{"provider", "status"},
	)
	generationRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fable_generation_request_duration_seconds",
			Help:    "Histogram of generation provider request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)
	textPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fable_text_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model"},
	)
	textCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fable_text_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"model"},
	)
)
