package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whatsapp_core_jobs_processed_total",
		Help: "Jobs processed successfully.",
	}, []string{"queue"})

	jobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whatsapp_core_jobs_failed_total",
		Help: "Job attempts that ended in failure.",
	}, []string{"queue"})

	jobsDeadLettered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whatsapp_core_jobs_dead_lettered_total",
		Help: "Jobs that exhausted retries and moved to the DLQ.",
	}, []string{"queue"})
)
