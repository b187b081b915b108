package services

import "github.com/prometheus/client_golang/prometheus"

var (
	completionCallsTotal       prometheus.Counter
	recommendationsStoredTotal prometheus.Counter
	droppedSelectionsTotal     prometheus.Counter
)

func init() {
	completionCallsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "completion_calls_total",
		Help: "Total number of completion requests sent to the LLM provider.",
	})
	recommendationsStoredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "personalized_papers_stored_total",
		Help: "Total number of personalized paper rows persisted.",
	})
	droppedSelectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dropped_selections_total",
		Help: "Total number of recommended papers dropped because their ID was not in the pool.",
	})
	prometheus.MustRegister(completionCallsTotal, recommendationsStoredTotal, droppedSelectionsTotal)
}
