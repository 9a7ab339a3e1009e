package service

import "github.com/prometheus/client_golang/prometheus"

// Submission outcomes recorded by proofSubmissionsTotal.
const (
	submissionCreated  = "created"
	submissionLimited  = "limited"
	submissionNotFound = "not_found"
	submissionInvalid  = "invalid"
	submissionFailed   = "error"
)

var proofSubmissionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "proof_submissions_total",
		Help: "Proof submissions by outcome",
	},
	[]string{"result"},
)

// Collectors returns the service-level metrics for registration next to the
// HTTP metrics.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{proofSubmissionsTotal}
}
