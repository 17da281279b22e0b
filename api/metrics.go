package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// METRICS - Commit outcomes, exported on /metrics
// =============================================================================

var visitCommits = promauto.NewCounter(prometheus.CounterOpts{
	Name: "benefit_visit_commits_total",
	Help: "Treatment visits committed successfully.",
})

var validationRejections = promauto.NewCounter(prometheus.CounterOpts{
	Name: "benefit_commit_validation_rejections_total",
	Help: "Commit attempts rejected for unusable input.",
})

var cycleRejections = promauto.NewCounter(prometheus.CounterOpts{
	Name: "benefit_commit_cycle_rejections_total",
	Help: "Commit attempts rejected because the half-month cycle was already consumed.",
})

// commitConflicts counts inserts that passed the eligibility gate but lost
// the race at the store's uniqueness constraint. A rising rate here means
// the optimistic fast path is frequently stale.
var commitConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Name: "benefit_commit_conflicts_total",
	Help: "Commits that lost a concurrent race after passing the eligibility gate.",
})
