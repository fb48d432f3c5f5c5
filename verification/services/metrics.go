package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submissionsMetric = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "verification_submissions", Help: "Submissions by outcome of the intake flow"},
		[]string{"outcome"},
	)
	decisionsMetric = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "verification_decisions", Help: "Committed decision transitions"},
		[]string{"decision"},
	)
	decisionConflictsMetric = promauto.NewCounter(
		prometheus.CounterOpts{Name: "verification_decision_conflicts", Help: "Decision attempts that lost the compare-and-set race"},
	)
	advisoryVerdictsMetric = promauto.NewCounterVec(
		prometheus.CounterOpts{Name: "verification_advisory_verdicts", Help: "Advisory calls by result"},
		[]string{"result"},
	)
)
