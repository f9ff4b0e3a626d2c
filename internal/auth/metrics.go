package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authority_logins_total",
		Help: "Login attempts by outcome.",
	}, []string{"kind", "outcome"})

	digestUpgradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authority_digest_upgrades_total",
		Help: "Transparent legacy digest upgrades by source scheme.",
	}, []string{"scheme"})

	sessionValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authority_session_validations_total",
		Help: "Session validation calls by result.",
	}, []string{"result"})
)

// kindUnknown stands in for the kind label when the request carries an
// unrecognized kind. Raw caller input must never become a label value, or
// anyone can grow the metric vector without bound.
const kindUnknown = "invalid"

const (
	outcomeSuccess     = "success"
	outcomeInvalid     = "invalid_credentials"
	outcomeSuspended   = "suspended"
	outcomeRateLimited = "rate_limited"
	outcomeError       = "error"
)
