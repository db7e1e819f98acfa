// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package metrics holds the Prometheus collectors for the review service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewgate_redemptions_total",
			Help: "Review submission attempts by outcome",
		},
		[]string{"outcome"}, // success|invalid_format|code_invalid_or_used|validation_error|rate_limited|store_unavailable
	)

	CodesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewgate_codes_total",
			Help: "Access code lifecycle events",
		},
		[]string{"event"}, // created|generated|imported|released|deleted
	)

	ReviewsImportedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reviewgate_reviews_imported_total",
			Help: "Reviews created by batch import",
		},
	)

	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewgate_admin_logins_total",
			Help: "Admin login attempts by outcome",
		},
		[]string{"outcome"}, // success|failure|rate_limited
	)

	InconsistenciesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewgate_inconsistencies_total",
			Help: "Audit entries recorded by kind",
		},
		[]string{"kind"},
	)
)

// MustRegister registers every collector with r.
func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		RedemptionsTotal,
		CodesTotal,
		ReviewsImportedTotal,
		LoginsTotal,
		InconsistenciesTotal,
	)
}

// Feed reports live admin feed connections.
type Feed interface {
	ClientCount() int
	AdminCount() int
}

// MustRegisterFeed exposes the connection counts of f as gauges.
func MustRegisterFeed(r prometheus.Registerer, f Feed) {
	r.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "reviewgate_feed_clients",
			Help: "Open admin live feed connections",
		}, func() float64 { return float64(f.ClientCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "reviewgate_feed_admins",
			Help: "Admins with at least one open live feed connection",
		}, func() float64 { return float64(f.AdminCount()) }),
	)
}
