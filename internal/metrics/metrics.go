// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scans counts QR scan attempts by result and failure reason.
	Scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academy",
		Subsystem: "qr",
		Name:      "scans_total",
		Help:      "QR attendance scan attempts by result and failure reason.",
	}, []string{"result", "reason"})

	// SessionsOpened counts QR sessions created by operators.
	SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "academy",
		Subsystem: "qr",
		Name:      "sessions_opened_total",
		Help:      "QR attendance sessions opened.",
	})

	// SessionsExpired counts sessions moved to expired, lazily or by the sweep.
	SessionsExpired = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academy",
		Subsystem: "qr",
		Name:      "sessions_expired_total",
		Help:      "QR sessions transitioned to expired.",
	}, []string{"trigger"})

	// Occurrences observes how many class instances a calendar request materialized.
	Occurrences = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "academy",
		Subsystem: "calendar",
		Name:      "materialized_occurrences",
		Help:      "Class occurrences materialized per calendar request.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 7),
	})

	// Notifications counts parent notifications by outcome.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "academy",
		Subsystem: "notify",
		Name:      "messages_total",
		Help:      "Parent notifications by outcome.",
	}, []string{"outcome"})
)
