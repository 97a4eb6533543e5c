package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus counters for the metered operations.
var (
	chargesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinledger_feature_charges_total",
		Help: "Successful feature usage charges by feature.",
	}, []string{"feature"})

	insufficientTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coinledger_insufficient_coins_total",
		Help: "Feature charges rejected for insufficient balance.",
	})

	purchasesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coinledger_purchases_total",
		Help: "Coin credits by path (direct, stripe, admin).",
	}, []string{"path"})
)
