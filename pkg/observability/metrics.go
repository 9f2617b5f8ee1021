package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Negotiation metrics
	negotiationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_negotiations_total",
			Help: "Total number of concluded negotiations by terminal status",
		},
		[]string{"status"},
	)

	negotiationRounds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marketplace_negotiation_rounds",
			Help:    "Number of rounds a negotiation took to conclude",
			Buckets: []float64{1, 2, 4, 6, 8, 10, 14, 20},
		},
	)

	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_turns_total",
			Help: "Total number of committed negotiation turns",
		},
		[]string{"role"},
	)

	dealPrice = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marketplace_deal_price",
			Help:    "Final price of agreed negotiations",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		},
	)

	activeNegotiations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketplace_active_negotiations",
			Help: "Number of negotiations currently in progress",
		},
	)

	sellerSwitchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_seller_switches_total",
			Help: "Total number of buyer-initiated seller switches",
		},
	)

	// Strategist metrics
	proposalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketplace_proposal_duration_seconds",
			Help:    "Time spent computing a proposal",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// Store metrics
	storeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_store_operations_total",
			Help: "Total number of repository operations",
		},
		[]string{"operation", "status"},
	)

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			negotiationsTotal,
			negotiationRounds,
			turnsTotal,
			dealPrice,
			activeNegotiations,
			sellerSwitchesTotal,
			proposalDuration,
			storeOperationsTotal,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordTurn records a committed negotiation turn
func RecordTurn(role string) {
	turnsTotal.WithLabelValues(role).Inc()
}

// RecordNegotiationEnd records a negotiation reaching a terminal status
func RecordNegotiationEnd(status string, rounds int) {
	negotiationsTotal.WithLabelValues(status).Inc()
	negotiationRounds.Observe(float64(rounds))
}

// RecordDeal records the final price of an agreed negotiation
func RecordDeal(price float64) {
	dealPrice.Observe(price)
}

// RecordSellerSwitch records a buyer abandoning one seller for another
func RecordSellerSwitch() {
	sellerSwitchesTotal.Inc()
}

// SetActiveNegotiations sets the active negotiation gauge
func SetActiveNegotiations(n int) {
	activeNegotiations.Set(float64(n))
}

// RecordProposal records strategist proposal metrics
func RecordProposal(provider string, duration time.Duration) {
	proposalDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordStoreOperation records repository operation metrics
func RecordStoreOperation(operation, status string) {
	storeOperationsTotal.WithLabelValues(operation, status).Inc()
}
