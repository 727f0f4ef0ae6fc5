package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AuctionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketgate_auction_requests_total",
		Help: "Calls made to the auction backend",
	}, []string{"op", "status"})

	InFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "marketgate_in_flight_requests",
		Help: "Auction backend calls currently waiting for a response",
	}, []string{"op"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketgate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	BidsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketgate_bids_total",
		Help: "Bids by final journal state",
	}, []string{"status"})

	FeedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketgate_feed_events_total",
		Help: "Auction socket events received",
	}, []string{"event"})

	BalanceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketgate_balance_errors_total",
		Help: "Failed balance lookups per chain",
	}, []string{"chain"})
)
