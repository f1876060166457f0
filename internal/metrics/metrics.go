package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	ordersPlaced = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "orders",
		Name:      "placed_total",
		Help:      "Orders placed through checkout.",
	})

	couponsApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "coupons",
		Name:      "applied_total",
		Help:      "Coupons applied at checkout by type.",
	}, []string{"type"})

	pointsAwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "points",
		Name:      "awarded_total",
		Help:      "Loyalty points credited by action.",
	}, []string{"action"})

	rewardsRedeemed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "rewards",
		Name:      "redeemed_total",
		Help:      "Rewards redeemed for points.",
	})

	affiliateClicks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "affiliates",
		Name:      "clicks_total",
		Help:      "Tracked affiliate link clicks.",
	})

	jobRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "jobs",
		Name:      "runs_total",
		Help:      "Scheduled job runs by job and outcome.",
	}, []string{"job", "success"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests, httpDuration,
		ordersPlaced, couponsApplied, pointsAwarded, rewardsRedeemed, affiliateClicks,
		jobRuns,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest observes one finished request.
func RecordHTTPRequest(method, route, status string, d time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordOrder counts a placed order and the coupon it used, if any.
func RecordOrder(couponType string) {
	ordersPlaced.Inc()
	if couponType != "" {
		couponsApplied.WithLabelValues(couponType).Inc()
	}
}

// RecordPoints counts credited points.
func RecordPoints(action string, points int) {
	if points > 0 {
		pointsAwarded.WithLabelValues(action).Add(float64(points))
	}
}

// RecordRedemption counts a reward redemption.
func RecordRedemption() { rewardsRedeemed.Inc() }

// RecordAffiliateClick counts a tracked click.
func RecordAffiliateClick() { affiliateClicks.Inc() }

// RecordJob counts a scheduled job run.
func RecordJob(job string, err error) {
	success := "true"
	if err != nil {
		success = "false"
	}
	jobRuns.WithLabelValues(job, success).Inc()
}
