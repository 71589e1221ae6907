// Package metrics holds the Prometheus collectors of the persistence layer.
// Collectors exist from package init so callers can record unconditionally;
// Register only exposes them on a registry.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "autoclub"

var (
	SessionsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_opened_total",
		Help:      "Sessions opened by the session manager",
	})

	SessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Sessions currently open",
	})

	SessionFlushes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_flushes_total",
		Help:      "Session flushes by result",
	}, []string{"result"}) // result: committed|constraint|unavailable|failed

	SessionFlushDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_flush_duration_seconds",
		Help:      "Time spent writing and committing a session",
		Buckets:   prometheus.DefBuckets,
	})

	SessionCloseErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_close_errors_total",
		Help:      "Sessions whose close reported an error",
	})

	MembershipNumbersIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "membership_numbers_issued_total",
		Help:      "Membership numbers handed out by the sequence generator",
	})

	NoActiveScope = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "no_active_scope_total",
		Help:      "Repository lookups attempted outside a request scope",
	})
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		SessionsOpened,
		SessionsActive,
		SessionFlushes,
		SessionFlushDuration,
		SessionCloseErrors,
		MembershipNumbersIssued,
		NoActiveScope,
	}
}

// Register registers every collector on reg (or the default registerer if nil).
// Registering twice on the same registry is not an error.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return err
			}
		}
	}
	return nil
}

// FlushResult labels a flush outcome.
func FlushResult(err error, constraint, unavailable bool) string {
	switch {
	case err == nil:
		return "committed"
	case constraint:
		return "constraint"
	case unavailable:
		return "unavailable"
	default:
		return "failed"
	}
}
