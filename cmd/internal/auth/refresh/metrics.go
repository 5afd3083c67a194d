package refresh

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	issuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agora",
		Subsystem: "refresh",
		Name:      "issued_total",
		Help:      "Refresh credentials issued (logins and rotations).",
	})

	rotatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agora",
		Subsystem: "refresh",
		Name:      "rotated_total",
		Help:      "Successful refresh rotations.",
	})

	rejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agora",
		Subsystem: "refresh",
		Name:      "rejected_total",
		Help:      "Refresh presentations rejected, by reason.",
	}, []string{"reason"})

	reuseDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agora",
		Subsystem: "refresh",
		Name:      "reuse_detected_total",
		Help:      "Revoked refresh credentials presented again.",
	})

	revokedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agora",
		Subsystem: "refresh",
		Name:      "revoked_total",
		Help:      "Refresh credentials revoked by logout or reuse response.",
	})

	sweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "agora",
		Subsystem: "refresh",
		Name:      "swept_rows_total",
		Help:      "Expired refresh rows deleted by the sweeper.",
	})
)
