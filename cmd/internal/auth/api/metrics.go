package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var loginTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "agora",
	Subsystem: "auth",
	Name:      "login_total",
	Help:      "Login attempts, by outcome.",
}, []string{"outcome"})
