package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Verification outcomes used as the "result" label.
const (
	ResultVerified   = "verified"
	ResultMissingKey = "missing_key"
	ResultInvalid    = "invalid"
	ResultExpired    = "expired"
	ResultError      = "error"
)

var (
	KeysGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keys_generated_total",
		Help: "Total number of access keys issued",
	})

	KeyVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "key_verifications_total",
			Help: "Total number of key verification attempts by result",
		},
		[]string{"result"},
	)

	DevicesRegistered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "key_devices_registered_total",
		Help: "Total number of device ids newly bound to a key",
	})
)
