package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(activationCodes) }

var activationCodes = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "activation_codes",
		Help: "Activation codes by state at the last stats sweep.",
	},
	[]string{"state"}, // 'active', 'disabled', 'expired', 'exhausted'
)

func SetActivationCodes(active, disabled, expired, exhausted int) {
	activationCodes.WithLabelValues("active").Set(float64(active))
	activationCodes.WithLabelValues("disabled").Set(float64(disabled))
	activationCodes.WithLabelValues("expired").Set(float64(expired))
	activationCodes.WithLabelValues("exhausted").Set(float64(exhausted))
}

// ActivationCodesGauge exposes one state series, mainly for tests.
func ActivationCodesGauge(state string) prometheus.Gauge {
	return activationCodes.WithLabelValues(state)
}
