package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(quotaDecisions, usageCharacters, usageVoices) }

var (
	quotaDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_decisions_total",
			Help: "Pre-flight quota checks by result and deny reason.",
		},
		[]string{"result", "reason"},
	)

	usageCharacters = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "usage_characters_total",
			Help: "Characters recorded against activation codes.",
		},
	)

	usageVoices = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "usage_voices_total",
			Help: "Cloned voices recorded against activation codes.",
		},
	)
)

func IncQuotaDecision(authorized bool, reason string) {
	result := "denied"
	if authorized {
		result = "authorized"
		reason = "none"
	}
	quotaDecisions.WithLabelValues(result, norm(reason)).Inc()
}

func AddUsage(characters int, createdVoice bool) {
	if characters > 0 {
		usageCharacters.Add(float64(characters))
	}
	if createdVoice {
		usageVoices.Inc()
	}
}
