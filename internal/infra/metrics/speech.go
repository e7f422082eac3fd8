package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(speechCallsTotal, speechCallsLatencyMs, speechAudioBytes) }

var (
	speechCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speech_calls_total",
			Help: "Calls to the speech provider by operation and outcome.",
		},
		[]string{"op", "success"},
	)

	speechCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "speech_calls_latency_ms",
			Help:    "Speech provider call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
		},
		[]string{"op", "success"},
	)

	speechAudioBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "speech_audio_bytes_total",
			Help: "Bytes of synthesized audio returned to clients.",
		},
	)
)

func ObserveSpeechCall(op string, latencyMs int64, success bool) {
	s := strconv.FormatBool(success)
	speechCallsTotal.WithLabelValues(norm(op), s).Inc()
	speechCallsLatencyMs.WithLabelValues(norm(op), s).Observe(float64(latencyMs))
}

func AddSpeechAudioBytes(n int) {
	speechAudioBytes.Add(float64(n))
}
