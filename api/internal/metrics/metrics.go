package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EnvelopeDecryptTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backsnote",
		Name:      "envelope_decrypt_total",
		Help:      "Envelope opens by outcome (empty, decrypted, passthrough).",
	}, []string{"status"})
	EnvelopeEncryptTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backsnote",
		Name:      "envelope_encrypt_total",
		Help:      "Envelope seals by result.",
	}, []string{"result"})
	NoteSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backsnote",
		Name:      "note_saves_total",
		Help:      "Autosave attempts by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(EnvelopeDecryptTotal, EnvelopeEncryptTotal, NoteSavesTotal)
}
