package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ReconciliationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bnpl_reconciliations_total",
		Help: "Reconciliation attempts by entry path and result.",
	}, []string{"path", "result"})

	SignatureFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bnpl_webhook_signature_failures_total",
		Help: "Webhook requests rejected for a missing or invalid signature.",
	})

	ProviderErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bnpl_provider_errors_total",
		Help: "Failed provider verify calls by kind.",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(ReconciliationsTotal, SignatureFailuresTotal, ProviderErrorsTotal)
}
