package observability

import "github.com/prometheus/client_golang/prometheus"

// Rejection reasons used as the "reason" label.
const (
	ReasonInvalid     = "invalid"
	ReasonNotFound    = "not_found"
	ReasonLinkExpired = "link_expired"
	ReasonQuota       = "quota"
	ReasonError       = "error"
)

var (
	messagesAdmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kala_messages_admitted_total",
		Help: "Anonymous messages accepted into an inbox.",
	})

	messagesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kala_messages_rejected_total",
			Help: "Anonymous messages refused, by reason.",
		},
		[]string{"reason"},
	)

	messagesReplayed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kala_messages_replayed_total",
		Help: "Sends answered from an Idempotency-Key record.",
	})

	linksGenerated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kala_links_generated_total",
		Help: "Share links generated.",
	})

	premiumActivations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "kala_premium_activations_total",
		Help: "Premium entitlements switched on.",
	})
)

func init() {
	prometheus.MustRegister(messagesAdmitted, messagesRejected, messagesReplayed, linksGenerated, premiumActivations)
}

// MessageAdmitted counts one accepted message.
func MessageAdmitted() { messagesAdmitted.Inc() }

// MessageRejected counts one refused message.
func MessageRejected(reason string) { messagesRejected.WithLabelValues(reason).Inc() }

// MessageReplayed counts one idempotent replay.
func MessageReplayed() { messagesReplayed.Inc() }

// LinkGenerated counts one new share link.
func LinkGenerated() { linksGenerated.Inc() }

// PremiumActivated counts one premium activation.
func PremiumActivated() { premiumActivations.Inc() }
