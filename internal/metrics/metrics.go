package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the identity core. All
// methods are nil-receiver safe so wiring stays optional in tests.
type Metrics struct {
	LoginAttempts       *prometheus.CounterVec
	Lockouts            prometheus.Counter
	AccountsProvisioned prometheus.Counter
	ExchangeDuration    prometheus.Histogram
}

// New creates and registers all instruments on the default registry.
func New() *Metrics {
	return &Metrics{
		LoginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "blog_identity_login_attempts_total",
			Help: "Credential login attempts by result",
		}, []string{"result"}),
		Lockouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "blog_identity_lockouts_total",
			Help: "Times the operator account was disabled after repeated failures",
		}),
		AccountsProvisioned: promauto.NewCounter(prometheus.CounterOpts{
			Name: "blog_identity_accounts_provisioned_total",
			Help: "Member accounts created through mini-program login",
		}),
		ExchangeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "blog_identity_code_exchange_duration_seconds",
			Help:    "Latency of the provider code2session call",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncLoginAttempt(result string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) IncLockouts() {
	if m == nil {
		return
	}
	m.Lockouts.Inc()
}

func (m *Metrics) IncAccountsProvisioned() {
	if m == nil {
		return
	}
	m.AccountsProvisioned.Inc()
}

func (m *Metrics) ObserveExchange(d time.Duration) {
	if m == nil {
		return
	}
	m.ExchangeDuration.Observe(d.Seconds())
}
