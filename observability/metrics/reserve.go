package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type ReserveMetrics struct {
	attestationsAccepted *prometheus.CounterVec
	consensusRounds      *prometheus.CounterVec
	forcedConsensus      *prometheus.CounterVec
	emergencyOverrides   *prometheus.CounterVec
	attestersInactive    *prometheus.CounterVec
	attestersReactivated *prometheus.CounterVec
}

var (
	reserveOnce     sync.Once
	reserveRegistry *ReserveMetrics
)

func Reserve() *ReserveMetrics {
	reserveOnce.Do(func() {
		reserveRegistry = &ReserveMetrics{
			attestationsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "reserve_attestations_accepted_total",
				Help: "Count of accepted balance attestations by subject.",
			}, []string{"subject"}),
			consensusRounds: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "reserve_consensus_rounds_total",
				Help: "Count of quorum finalizations by subject.",
			}, []string{"subject"}),
			forcedConsensus: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "reserve_forced_consensus_total",
				Help: "Count of arbiter-forced finalizations by subject.",
			}, []string{"subject"}),
			emergencyOverrides: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "reserve_emergency_overrides_total",
				Help: "Count of direct emergency balance overwrites by subject.",
			}, []string{"subject"}),
			attestersInactive: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "reserve_attesters_marked_inactive_total",
				Help: "Count of attesters deactivated by the liveness sweep.",
			}, []string{"subject"}),
			attestersReactivated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "reserve_attesters_reactivated_total",
				Help: "Count of previously inactive attesters resuming reports.",
			}, []string{"subject"}),
		}
		prometheus.MustRegister(
			reserveRegistry.attestationsAccepted,
			reserveRegistry.consensusRounds,
			reserveRegistry.forcedConsensus,
			reserveRegistry.emergencyOverrides,
			reserveRegistry.attestersInactive,
			reserveRegistry.attestersReactivated,
		)
	})
	return reserveRegistry
}

func (m *ReserveMetrics) ObserveAttestation(subject string) {
	if m == nil {
		return
	}
	m.attestationsAccepted.WithLabelValues(subject).Inc()
}

func (m *ReserveMetrics) ObserveConsensus(subject string) {
	if m == nil {
		return
	}
	m.consensusRounds.WithLabelValues(subject).Inc()
}

func (m *ReserveMetrics) ObserveForcedConsensus(subject string) {
	if m == nil {
		return
	}
	m.forcedConsensus.WithLabelValues(subject).Inc()
}

func (m *ReserveMetrics) ObserveEmergencyOverride(subject string) {
	if m == nil {
		return
	}
	m.emergencyOverrides.WithLabelValues(subject).Inc()
}

func (m *ReserveMetrics) ObserveAttesterInactive(subject string) {
	if m == nil {
		return
	}
	m.attestersInactive.WithLabelValues(subject).Inc()
}

func (m *ReserveMetrics) ObserveAttesterReactivated(subject string) {
	if m == nil {
		return
	}
	m.attestersReactivated.WithLabelValues(subject).Inc()
}
