package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "geabridge"

// Metrics contains the bridge's collectors.
type Metrics struct {
	MessagesReceived   *prometheus.CounterVec
	ManifestsResolved  *prometheus.CounterVec
	ERDsPromoted       prometheus.Counter
	ERDsDemoted        prometheus.Counter
	EntitiesRegistered *prometheus.CounterVec
	TransformsApplied  *prometheus.CounterVec
	OutboundWrites     *prometheus.CounterVec
	Devices            prometheus.Gauge
}

// New creates the collectors. Call Register to expose them.
func New() *Metrics {
	return &Metrics{
		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "messages_received_total",
				Help:      "Inbound ERD messages by outcome (presence, supported, manifest, unsupported)",
			},
			[]string{"outcome"},
		),
		ManifestsResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "manifests_total",
				Help:      "Manifest announcements by result (resolved, unknown_version, invalid)",
			},
			[]string{"result"},
		),
		ERDsPromoted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "erds_promoted_total",
				Help:      "ERDs moved into a device's supported set",
			},
		),
		ERDsDemoted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "erds_demoted_total",
				Help:      "ERDs moved out of a device's supported set by a manifest change",
			},
		),
		EntitiesRegistered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "entity",
				Name:      "registered_total",
				Help:      "Entities registered by kind",
			},
			[]string{"kind"},
		),
		TransformsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "meta",
				Name:      "transforms_total",
				Help:      "Meta-ERD transforms applied by kind",
			},
			[]string{"kind"},
		),
		OutboundWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "entity",
				Name:      "outbound_writes_total",
				Help:      "Entity commands sent to the appliance by status (ok, rejected, failed)",
			},
			[]string{"status"},
		),
		Devices: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "discovery",
				Name:      "devices",
				Help:      "Devices seen since start",
			},
		),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.MessagesReceived,
		m.ManifestsResolved,
		m.ERDsPromoted,
		m.ERDsDemoted,
		m.EntitiesRegistered,
		m.TransformsApplied,
		m.OutboundWrites,
		m.Devices,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MessageReceived counts an inbound message by outcome.
func (m *Metrics) MessageReceived(outcome string) {
	if m == nil {
		return
	}
	m.MessagesReceived.WithLabelValues(outcome).Inc()
}

// ManifestResult counts a manifest announcement by result.
func (m *Metrics) ManifestResult(result string) {
	if m == nil {
		return
	}
	m.ManifestsResolved.WithLabelValues(result).Inc()
}

// Promoted counts n promotions.
func (m *Metrics) Promoted(n int) {
	if m == nil {
		return
	}
	m.ERDsPromoted.Add(float64(n))
}

// Demoted counts n demotions.
func (m *Metrics) Demoted(n int) {
	if m == nil {
		return
	}
	m.ERDsDemoted.Add(float64(n))
}

// EntityRegistered counts an entity of kind.
func (m *Metrics) EntityRegistered(kind string) {
	if m == nil {
		return
	}
	m.EntitiesRegistered.WithLabelValues(kind).Inc()
}

// TransformApplied counts one transform of kind.
func (m *Metrics) TransformApplied(kind string) {
	if m == nil {
		return
	}
	m.TransformsApplied.WithLabelValues(kind).Inc()
}

// OutboundWrite counts an entity command by status.
func (m *Metrics) OutboundWrite(status string) {
	if m == nil {
		return
	}
	m.OutboundWrites.WithLabelValues(status).Inc()
}

// DeviceAdded increments the device gauge.
func (m *Metrics) DeviceAdded() {
	if m == nil {
		return
	}
	m.Devices.Inc()
}
