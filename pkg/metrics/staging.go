package metrics

import "github.com/prometheus/client_golang/prometheus"

const stagingSubsystem = "staging"

type stagingMetrics struct {
	active prometheus.Gauge
}

func newStagingMetrics() stagingMetrics {
	return stagingMetrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: stagingSubsystem,
			Name:      "active_areas",
			Help:      "Number of staging areas held by this process",
		}),
	}
}

func (m stagingMetrics) register(reg prometheus.Registerer) {
	reg.MustRegister(m.active)
}

// IncStagingAreas counts an acquired staging area.
func (m stagingMetrics) IncStagingAreas() { m.active.Inc() }

// DecStagingAreas counts a released staging area.
func (m stagingMetrics) DecStagingAreas() { m.active.Dec() }
