package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const migrationSubsystem = "migration"

type migrationMetrics struct {
	applied   *prometheus.CounterVec
	rollbacks prometheus.Counter
}

func newMigrationMetrics() migrationMetrics {
	return migrationMetrics{
		applied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: migrationSubsystem,
			Name:      "applied_total",
			Help:      "Number of files migrated by source schema",
		}, []string{"from"}),
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: migrationSubsystem,
			Name:      "rollbacks_total",
			Help:      "Number of failed migrations rolled back from the backup",
		}),
	}
}

func (m migrationMetrics) register(reg prometheus.Registerer) {
	reg.MustRegister(m.applied, m.rollbacks)
}

// IncMigrations counts a successful migration from the given schema.
func (m migrationMetrics) IncMigrations(from uint32) {
	m.applied.With(prometheus.Labels{"from": strconv.FormatUint(uint64(from), 10)}).Inc()
}

// IncRollbacks counts a rollback after a failed migration.
func (m migrationMetrics) IncRollbacks() {
	m.rollbacks.Inc()
}
