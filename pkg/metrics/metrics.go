package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "argo"

// CodecMetrics collects metrics of company-file operations.
type CodecMetrics struct {
	fileMetrics
	migrationMetrics
	stagingMetrics
}

// NewCodecMetrics registers codec metrics in reg. Nil reg means
// prometheus.DefaultRegisterer.
func NewCodecMetrics(reg prometheus.Registerer, version string) *CodecMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	file := newFileMetrics()
	file.register(reg)

	migration := newMigrationMetrics()
	migration.register(reg)

	staging := newStagingMetrics()
	staging.register(reg)

	registerVersionMetric(reg, namespace, version)

	return &CodecMetrics{
		fileMetrics:      file,
		migrationMetrics: migration,
		stagingMetrics:   staging,
	}
}
