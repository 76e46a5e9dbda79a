package staging

import (
	"time"

	"go.uber.org/zap"
)

// Metrics counts staging areas held by the process.
type Metrics interface {
	IncStagingAreas()
	DecStagingAreas()
}

type noopMetrics struct{}

func (noopMetrics) IncStagingAreas() {}
func (noopMetrics) DecStagingAreas() {}

type cfg struct {
	log     *zap.Logger
	timeout time.Duration
	now     func() time.Time
	metrics Metrics
}

// Option allows setting optional parameters of Acquire and Scan.
type Option func(*cfg)

func defaultCfg() *cfg {
	return &cfg{
		log:     zap.NewNop(),
		timeout: 100 * time.Millisecond,
		now:     time.Now,
		metrics: noopMetrics{},
	}
}

// WithLogger returns an option to specify logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *cfg) {
		c.log = l
	}
}

// WithTimeout returns an option to specify how long to wait for the session
// marker lock. Scan treats markers locked for longer as live sessions.
func WithTimeout(d time.Duration) Option {
	return func(c *cfg) {
		c.timeout = d
	}
}

// WithClock returns an option to specify time source for modification marks.
func WithClock(now func() time.Time) Option {
	return func(c *cfg) {
		c.now = now
	}
}

// WithMetrics returns an option to specify metrics of held areas.
func WithMetrics(m Metrics) Option {
	return func(c *cfg) {
		c.metrics = m
	}
}
