package paygate

import (
	"time"

	"github.com/vitwit/paygate/logger"
	"github.com/vitwit/paygate/metrics"
)

type Option func(*PayGate)

func WithLogger(l logger.Logger) Option {
	return func(p *PayGate) {
		p.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(p *PayGate) {
		p.metrics = r
	}
}

func WithTimeout(t time.Duration) Option {
	return func(p *PayGate) {
		p.timeout = t
	}
}

// WithClock replaces the time source, used by tests to pin
// subscription-period arithmetic.
func WithClock(now func() time.Time) Option {
	return func(p *PayGate) {
		p.now = now
	}
}
