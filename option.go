package htlcbridge

import (
	"time"

	"github.com/vitwit/htlcbridge/logger"
	"github.com/vitwit/htlcbridge/metrics"
	"github.com/vitwit/htlcbridge/storage"
)

type Option func(*Bridge)

func WithLogger(l logger.Logger) Option {
	return func(b *Bridge) {
		b.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(b *Bridge) {
		b.metrics = r
	}
}

// WithTimeout overrides the per-call timeout of the config.
func WithTimeout(t time.Duration) Option {
	return func(b *Bridge) {
		b.config.CallTimeout = t
	}
}

// WithStore uses st instead of opening the configured store. The caller
// keeps ownership of st.
func WithStore(st storage.TransferStore) Option {
	return func(b *Bridge) {
		b.store = st
	}
}
