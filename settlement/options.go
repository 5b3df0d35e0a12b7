package settlement

import (
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/vitwit/htlcbridge/logger"
	"github.com/vitwit/htlcbridge/metrics"
	"github.com/vitwit/htlcbridge/storage"
	"github.com/vitwit/htlcbridge/types"
)

type settings struct {
	logger       logger.Logger
	metrics      metrics.Recorder
	store        storage.TransferStore
	bus          evbus.Bus
	callTimeout  time.Duration
	retryCount   int
	retryBackoff time.Duration
	eventBuffer  int
}

func defaultSettings() settings {
	return settings{
		logger:       logger.NoopLogger{},
		metrics:      metrics.NoopRecorder{},
		callTimeout:  types.DefaultCallTimeout,
		retryCount:   types.DefaultRetryCount,
		retryBackoff: types.DefaultRetryBackoff,
		eventBuffer:  64,
	}
}

type Option func(*settings)

func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		s.logger = logger.OrNoop(l)
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(s *settings) {
		s.metrics = metrics.OrNoop(r)
	}
}

// WithStore sets the transfer store. The default is a fresh MemoryStore.
func WithStore(st storage.TransferStore) Option {
	return func(s *settings) {
		s.store = st
	}
}

// WithBus publishes events on an existing bus instead of a private one.
func WithBus(b evbus.Bus) Option {
	return func(s *settings) {
		s.bus = b
	}
}

// WithCallTimeout bounds every single contract call.
func WithCallTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.callTimeout = d
	}
}

// WithRetry sets how often a retryable call is repeated and the initial
// backoff, which doubles after each attempt.
func WithRetry(count int, backoff time.Duration) Option {
	return func(s *settings) {
		s.retryCount = count
		s.retryBackoff = backoff
	}
}

// WithEventBuffer sets the capacity of the Events channel. Zero disables
// the channel; listeners then use Subscribe only.
func WithEventBuffer(n int) Option {
	return func(s *settings) {
		s.eventBuffer = n
	}
}

// FromConfig applies the call and retry settings of cfg. A RetryCount of
// types.NoRetries makes every call a single attempt.
func FromConfig(cfg types.BridgeConfig) Option {
	cfg = cfg.WithDefaults()
	return func(s *settings) {
		s.callTimeout = cfg.CallTimeout
		s.retryCount = max(cfg.RetryCount, 0)
		s.retryBackoff = cfg.RetryBackoff
	}
}
