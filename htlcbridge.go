// Package htlcbridge wires the pieces of a hash time-locked bridge between
// two chains: chain clients, the settlement service, the transfer store and
// the ambient logging and metrics.
package htlcbridge

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vitwit/htlcbridge/clients"
	"github.com/vitwit/htlcbridge/logger"
	"github.com/vitwit/htlcbridge/metrics"
	"github.com/vitwit/htlcbridge/settlement"
	"github.com/vitwit/htlcbridge/storage"
	"github.com/vitwit/htlcbridge/types"
	"github.com/vitwit/htlcbridge/verification"
)

// Bridge holds the configuration and shared infrastructure of one bridge
// deployment.
type Bridge struct {
	config   types.BridgeConfig
	logger   logger.Logger
	metrics  metrics.Recorder
	registry *prometheus.Registry
	store    storage.TransferStore

	ownsStore bool
}

// New creates a Bridge from config. The config is validated and defaults
// are applied.
func New(config *types.BridgeConfig, opts ...Option) (*Bridge, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	b := &Bridge{config: config.WithDefaults()}
	for _, opt := range opts {
		opt(b)
	}

	if b.logger == nil {
		b.logger = logger.NewZapLogger(b.config.LogLevel)
	}

	if b.metrics == nil {
		b.metrics = metrics.NoopRecorder{}
		if b.config.EnableMetrics {
			b.registry = prometheus.NewRegistry()
			rec, err := metrics.NewPrometheusRecorder(b.registry)
			if err != nil {
				return nil, fmt.Errorf("failed to register metrics: %w", err)
			}
			b.metrics = rec
		}
	}

	if b.store == nil {
		store, err := openStore(b.config.StorePath, b.logger)
		if err != nil {
			return nil, err
		}
		b.store = store
		b.ownsStore = true
	}

	b.logger.Info("bridge configured", map[string]any{
		"initiator":    b.config.Initiator.Network.String(),
		"counterparty": b.config.Counterparty.Network.String(),
		"store":        b.config.StorePath,
	})
	return b, nil
}

// NewWithDefaults creates a Bridge between two simulated chains.
func NewWithDefaults(opts ...Option) (*Bridge, error) {
	return New(&types.BridgeConfig{
		Initiator:    types.ChainConfig{Network: types.NetworkSimulated},
		Counterparty: types.ChainConfig{Network: types.NetworkSimulated},
		CallTimeout:  types.DefaultCallTimeout,
		RetryCount:   types.DefaultRetryCount,
		LogLevel:     types.DefaultLogLevel,
	}, opts...)
}

func openStore(path string, l logger.Logger) (storage.TransferStore, error) {
	if path == "" {
		return storage.NewMemoryStore(), nil
	}
	return storage.NewBadgerStore(path, l)
}

func (b *Bridge) Config() types.BridgeConfig {
	return b.config
}

func (b *Bridge) Logger() logger.Logger {
	return b.logger
}

func (b *Bridge) Metrics() metrics.Recorder {
	return b.metrics
}

// Registry is the prometheus registry created when metrics are enabled and
// no recorder was supplied. It is nil otherwise.
func (b *Bridge) Registry() *prometheus.Registry {
	return b.registry
}

func (b *Bridge) Store() storage.TransferStore {
	return b.store
}

// ServiceOptions returns the settlement options matching the bridge's
// config and infrastructure.
func (b *Bridge) ServiceOptions() []settlement.Option {
	return []settlement.Option{
		settlement.FromConfig(b.config),
		settlement.WithLogger(b.logger),
		settlement.WithMetrics(b.metrics),
		settlement.WithStore(b.store),
	}
}

// NewService creates a settlement service on b's infrastructure.
func NewService[A1, A2 types.BridgeAddress, H1, H2 types.BridgeHash, V types.BridgeValue](
	b *Bridge,
	initiator clients.InitiatorClient[A1, H1, V],
	counterparty clients.CounterpartyClient[A2, H2, V],
	codecs settlement.Codecs[A1, A2, H1, H2],
	verifier *verification.Verifier[H1],
	opts ...settlement.Option,
) (*settlement.Service[A1, A2, H1, H2, V], error) {
	return settlement.New(initiator, counterparty, codecs, verifier, append(b.ServiceOptions(), opts...)...)
}

// NewEVMInitiator connects to the initiator chain when it is an EVM network.
func (b *Bridge) NewEVMInitiator(ctx context.Context, opts ...clients.EVMOption) (*clients.EVMInitiator, error) {
	if !b.config.Initiator.Network.IsEVM() {
		return nil, unsupported(b.config.Initiator.Network, "EVM initiator")
	}
	return clients.NewEVMInitiator(ctx, b.config.Initiator, append([]clients.EVMOption{clients.WithEVMLogger(b.logger)}, opts...)...)
}

// NewEVMCounterparty connects to the counterparty chain when it is an EVM
// network.
func (b *Bridge) NewEVMCounterparty(ctx context.Context, opts ...clients.EVMOption) (*clients.EVMCounterparty, error) {
	if !b.config.Counterparty.Network.IsEVM() {
		return nil, unsupported(b.config.Counterparty.Network, "EVM counterparty")
	}
	return clients.NewEVMCounterparty(ctx, b.config.Counterparty, append([]clients.EVMOption{clients.WithEVMLogger(b.logger)}, opts...)...)
}

func unsupported(n types.Network, what string) error {
	return &types.BridgeError{
		Code:    types.ErrUnsupportedNetwork,
		Message: fmt.Sprintf("network %s cannot host an %s", n, what),
	}
}

// Close releases the store when the bridge opened it.
func (b *Bridge) Close() error {
	if b.ownsStore {
		return b.store.Close()
	}
	return nil
}

// Version information
const (
	Version = "0.1.0"
)

// GetVersion returns version information
func GetVersion() map[string]interface{} {
	return map[string]interface{}{
		"library_version": Version,
		"supported_networks": []string{
			string(types.NetworkEthereum), string(types.NetworkSepolia),
			string(types.NetworkBase), string(types.NetworkBaseSepolia),
			string(types.NetworkPolygon), string(types.NetworkPolygonAmoy),
			string(types.NetworkEVMLocal), string(types.NetworkSimulated),
		},
		"address_encodings": []string{"raw", "evm", "solana"},
		"hashers":           []string{"sha256", "keccak256"},
	}
}
