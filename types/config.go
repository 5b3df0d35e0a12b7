package types

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// ChainConfig describes how to reach one side of the bridge.
type ChainConfig struct {
	Network         Network       `json:"network" validate:"required"`
	RPCUrl          string        `json:"rpcUrl,omitempty" validate:"omitempty,url"`
	ContractAddress string        `json:"contractAddress,omitempty"`
	WETHAddress     string        `json:"wethAddress,omitempty"`
	HexSeed         string        `json:"hexSeed,omitempty"`
	PollInterval    time.Duration `json:"pollInterval,omitempty"`
	Confirmations   uint64        `json:"confirmations,omitempty"`
}

// BridgeConfig contains global configuration for the bridge library.
type BridgeConfig struct {
	Initiator     ChainConfig   `json:"initiator"`
	Counterparty  ChainConfig   `json:"counterparty"`
	CallTimeout   time.Duration `json:"callTimeout,omitempty" validate:"gte=0"`
	RetryCount    int           `json:"retryCount,omitempty" validate:"gte=-1,lte=20"`
	RetryBackoff  time.Duration `json:"retryBackoff,omitempty" validate:"gte=0"`
	LogLevel      string        `json:"logLevel,omitempty" validate:"omitempty,oneof=debug info warn error"`
	EnableMetrics bool          `json:"enableMetrics,omitempty"`
	StorePath     string        `json:"storePath,omitempty"`
}

// Defaults applied when a field is left empty.
const (
	DefaultCallTimeout  = 30 * time.Second
	DefaultRetryCount   = 3
	DefaultRetryBackoff = 500 * time.Millisecond
	DefaultPollInterval = 2 * time.Second
	DefaultLogLevel     = "info"
)

// NoRetries as RetryCount disables retries. Zero means the default.
const NoRetries = -1

var configValidator = validator.New()

// Validate checks struct tags and network support.
func (c *BridgeConfig) Validate() error {
	if c == nil {
		return &BridgeError{Code: ErrConfigError, Message: "config is nil"}
	}

	if err := configValidator.Struct(c); err != nil {
		return &BridgeError{
			Code:    ErrConfigError,
			Message: fmt.Sprintf("validation failed: %v", err),
		}
	}

	for _, cc := range []ChainConfig{c.Initiator, c.Counterparty} {
		if cc.Network.Family() == ChainUnknown {
			return &BridgeError{
				Code:    ErrUnsupportedNetwork,
				Message: fmt.Sprintf("unsupported network: %s", cc.Network),
			}
		}

		if cc.Network.IsSimulated() {
			continue
		}

		if cc.RPCUrl == "" || cc.ContractAddress == "" {
			return &BridgeError{
				Code:    ErrConfigError,
				Message: fmt.Sprintf("network %s requires rpcUrl and contractAddress", cc.Network),
			}
		}
	}

	return nil
}

// WithDefaults returns a copy of c with zero fields set to their defaults.
func (c BridgeConfig) WithDefaults() BridgeConfig {
	if c.CallTimeout == 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.RetryCount == 0 {
		c.RetryCount = DefaultRetryCount
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Initiator.PollInterval == 0 {
		c.Initiator.PollInterval = DefaultPollInterval
	}
	if c.Counterparty.PollInterval == 0 {
		c.Counterparty.PollInterval = DefaultPollInterval
	}
	return c
}
