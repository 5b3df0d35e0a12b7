package utils

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/vitwit/htlcbridge/types"
)

var validate = validator.New()

var (
	bridgeDurationKeys = []string{"callTimeout", "retryBackoff"}
	chainDurationKeys  = []string{"pollInterval"}
)

// ParseConfig parses and validates a BridgeConfig from JSON. Durations may
// be given as Go duration strings ("30s") or as nanoseconds. Defaults are
// applied to the result.
func ParseConfig(data []byte) (*types.BridgeConfig, error) {
	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, configError("failed to parse bridge config: %v", err)
	}

	if err := normalizeDurations(raw, bridgeDurationKeys); err != nil {
		return nil, err
	}
	for _, side := range []string{"initiator", "counterparty"} {
		if chain, ok := raw[side].(map[string]any); ok {
			if err := normalizeDurations(chain, chainDurationKeys); err != nil {
				return nil, err
			}
		}
	}

	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, configError("failed to normalize bridge config: %v", err)
	}

	var cfg types.BridgeConfig
	if err := json.Unmarshal(normalized, &cfg); err != nil {
		return nil, configError("failed to parse bridge config: %v", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, configError("validation failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg = cfg.WithDefaults()
	return &cfg, nil
}

// SerializeConfig renders cfg as indented JSON.
func SerializeConfig(cfg *types.BridgeConfig) ([]byte, error) {
	return json.MarshalIndent(cfg, "", "  ")
}

func normalizeDurations(m map[string]any, keys []string) error {
	for _, k := range keys {
		s, ok := m[k].(string)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return configError("invalid duration for %s: %v", k, err)
		}
		m[k] = int64(d)
	}
	return nil
}

func configError(format string, args ...any) error {
	return &types.BridgeError{
		Code:    types.ErrConfigError,
		Message: fmt.Sprintf(format, args...),
	}
}
