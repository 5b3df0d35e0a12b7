package utils

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/vitwit/htlcbridge/types"
)

// ValidateAmount checks if an amount string is a positive decimal
func ValidateAmount(amount string) (decimal.Decimal, error) {
	if amount == "" {
		return decimal.Zero, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format: %w", err)
	}

	if !dec.IsPositive() {
		return decimal.Zero, fmt.Errorf("amount must be positive")
	}

	return dec, nil
}

// ParseUnits converts a decimal amount such as "1.5" into base units with
// the given number of decimals. Fractions finer than one unit are rejected.
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	dec, err := ValidateAmount(amount)
	if err != nil {
		return nil, err
	}

	scaled := dec.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", amount, decimals)
	}
	return scaled.BigInt(), nil
}

// FormatUnits renders base units as a decimal string.
func FormatUnits(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// ParseUnits64 is ParseUnits for chains whose amounts fit in 64 bits.
func ParseUnits64(amount string, decimals int32) (uint64, error) {
	v, err := ParseUnits(amount, decimals)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, types.ErrAmountOverflow
	}
	return v.Uint64(), nil
}

// ValidateAddressForNetwork checks that address is well formed for the
// chain family of network.
func ValidateAddressForNetwork(address string, network types.Network) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("address cannot be empty")
	}

	switch network.Family() {
	case types.ChainEVM:
		if !common.IsHexAddress(address) {
			return fmt.Errorf("invalid EVM address: %s", address)
		}
	case types.ChainSolana:
		if _, err := solana.PublicKeyFromBase58(address); err != nil {
			return fmt.Errorf("invalid Solana address %s: %w", address, err)
		}
	case types.ChainSimulated:
	default:
		return &types.BridgeError{
			Code:    types.ErrUnsupportedNetwork,
			Message: fmt.Sprintf("unsupported network: %s", network),
		}
	}

	return nil
}
