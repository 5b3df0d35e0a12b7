package types

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// EthValueKind tells which assets an EthValue carries.
type EthValueKind uint8

const (
	EthValueWeth EthValueKind = iota + 1
	EthValueEth
	EthValueWethAndEth
)

func (k EthValueKind) String() string {
	switch k {
	case EthValueWeth:
		return "weth"
	case EthValueEth:
		return "eth"
	case EthValueWethAndEth:
		return "weth+eth"
	default:
		return "unknown"
	}
}

// EthValue is the value encoding of EVM chains: wrapped ether, native ether,
// or both at once. Quantities are in wei.
type EthValue struct {
	kind EthValueKind
	weth uint64
	eth  uint64
}

func WethValue(v uint64) EthValue {
	return EthValue{kind: EthValueWeth, weth: v}
}

func EthOnlyValue(v uint64) EthValue {
	return EthValue{kind: EthValueEth, eth: v}
}

func WethAndEthValue(weth, eth uint64) EthValue {
	return EthValue{kind: EthValueWethAndEth, weth: weth, eth: eth}
}

func (v EthValue) Kind() EthValueKind {
	return v.kind
}

// Weth returns the wrapped-ether quantity, or 0 when v carries none.
func (v EthValue) Weth() uint64 {
	switch v.kind {
	case EthValueWeth, EthValueWethAndEth:
		return v.weth
	default:
		return 0
	}
}

// Eth returns the native-ether quantity, or 0 when v carries none.
func (v EthValue) Eth() uint64 {
	switch v.kind {
	case EthValueEth, EthValueWethAndEth:
		return v.eth
	default:
		return 0
	}
}

func (v EthValue) IsPositive() bool {
	return v.Weth() > 0 || v.Eth() > 0
}

// Decimal renders both quantities scaled down by decimals (18 for ether).
func (v EthValue) Decimal(decimals int32) (weth, eth decimal.Decimal) {
	weth = decimal.NewFromBigInt(new(big.Int).SetUint64(v.Weth()), -decimals)
	eth = decimal.NewFromBigInt(new(big.Int).SetUint64(v.Eth()), -decimals)
	return weth, eth
}

func (v EthValue) String() string {
	switch v.kind {
	case EthValueWeth:
		return fmt.Sprintf("weth(%d)", v.weth)
	case EthValueEth:
		return fmt.Sprintf("eth(%d)", v.eth)
	case EthValueWethAndEth:
		return fmt.Sprintf("weth(%d)+eth(%d)", v.weth, v.eth)
	default:
		return "none"
	}
}

// AmountFromUint256 reads a native-ether amount and fails when v does not
// fit in 64 bits.
func AmountFromUint256(v *uint256.Int) (Amount[EthValue], error) {
	if v == nil {
		return Amount[EthValue]{}, ErrNilValue
	}
	if !v.IsUint64() {
		return Amount[EthValue]{}, fmt.Errorf("%w: %s", ErrAmountOverflow, v.Dec())
	}
	return NewAmount(EthOnlyValue(v.Uint64())), nil
}

// AmountFromUint256Lossy reads a native-ether amount from the low 64 bits of
// v and discards the rest.
func AmountFromUint256Lossy(v *uint256.Int) Amount[EthValue] {
	if v == nil {
		return NewAmount(EthOnlyValue(0))
	}
	return NewAmount(EthOnlyValue(v.Uint64()))
}
