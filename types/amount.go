package types

import (
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
)

// Amount wraps a chain's value encoding.
type Amount[V BridgeValue] struct {
	value V
}

func NewAmount[V BridgeValue](v V) Amount[V] {
	return Amount[V]{value: v}
}

func (a Amount[V]) Value() V {
	return a.value
}

func (a Amount[V]) IsPositive() bool {
	return a.value.IsPositive()
}

func (a Amount[V]) String() string {
	return fmt.Sprint(a.value)
}

// Units is a single-asset value counted in the chain's smallest unit.
type Units uint64

func (u Units) IsPositive() bool {
	return u > 0
}

func (u Units) String() string {
	return strconv.FormatUint(uint64(u), 10)
}

// UnitsFromUint256 narrows v and fails when any bit above the low 64 is set.
func UnitsFromUint256(v *uint256.Int) (Units, error) {
	if v == nil {
		return 0, ErrNilValue
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrAmountOverflow, v.Dec())
	}
	return Units(v.Uint64()), nil
}
