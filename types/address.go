package types

import "bytes"

// RawAddress is the canonical bridging form of an address: the UTF-8 bytes
// of its textual representation on its home chain.
type RawAddress []byte

// RawAddressFromString copies the UTF-8 bytes of s.
func RawAddressFromString(s string) RawAddress {
	return RawAddress(s)
}

// Bytes returns a copy of the raw address.
func (a RawAddress) Bytes() []byte {
	return bytes.Clone(a)
}

func (a RawAddress) Equal(other RawAddress) bool {
	return bytes.Equal(a, other)
}

func (a RawAddress) String() string {
	return string(a)
}

// InitiatorAddress is the address that initiated a transfer.
type InitiatorAddress[A BridgeAddress] struct {
	addr A
}

func NewInitiatorAddress[A BridgeAddress](a A) InitiatorAddress[A] {
	return InitiatorAddress[A]{addr: a}
}

// InitiatorAddressFromBytes copies b into a raw initiator address.
func InitiatorAddressFromBytes(b []byte) InitiatorAddress[RawAddress] {
	return InitiatorAddress[RawAddress]{addr: RawAddress(bytes.Clone(b))}
}

func InitiatorAddressFromString(s string) InitiatorAddress[RawAddress] {
	return InitiatorAddress[RawAddress]{addr: RawAddressFromString(s)}
}

func (a InitiatorAddress[A]) Inner() A {
	return a.addr
}

func (a InitiatorAddress[A]) Bytes() []byte {
	return a.addr.Bytes()
}

// RecipientAddress is the address that receives the bridged funds.
type RecipientAddress[A BridgeAddress] struct {
	addr A
}

func NewRecipientAddress[A BridgeAddress](a A) RecipientAddress[A] {
	return RecipientAddress[A]{addr: a}
}

// RecipientAddressFromBytes copies b into a raw recipient address.
func RecipientAddressFromBytes(b []byte) RecipientAddress[RawAddress] {
	return RecipientAddress[RawAddress]{addr: RawAddress(bytes.Clone(b))}
}

func RecipientAddressFromString(s string) RecipientAddress[RawAddress] {
	return RecipientAddress[RawAddress]{addr: RawAddressFromString(s)}
}

func (a RecipientAddress[A]) Inner() A {
	return a.addr
}

func (a RecipientAddress[A]) Bytes() []byte {
	return a.addr.Bytes()
}

// InitiatorAddressCounterparty is the initiator as seen on the counterparty
// chain, where it is only known in raw form.
type InitiatorAddressCounterparty = InitiatorAddress[RawAddress]

// RecipientAddressCounterparty is the recipient in the counterparty chain's
// native encoding.
type RecipientAddressCounterparty[A BridgeAddress] = RecipientAddress[A]
