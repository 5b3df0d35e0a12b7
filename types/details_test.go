package types

import (
	"strings"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upperCodec is a test encoding whose native form is the upper-cased text.
type upperCodec struct{}

func (upperCodec) FromRaw(r RawAddress) RawAddress {
	return RawAddress(strings.ToUpper(string(r)))
}

func (upperCodec) ToRaw(a RawAddress) RawAddress {
	return RawAddress(strings.ToLower(string(a)))
}

type altHash [HashLength]byte

func (h altHash) Bytes() []byte { return h[:] }

func sampleTransfer(t *testing.T) BridgeTransferDetails[RawAddress, Hash32, Units] {
	t.Helper()

	id, err := ParseTransferID(sampleHex)
	require.NoError(t, err)
	lock, err := ParseHashLock(strings.Repeat("ab", 32))
	require.NoError(t, err)

	return BridgeTransferDetails[RawAddress, Hash32, Units]{
		BridgeTransferID: id,
		InitiatorAddress: InitiatorAddressFromString("initiator"),
		RecipientAddress: RecipientAddressFromString("recipient"),
		HashLock:         lock,
		TimeLock:         100,
		Amount:           NewAmount(Units(1000)),
	}
}

func TestCompletedFromBridgeTransferDetails(t *testing.T) {
	d := sampleTransfer(t)
	secret := HashLockPreImage("secret")

	c := CompletedFromBridgeTransferDetails(d, secret, RawCodec{})

	assert.Equal(t, d.BridgeTransferID, c.BridgeTransferID)
	assert.Equal(t, d.HashLock, c.HashLock)
	assert.Equal(t, d.Amount, c.Amount)
	assert.True(t, c.Secret.Equal(secret))
	assert.Equal(t, "initiator", c.InitiatorAddress.Inner().String())
	assert.Equal(t, "recipient", c.RecipientAddress.Inner().String())
}

func TestCompletedFromBridgeTransferDetails_ConvertsAddresses(t *testing.T) {
	d := sampleTransfer(t)
	d.InitiatorAddress = NewInitiatorAddress(RawAddress("INITIATOR"))

	c := CompletedFromBridgeTransferDetails(d, HashLockPreImage("s"), upperCodec{})

	assert.Equal(t, "initiator", c.InitiatorAddress.Inner().String())
	assert.Equal(t, "RECIPIENT", c.RecipientAddress.Inner().String())
}

func TestLockDetailsFromTransfer(t *testing.T) {
	d := sampleTransfer(t)

	l := LockDetailsFromTransfer(d, RawCodec{}, upperCodec{}, Hash32Converter[altHash]())

	assert.Equal(t, d.BridgeTransferID.String(), l.BridgeTransferID.String())
	assert.Equal(t, d.HashLock.String(), l.HashLock.String())
	assert.Equal(t, d.TimeLock, l.TimeLock)
	assert.Equal(t, d.Amount, l.Amount)
	assert.Equal(t, "initiator", l.InitiatorAddress.Inner().String())
	assert.Equal(t, "RECIPIENT", l.RecipientAddress.Inner().String())

	back := ConvertTransferID(l.BridgeTransferID, ToHash32Converter[altHash]())
	assert.Equal(t, d.BridgeTransferID, back)

	c := CompletedFromLockDetails(l, HashLockPreImage("s"))
	assert.Equal(t, l.BridgeTransferID, c.BridgeTransferID)
	assert.Equal(t, l.RecipientAddress, c.RecipientAddress)
	assert.Equal(t, l.Amount, c.Amount)
}

func TestRawAddressRoundTrip(t *testing.T) {
	inputs := [][]byte{
		nil,
		[]byte("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
		[]byte("ünïcødé"),
		{0x00, 0xff, 0x10},
	}

	for _, in := range inputs {
		initiator := InitiatorAddressFromBytes(in)
		raw := InitiatorToRaw(initiator, RawCodec{})
		assert.Equal(t, []byte(RawAddress(in).Bytes()), raw.Bytes())
		assert.Equal(t, initiator.Bytes(), InitiatorFromRaw(raw, RawCodec{}).Bytes())

		recipient := RecipientAddressFromBytes(in)
		resolved := ResolveRecipient(recipient, RawCodec{})
		assert.Equal(t, recipient.Bytes(), RecipientToRaw(resolved, RawCodec{}).Bytes())
	}
}

func TestAddressFromBytesCopies(t *testing.T) {
	b := []byte("alice")
	a := InitiatorAddressFromBytes(b)
	b[0] = 'X'
	assert.Equal(t, "alice", a.Inner().String())
}

func TestEthValueAccessors(t *testing.T) {
	both := NewAmount(WethAndEthValue(7, 9))
	assert.Equal(t, uint64(7), both.Value().Weth())
	assert.Equal(t, uint64(9), both.Value().Eth())

	weth := NewAmount(WethValue(5))
	assert.Equal(t, uint64(5), weth.Value().Weth())
	assert.Equal(t, uint64(0), weth.Value().Eth())

	eth := NewAmount(EthOnlyValue(3))
	assert.Equal(t, uint64(0), eth.Value().Weth())
	assert.Equal(t, uint64(3), eth.Value().Eth())

	assert.False(t, NewAmount(EthValue{}).IsPositive())
	assert.False(t, NewAmount(WethAndEthValue(0, 0)).IsPositive())
	assert.True(t, both.IsPositive())
}

func TestEthValueDecimal(t *testing.T) {
	w, e := WethAndEthValue(1_500_000_000_000_000_000, 250_000_000_000_000_000).Decimal(18)
	assert.Equal(t, "1.5", w.String())
	assert.Equal(t, "0.25", e.String())
}

func TestAmountFromUint256(t *testing.T) {
	a, err := AmountFromUint256(uint256.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, EthValueEth, a.Value().Kind())
	assert.Equal(t, uint64(1000), a.Value().Eth())

	_, err = AmountFromUint256(new(uint256.Int).Lsh(uint256.NewInt(1), 100))
	assert.ErrorIs(t, err, ErrAmountOverflow)

	u, err := UnitsFromUint256(uint256.NewInt(12))
	require.NoError(t, err)
	assert.Equal(t, Units(12), u)
}
