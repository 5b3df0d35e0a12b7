package clients

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/htlcbridge/types"
)

func TestEVMAddressCodecRoundTrip(t *testing.T) {
	codec := EVMAddressCodec{}
	raw := types.RawAddressFromString("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

	require.NoError(t, codec.ValidateRaw(raw))

	addr := codec.FromRaw(raw)
	assert.Equal(t, common.HexToAddress("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"), addr)
	assert.True(t, raw.Equal(codec.ToRaw(addr)))

	recipient := types.ResolveRecipient(types.NewRecipientAddress(raw), codec)
	back := types.RecipientToRaw(recipient, codec)
	assert.Equal(t, raw.Bytes(), back.Bytes())
}

func TestEVMAddressCodecValidateRaw(t *testing.T) {
	codec := EVMAddressCodec{}
	assert.Error(t, codec.ValidateRaw(types.RawAddressFromString("0x1234")))
	assert.Error(t, codec.ValidateRaw(types.RawAddressFromString("not an address")))

	for _, s := range []string{
		"0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266",
		"f39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		"0xF39FD6E51AAD88F6F4CE6AB8827279CFFFB92266",
		"0xF39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
	} {
		assert.Error(t, codec.ValidateRaw(types.RawAddressFromString(s)), s)
	}

	raw := types.RawAddressFromString("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	require.NoError(t, codec.ValidateRaw(raw))
	assert.Equal(t, raw.Bytes(), codec.ToRaw(codec.FromRaw(raw)).Bytes())
}

func TestEVMHashConverter(t *testing.T) {
	h, err := types.ParseHash32("65462b0520ef7d3df61b9992ed3bea0c56ead753be7c8b3614e0ce01e4cac41b")
	require.NoError(t, err)

	id := types.NewTransferID(h)
	evmID := types.ConvertTransferID(id, EVMHashConverter())
	assert.Equal(t, common.HexToHash("0x65462b0520ef7d3df61b9992ed3bea0c56ead753be7c8b3614e0ce01e4cac41b"), evmID.Inner())
	assert.Equal(t, id.String(), evmID.String())

	back := types.ConvertTransferID(evmID, EVMHashToHash32())
	assert.Equal(t, id, back)
}

func TestSolanaAddressCodec(t *testing.T) {
	codec := SolanaAddressCodec{}
	raw := types.RawAddressFromString("11111111111111111111111111111111")

	require.NoError(t, codec.ValidateRaw(raw))
	pk := codec.FromRaw(raw)
	assert.Equal(t, solana.SystemProgramID, pk)
	assert.Equal(t, raw.String(), codec.ToRaw(pk).String())

	bad := types.RawAddressFromString("0OIl")
	assert.Error(t, codec.ValidateRaw(bad))
	assert.Equal(t, solana.PublicKey{}, codec.FromRaw(bad))
}
