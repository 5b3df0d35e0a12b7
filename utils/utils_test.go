package utils

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/htlcbridge/types"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{
		"initiator": {"network": "simulated", "pollInterval": "250ms"},
		"counterparty": {"network": "simulated"},
		"callTimeout": "5s",
		"retryCount": 2,
		"logLevel": "debug"
	}`))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.CallTimeout)
	assert.Equal(t, 2, cfg.RetryCount)
	assert.Equal(t, types.DefaultRetryBackoff, cfg.RetryBackoff)
	assert.Equal(t, 250*time.Millisecond, cfg.Initiator.PollInterval)
	assert.Equal(t, types.DefaultPollInterval, cfg.Counterparty.PollInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseConfigRetryCount(t *testing.T) {
	base := `{"initiator": {"network": "simulated"}, "counterparty": {"network": "simulated"}`

	cfg, err := ParseConfig([]byte(base + `}`))
	require.NoError(t, err)
	assert.Equal(t, types.DefaultRetryCount, cfg.RetryCount)

	cfg, err = ParseConfig([]byte(base + `, "retryCount": -1}`))
	require.NoError(t, err)
	assert.Equal(t, types.NoRetries, cfg.RetryCount)

	_, err = ParseConfig([]byte(base + `, "retryCount": -2}`))
	var bridgeErr *types.BridgeError
	require.ErrorAs(t, err, &bridgeErr)
	assert.Equal(t, types.ErrConfigError, bridgeErr.Code)
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		code string
	}{
		{"malformed", `{`, types.ErrConfigError},
		{"bad duration", `{"callTimeout": "soon"}`, types.ErrConfigError},
		{"bad log level", `{"initiator": {"network": "simulated"}, "counterparty": {"network": "simulated"}, "logLevel": "loud"}`, types.ErrConfigError},
		{"unknown network", `{"initiator": {"network": "dogechain"}, "counterparty": {"network": "simulated"}}`, types.ErrUnsupportedNetwork},
		{"evm without rpc", `{"initiator": {"network": "sepolia"}, "counterparty": {"network": "simulated"}}`, types.ErrConfigError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.data))
			var bridgeErr *types.BridgeError
			require.ErrorAs(t, err, &bridgeErr)
			assert.Equal(t, tt.code, bridgeErr.Code)
		})
	}
}

func TestParseAndFormatUnits(t *testing.T) {
	v, err := ParseUnits("1.5", 18)
	require.NoError(t, err)
	want, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Equal(t, 0, want.Cmp(v))
	assert.Equal(t, "1.5", FormatUnits(v, 18))

	_, err = ParseUnits("0.0000001", 6)
	assert.Error(t, err)
	_, err = ParseUnits("-1", 6)
	assert.Error(t, err)
	_, err = ParseUnits("abc", 6)
	assert.Error(t, err)

	u, err := ParseUnits64("12.345678", 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(12345678), u)

	_, err = ParseUnits64("100", 18)
	assert.ErrorIs(t, err, types.ErrAmountOverflow)

	assert.Equal(t, "0", FormatUnits(nil, 6))
}

func TestValidateAddressForNetwork(t *testing.T) {
	assert.NoError(t, ValidateAddressForNetwork("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", types.NetworkSepolia))
	assert.Error(t, ValidateAddressForNetwork("0x1234", types.NetworkSepolia))
	assert.NoError(t, ValidateAddressForNetwork("11111111111111111111111111111111", types.NetworkSolanaDevnet))
	assert.Error(t, ValidateAddressForNetwork("0OIl", types.NetworkSolanaDevnet))
	assert.NoError(t, ValidateAddressForNetwork("anything", types.NetworkSimulated))
	assert.Error(t, ValidateAddressForNetwork("", types.NetworkSimulated))
	assert.Error(t, ValidateAddressForNetwork("x", types.Network("dogechain")))
}

func TestKeys(t *testing.T) {
	// Well-known development key.
	const hexKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	addr, err := AddressFromHexKey(hexKey)
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", addr.Hex())

	_, err = PrivateKeyFromHex("")
	assert.Error(t, err)
	_, err = PrivateKeyFromHex("zz")
	assert.Error(t, err)

	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", NormalizeAddress("0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"))
	assert.Empty(t, NormalizeAddress("nope"))
}
