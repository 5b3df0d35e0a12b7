package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/htlcbridge/types"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSecretCommand(t *testing.T) {
	for _, hasher := range []string{"sha256", "keccak256"} {
		t.Run(hasher, func(t *testing.T) {
			out, err := execute(t, "secret", "--hasher", hasher)
			require.NoError(t, err)

			var got map[string]string
			require.NoError(t, json.Unmarshal([]byte(out), &got))
			assert.Equal(t, hasher, got["hasher"])
			assert.Len(t, got["secret"], 64)
			assert.NotEmpty(t, got["hashLock"])
		})
	}

	_, err := execute(t, "secret", "--hasher", "md5")
	assert.Error(t, err)
}

func TestParseCommand(t *testing.T) {
	out, err := execute(t, "parse", strings.Repeat("AB", 32))
	require.NoError(t, err)
	assert.Contains(t, out, strings.Repeat("ab", 32))

	_, err = execute(t, "parse", "abc")
	assert.ErrorIs(t, err, types.ErrHexDecode)

	_, err = execute(t, "parse", "abcd")
	assert.ErrorIs(t, err, types.ErrInvalidLength)
}

func TestAddressCommand(t *testing.T) {
	out, err := execute(t, "address", "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	assert.Contains(t, out, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
}

func TestSimulateCommand(t *testing.T) {
	out, err := execute(t, "simulate", "--timeout", "10s")
	require.NoError(t, err)
	assert.Contains(t, out, "initiated")
	assert.Contains(t, out, "counterparty_completed")
	assert.Contains(t, out, "initiator_completed")
	assert.NotContains(t, out, "lock_failed")
}

func TestSimulateWithLockFailure(t *testing.T) {
	out, err := execute(t, "simulate", "--fail-lock", "--timeout", "10s")
	require.NoError(t, err)
	assert.Contains(t, out, "lock_failed")
	assert.Contains(t, out, "simulated lock failure")
	assert.Contains(t, out, "initiator_completed")
}

func TestSimulateWithConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bridge.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"initiator": {"network": "simulated"},
		"counterparty": {"network": "simulated"},
		"callTimeout": "2s",
		"storePath": "`+filepath.ToSlash(filepath.Join(dir, "store"))+`"
	}`), 0o600))

	out, err := execute(t, "simulate", "--config", path, "--timeout", "10s")
	require.NoError(t, err)
	assert.Contains(t, out, "initiator_completed")

	require.NoError(t, os.WriteFile(path, []byte(`{
		"initiator": {"network": "simulated"},
		"counterparty": {"network": "sepolia", "rpcUrl": "http://localhost:8545", "contractAddress": "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"}
	}`), 0o600))
	_, err = execute(t, "simulate", "--config", path)
	assert.Error(t, err)
}
