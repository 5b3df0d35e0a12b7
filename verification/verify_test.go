package verification

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/htlcbridge/types"
)

func TestSHA256Verifier(t *testing.T) {
	v := NewVerifier[types.Hash32](SHA256Hasher{})
	secret := types.HashLockPreImage("secret")
	lock := v.Lock(secret)

	// sha256("secret")
	assert.Equal(t, "2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b", lock.String())
	require.NoError(t, v.Verify(lock, secret))
	assert.True(t, v.Matches(lock, types.HashLockPreImage("secret")))

	err := v.Verify(lock, types.HashLockPreImage("invalid_secret"))
	assert.ErrorIs(t, err, ErrPreImageMismatch)
	assert.ErrorIs(t, v.Verify(lock, nil), ErrEmptyPreImage)
}

func TestKeccak256Verifier(t *testing.T) {
	v := NewVerifier[common.Hash](Keccak256Hasher{})
	secret := types.HashLockPreImage("secret")
	lock := NewHashLock[common.Hash](Keccak256Hasher{}, secret)

	// keccak256("secret")
	assert.Equal(t, "65462b0520ef7d3df61b9992ed3bea0c56ead753be7c8b3614e0ce01e4cac41b", lock.String())
	assert.NoError(t, v.Verify(lock, secret))
	assert.Error(t, v.Verify(lock, types.HashLockPreImage("other")))
}

func TestNewSecretAndLock(t *testing.T) {
	secret, lock, err := NewSecretAndLock[types.Hash32](SHA256Hasher{})
	require.NoError(t, err)
	assert.Len(t, secret, types.PreImageLength)
	assert.NoError(t, NewVerifier[types.Hash32](SHA256Hasher{}).Verify(lock, secret))
}
