// Package verification checks hash-lock pre-images, the one mechanism that
// makes a bridge transfer atomic.
package verification

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/vitwit/htlcbridge/types"
)

var (
	ErrPreImageMismatch = errors.New("pre-image does not match hash lock")
	ErrEmptyPreImage    = errors.New("pre-image is empty")
)

// Hasher commits a secret into a chain's hash encoding.
type Hasher[H types.BridgeHash] interface {
	Hash(secret types.HashLockPreImage) H
}

// SHA256Hasher hashes secrets with SHA-256 into a Hash32.
type SHA256Hasher struct{}

func (SHA256Hasher) Hash(secret types.HashLockPreImage) types.Hash32 {
	return types.Hash32(sha256.Sum256(secret))
}

// Keccak256Hasher hashes secrets the way EVM bridge contracts do
// (keccak256 over the raw secret bytes).
type Keccak256Hasher struct{}

func (Keccak256Hasher) Hash(secret types.HashLockPreImage) common.Hash {
	return crypto.Keccak256Hash(secret)
}

// NewHashLock commits secret with h.
func NewHashLock[H types.BridgeHash](h Hasher[H], secret types.HashLockPreImage) types.HashLock[H] {
	return types.NewHashLock(h.Hash(secret))
}

// Verifier checks revealed secrets against hash locks.
type Verifier[H types.BridgeHash] struct {
	hasher Hasher[H]
}

// NewVerifier creates a verifier that hashes with h.
func NewVerifier[H types.BridgeHash](h Hasher[H]) *Verifier[H] {
	return &Verifier[H]{hasher: h}
}

// Verify returns nil when secret hashes to lock and ErrPreImageMismatch
// otherwise.
func (v *Verifier[H]) Verify(lock types.HashLock[H], secret types.HashLockPreImage) error {
	if len(secret) == 0 {
		return ErrEmptyPreImage
	}

	got := v.hasher.Hash(secret)
	want := lock.Inner()
	if subtle.ConstantTimeCompare(got.Bytes(), want.Bytes()) != 1 {
		return fmt.Errorf("%w: lock %s", ErrPreImageMismatch, lock)
	}

	return nil
}

// Matches reports whether secret opens lock.
func (v *Verifier[H]) Matches(lock types.HashLock[H], secret types.HashLockPreImage) bool {
	return v.Verify(lock, secret) == nil
}

// Lock commits secret with the verifier's hasher.
func (v *Verifier[H]) Lock(secret types.HashLockPreImage) types.HashLock[H] {
	return NewHashLock(v.hasher, secret)
}

// NewSecretAndLock generates a fresh secret and its hash lock.
func NewSecretAndLock[H types.BridgeHash](h Hasher[H]) (types.HashLockPreImage, types.HashLock[H], error) {
	secret, err := types.RandomPreImage()
	if err != nil {
		return nil, types.HashLock[H]{}, err
	}
	return secret, NewHashLock(h, secret), nil
}
