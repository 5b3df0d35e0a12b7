package types

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/holiman/uint256"
)

// BridgeHash is satisfied by a chain's hash encoding. It is used both for
// transfer identity and for hash locks.
type BridgeHash interface {
	comparable
	Bytes() []byte
}

// BridgeAddress is satisfied by a chain's address encoding.
type BridgeAddress interface {
	Bytes() []byte
}

// BridgeValue is satisfied by a chain's value encoding.
type BridgeValue interface {
	comparable
	IsPositive() bool
}

// HashLength is the byte length of Hash32.
const HashLength = 32

// Hash32 is the fixed 32-byte hash used by byte-hash chain instantiations.
type Hash32 [HashLength]byte

// ParseHash32 decodes exactly 64 hexadecimal characters (either case).
func ParseHash32(s string) (Hash32, error) {
	var h Hash32

	b, err := hex.DecodeString(s)
	if err != nil {
		return h, &ParseError{Kind: ParseErrorHexDecode, Input: s, Err: err}
	}

	if len(b) != HashLength {
		return h, &ParseError{
			Kind:  ParseErrorInvalidLength,
			Input: s,
			Err:   fmt.Errorf("decoded %d bytes, want %d", len(b), HashLength),
		}
	}

	copy(h[:], b)
	return h, nil
}

// Bytes returns a copy of the hash bytes.
func (h Hash32) Bytes() []byte {
	out := make([]byte, HashLength)
	copy(out, h[:])
	return out
}

// String returns the lowercase hex form without prefix.
func (h Hash32) String() string {
	return hex.EncodeToString(h[:])
}

// GenUniqueHash32 draws a fresh hash from r. A nil reader uses crypto/rand.
func GenUniqueHash32(r io.Reader) (Hash32, error) {
	if r == nil {
		r = rand.Reader
	}

	var h Hash32
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return h, fmt.Errorf("failed to generate hash: %w", err)
	}
	return h, nil
}

// TransferID identifies a bridge transfer across both chains.
type TransferID[H BridgeHash] struct {
	hash H
}

// NewTransferID wraps a chain hash as a transfer id.
func NewTransferID[H BridgeHash](h H) TransferID[H] {
	return TransferID[H]{hash: h}
}

// ParseTransferID parses a 64-character hex transfer id.
func ParseTransferID(s string) (TransferID[Hash32], error) {
	h, err := ParseHash32(s)
	if err != nil {
		return TransferID[Hash32]{}, err
	}
	return TransferID[Hash32]{hash: h}, nil
}

// GenTransferID generates a random transfer id from r (crypto/rand when nil).
func GenTransferID(r io.Reader) (TransferID[Hash32], error) {
	h, err := GenUniqueHash32(r)
	if err != nil {
		return TransferID[Hash32]{}, err
	}
	return TransferID[Hash32]{hash: h}, nil
}

func (id TransferID[H]) Inner() H {
	return id.hash
}

// String formats the id as lowercase hex.
func (id TransferID[H]) String() string {
	return hex.EncodeToString(id.hash.Bytes())
}

// HashLock is the committed hash of a secret.
type HashLock[H BridgeHash] struct {
	hash H
}

func NewHashLock[H BridgeHash](h H) HashLock[H] {
	return HashLock[H]{hash: h}
}

// ParseHashLock parses a 64-character hex hash lock.
func ParseHashLock(s string) (HashLock[Hash32], error) {
	h, err := ParseHash32(s)
	if err != nil {
		return HashLock[Hash32]{}, err
	}
	return HashLock[Hash32]{hash: h}, nil
}

func (l HashLock[H]) Inner() H {
	return l.hash
}

func (l HashLock[H]) String() string {
	return hex.EncodeToString(l.hash.Bytes())
}

// PreImageLength is the size of a freshly generated secret.
const PreImageLength = 32

// HashLockPreImage is the secret whose hash is committed in a HashLock.
type HashLockPreImage []byte

// RandomPreImage generates a 32-byte secret from crypto/rand.
func RandomPreImage() (HashLockPreImage, error) {
	secret := make([]byte, PreImageLength)
	if _, err := io.ReadFull(rand.Reader, secret); err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	return HashLockPreImage(secret), nil
}

// Equal compares secrets byte for byte.
func (p HashLockPreImage) Equal(other HashLockPreImage) bool {
	return bytes.Equal(p, other)
}

func (p HashLockPreImage) String() string {
	return hex.EncodeToString(p)
}

// TimeLock is a deadline expressed in the chain's clock units.
type TimeLock uint64

// TimeLockFromUint256 narrows a 256-bit value and fails when any bit above
// the low 64 is set.
func TimeLockFromUint256(v *uint256.Int) (TimeLock, error) {
	if v == nil {
		return 0, ErrNilValue
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrTimeLockOverflow, v.Dec())
	}
	return TimeLock(v.Uint64()), nil
}

// TimeLockFromUint256Lossy keeps the low 64 bits of v and discards the rest.
func TimeLockFromUint256Lossy(v *uint256.Int) TimeLock {
	if v == nil {
		return 0
	}
	return TimeLock(v.Uint64())
}
