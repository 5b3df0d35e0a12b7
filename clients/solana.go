package clients

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/htlcbridge/types"
)

// SolanaAddressCodec moves Solana public keys to and from their raw bridging
// form, the UTF-8 bytes of the base58 text.
type SolanaAddressCodec struct{}

var _ types.AddressCodec[solana.PublicKey] = SolanaAddressCodec{}

// FromRaw decodes r and returns the zero key when r is not valid base58.
// Run ValidateRaw first on untrusted input.
func (SolanaAddressCodec) FromRaw(r types.RawAddress) solana.PublicKey {
	pk, err := solana.PublicKeyFromBase58(r.String())
	if err != nil {
		return solana.PublicKey{}
	}
	return pk
}

func (SolanaAddressCodec) ToRaw(pk solana.PublicKey) types.RawAddress {
	return types.RawAddressFromString(pk.String())
}

// ValidateRaw reports whether r decodes to a 32-byte public key.
func (SolanaAddressCodec) ValidateRaw(r types.RawAddress) error {
	if _, err := solana.PublicKeyFromBase58(r.String()); err != nil {
		return fmt.Errorf("invalid solana address %q: %w", r.String(), err)
	}
	return nil
}
