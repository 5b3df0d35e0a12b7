package clients

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vitwit/htlcbridge/types"
)

// EVMAddressCodec moves EVM addresses to and from their raw bridging form,
// the UTF-8 bytes of the 0x-prefixed hex text.
type EVMAddressCodec struct{}

var _ types.AddressCodec[common.Address] = EVMAddressCodec{}

// FromRaw decodes r leniently. Callers that cannot trust r run ValidateRaw
// first.
func (EVMAddressCodec) FromRaw(r types.RawAddress) common.Address {
	return common.HexToAddress(r.String())
}

// ToRaw renders a as EIP-55 checksummed hex.
func (EVMAddressCodec) ToRaw(a common.Address) types.RawAddress {
	return types.RawAddressFromString(a.Hex())
}

// ValidateRaw accepts only the form ToRaw produces: 0x-prefixed EIP-55
// checksummed hex. Lowercase or unprefixed text is rejected so that raw
// addresses survive a FromRaw/ToRaw round trip byte for byte.
func (EVMAddressCodec) ValidateRaw(r types.RawAddress) error {
	s := r.String()
	if !common.IsHexAddress(s) {
		return fmt.Errorf("invalid evm address %q", s)
	}
	if want := common.HexToAddress(s).Hex(); s != want {
		return fmt.Errorf("evm address %q is not in checksummed form %q", s, want)
	}
	return nil
}

// EVMHashConverter carries byte hashes onto EVM chains.
func EVMHashConverter() types.HashConverter[types.Hash32, common.Hash] {
	return types.Hash32Converter[common.Hash]()
}

// EVMHashToHash32 carries EVM hashes back to the byte-hash form.
func EVMHashToHash32() types.HashConverter[common.Hash, types.Hash32] {
	return types.ToHash32Converter[common.Hash]()
}
