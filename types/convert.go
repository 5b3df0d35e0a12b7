package types

// Converter re-expresses a value of type S in another encoding O.
// Implementations are total: well-formed input always converts.
type Converter[S, O any] interface {
	Convert(S) O
}

// ConverterFunc adapts a plain function to Converter.
type ConverterFunc[S, O any] func(S) O

func (f ConverterFunc[S, O]) Convert(s S) O {
	return f(s)
}

// Identity returns the converter that hands its input back unchanged.
func Identity[T any]() Converter[T, T] {
	return ConverterFunc[T, T](func(t T) T { return t })
}

// HashConverter is the only capability accepted for identity-bearing fields
// (transfer ids and hash locks). It must be lossless.
type HashConverter[H, O BridgeHash] interface {
	Converter[H, O]
}

// AddressCodec moves a chain's native address to and from the raw bridging
// form. FromRaw never fails; chains whose encoding cannot hold arbitrary
// bytes validate raw input before calling it.
type AddressCodec[A BridgeAddress] interface {
	FromRaw(RawAddress) A
	ToRaw(A) RawAddress
}

// RawCodec is the AddressCodec of chains that keep addresses as raw bytes.
type RawCodec struct{}

var _ AddressCodec[RawAddress] = RawCodec{}

func (RawCodec) FromRaw(r RawAddress) RawAddress {
	return RawAddress(r.Bytes())
}

func (RawCodec) ToRaw(a RawAddress) RawAddress {
	return RawAddress(a.Bytes())
}

func ConvertTransferID[H, O BridgeHash](id TransferID[H], c HashConverter[H, O]) TransferID[O] {
	return NewTransferID(c.Convert(id.Inner()))
}

func ConvertHashLock[H, O BridgeHash](l HashLock[H], c HashConverter[H, O]) HashLock[O] {
	return NewHashLock(c.Convert(l.Inner()))
}

// InitiatorToRaw turns a native initiator address into its raw form.
func InitiatorToRaw[A BridgeAddress](a InitiatorAddress[A], c AddressCodec[A]) InitiatorAddress[RawAddress] {
	return NewInitiatorAddress(c.ToRaw(a.Inner()))
}

// InitiatorFromRaw resolves a raw initiator address into the native encoding.
func InitiatorFromRaw[A BridgeAddress](a InitiatorAddress[RawAddress], c AddressCodec[A]) InitiatorAddress[A] {
	return NewInitiatorAddress(c.FromRaw(a.Inner()))
}

// ResolveRecipient resolves a raw recipient address into the native encoding.
func ResolveRecipient[A BridgeAddress](r RecipientAddress[RawAddress], c AddressCodec[A]) RecipientAddress[A] {
	return NewRecipientAddress(c.FromRaw(r.Inner()))
}

func RecipientToRaw[A BridgeAddress](r RecipientAddress[A], c AddressCodec[A]) RecipientAddress[RawAddress] {
	return NewRecipientAddress(c.ToRaw(r.Inner()))
}

// Hash32Converter converts between Hash32 and any other 32-byte hash type
// sharing the same underlying array.
func Hash32Converter[O interface {
	BridgeHash
	~[HashLength]byte
}]() HashConverter[Hash32, O] {
	return ConverterFunc[Hash32, O](func(h Hash32) O { return O(h) })
}

// ToHash32Converter is the inverse of Hash32Converter.
func ToHash32Converter[H interface {
	BridgeHash
	~[HashLength]byte
}]() HashConverter[H, Hash32] {
	return ConverterFunc[H, Hash32](func(h H) Hash32 { return Hash32(h) })
}
