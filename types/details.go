package types

// BridgeTransferDetails is a transfer as recorded on the initiator chain. The
// recipient is still in raw form because it belongs to the other chain.
type BridgeTransferDetails[A BridgeAddress, H BridgeHash, V BridgeValue] struct {
	BridgeTransferID TransferID[H]
	InitiatorAddress InitiatorAddress[A]
	RecipientAddress RecipientAddress[RawAddress]
	HashLock         HashLock[H]
	TimeLock         TimeLock
	Amount           Amount[V]
}

// LockDetails is a transfer as recorded on the counterparty chain.
type LockDetails[A BridgeAddress, H BridgeHash, V BridgeValue] struct {
	BridgeTransferID TransferID[H]
	InitiatorAddress InitiatorAddress[RawAddress]
	RecipientAddress RecipientAddress[A]
	HashLock         HashLock[H]
	TimeLock         TimeLock
	Amount           Amount[V]
}

// CounterpartyCompletedDetails is the terminal snapshot of a transfer once
// its secret has been revealed.
type CounterpartyCompletedDetails[A BridgeAddress, H BridgeHash, V BridgeValue] struct {
	BridgeTransferID TransferID[H]
	InitiatorAddress InitiatorAddress[RawAddress]
	RecipientAddress RecipientAddress[A]
	HashLock         HashLock[H]
	Secret           HashLockPreImage
	Amount           Amount[V]
}

// LockDetailsFromTransfer projects an initiated transfer onto the
// counterparty chain: the initiator goes to raw form, the recipient is
// resolved into the counterparty encoding and the id and hash lock are
// carried over through hashes.
func LockDetailsFromTransfer[A, B BridgeAddress, H, O BridgeHash, V BridgeValue](
	d BridgeTransferDetails[A, H, V],
	initiator AddressCodec[A],
	recipient AddressCodec[B],
	hashes HashConverter[H, O],
) LockDetails[B, O, V] {
	return LockDetails[B, O, V]{
		BridgeTransferID: ConvertTransferID(d.BridgeTransferID, hashes),
		InitiatorAddress: InitiatorToRaw(d.InitiatorAddress, initiator),
		RecipientAddress: ResolveRecipient(d.RecipientAddress, recipient),
		HashLock:         ConvertHashLock(d.HashLock, hashes),
		TimeLock:         d.TimeLock,
		Amount:           d.Amount,
	}
}

// CompletedFromBridgeTransferDetails builds the completed projection from an
// initiator-side record. The secret is taken as given; callers verify it
// against the hash lock first.
func CompletedFromBridgeTransferDetails[A BridgeAddress, H BridgeHash, V BridgeValue](
	d BridgeTransferDetails[A, H, V],
	secret HashLockPreImage,
	codec AddressCodec[A],
) CounterpartyCompletedDetails[A, H, V] {
	return CounterpartyCompletedDetails[A, H, V]{
		BridgeTransferID: d.BridgeTransferID,
		InitiatorAddress: InitiatorToRaw(d.InitiatorAddress, codec),
		RecipientAddress: ResolveRecipient(d.RecipientAddress, codec),
		HashLock:         d.HashLock,
		Secret:           secret,
		Amount:           d.Amount,
	}
}

// CompletedFromLockDetails builds the completed projection from a
// counterparty-side record whose addresses are already final.
func CompletedFromLockDetails[A BridgeAddress, H BridgeHash, V BridgeValue](
	l LockDetails[A, H, V],
	secret HashLockPreImage,
) CounterpartyCompletedDetails[A, H, V] {
	return CounterpartyCompletedDetails[A, H, V]{
		BridgeTransferID: l.BridgeTransferID,
		InitiatorAddress: l.InitiatorAddress,
		RecipientAddress: l.RecipientAddress,
		HashLock:         l.HashLock,
		Secret:           secret,
		Amount:           l.Amount,
	}
}
