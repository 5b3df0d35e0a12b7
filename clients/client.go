package clients

import (
	"context"

	"github.com/vitwit/htlcbridge/types"
)

// BridgeContractInitiator is the operation set of the chain where a swap is
// proposed. Every call submits a transaction and waits for it to settle.
type BridgeContractInitiator[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue] interface {
	// InitiateBridgeTransfer locks amount behind hashLock until timeLock and
	// returns the id assigned by the chain.
	InitiateBridgeTransfer(
		ctx context.Context,
		initiator types.InitiatorAddress[A],
		recipient types.RecipientAddress[types.RawAddress],
		hashLock types.HashLock[H],
		timeLock types.TimeLock,
		amount types.Amount[V],
	) (types.TransferID[H], error)

	// CompleteBridgeTransfer claims the locked funds by revealing secret.
	CompleteBridgeTransfer(ctx context.Context, id types.TransferID[H], secret types.HashLockPreImage) error

	// RefundBridgeTransfer returns the funds to the initiator once the time
	// lock has expired.
	RefundBridgeTransfer(ctx context.Context, id types.TransferID[H]) error

	GetBridgeTransferDetails(ctx context.Context, id types.TransferID[H]) (*types.BridgeTransferDetails[A, H, V], error)
}

// BridgeContractCounterparty is the operation set of the chain where the
// matching funds are locked for the recipient.
type BridgeContractCounterparty[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue] interface {
	LockBridgeTransferAssets(
		ctx context.Context,
		id types.TransferID[H],
		hashLock types.HashLock[H],
		timeLock types.TimeLock,
		initiator types.InitiatorAddress[types.RawAddress],
		recipient types.RecipientAddress[A],
		amount types.Amount[V],
	) error

	// CompleteBridgeTransfer releases the locked funds to the recipient and
	// publishes secret on chain.
	CompleteBridgeTransfer(ctx context.Context, id types.TransferID[H], secret types.HashLockPreImage) error

	// AbortBridgeTransfer releases an expired lock back to the bridge.
	AbortBridgeTransfer(ctx context.Context, id types.TransferID[H]) error

	GetBridgeTransferDetails(ctx context.Context, id types.TransferID[H]) (*types.LockDetails[A, H, V], error)
}

// InitiatorEventSource streams initiator-chain events in chain order. The
// channel is closed when ctx ends or the source shuts down.
type InitiatorEventSource[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue] interface {
	SubscribeInitiatorEvents(ctx context.Context) (<-chan InitiatorEvent[A, H, V], error)
}

// CounterpartyEventSource streams counterparty-chain events in chain order.
type CounterpartyEventSource[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue] interface {
	SubscribeCounterpartyEvents(ctx context.Context) (<-chan CounterpartyEvent[A, H, V], error)
}

// InitiatorClient is a full initiator-side adapter.
type InitiatorClient[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue] interface {
	BridgeContractInitiator[A, H, V]
	InitiatorEventSource[A, H, V]
	GetNetwork() types.Network
	Close()
}

// CounterpartyClient is a full counterparty-side adapter.
type CounterpartyClient[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue] interface {
	BridgeContractCounterparty[A, H, V]
	CounterpartyEventSource[A, H, V]
	GetNetwork() types.Network
	Close()
}
