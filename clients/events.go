package clients

import "github.com/vitwit/htlcbridge/types"

type InitiatorEventKind string

const (
	InitiatorEventInitiated InitiatorEventKind = "initiated"
	InitiatorEventCompleted InitiatorEventKind = "completed"
	InitiatorEventRefunded  InitiatorEventKind = "refunded"
)

// InitiatorEvent is one lifecycle event observed on the initiator chain.
// Details is set for InitiatorEventInitiated only.
type InitiatorEvent[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue] struct {
	Kind       InitiatorEventKind
	TransferID types.TransferID[H]
	Details    *types.BridgeTransferDetails[A, H, V]
}

func InitiatedEvent[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue](
	d types.BridgeTransferDetails[A, H, V],
) InitiatorEvent[A, H, V] {
	return InitiatorEvent[A, H, V]{Kind: InitiatorEventInitiated, TransferID: d.BridgeTransferID, Details: &d}
}

type CounterpartyEventKind string

const (
	CounterpartyEventLocked    CounterpartyEventKind = "locked"
	CounterpartyEventCompleted CounterpartyEventKind = "completed"
	CounterpartyEventAborted   CounterpartyEventKind = "aborted"
)

// CounterpartyEvent is one lifecycle event observed on the counterparty
// chain. Lock is set for CounterpartyEventLocked and Completed for
// CounterpartyEventCompleted.
type CounterpartyEvent[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue] struct {
	Kind       CounterpartyEventKind
	TransferID types.TransferID[H]
	Lock       *types.LockDetails[A, H, V]
	Completed  *types.CounterpartyCompletedDetails[A, H, V]
}

func LockedEvent[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue](
	l types.LockDetails[A, H, V],
) CounterpartyEvent[A, H, V] {
	return CounterpartyEvent[A, H, V]{Kind: CounterpartyEventLocked, TransferID: l.BridgeTransferID, Lock: &l}
}

func CompletedEvent[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue](
	c types.CounterpartyCompletedDetails[A, H, V],
) CounterpartyEvent[A, H, V] {
	return CounterpartyEvent[A, H, V]{Kind: CounterpartyEventCompleted, TransferID: c.BridgeTransferID, Completed: &c}
}
