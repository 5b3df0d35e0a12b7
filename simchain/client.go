package simchain

import (
	"context"
	"sync"
	"time"

	"github.com/vitwit/htlcbridge/clients"
	"github.com/vitwit/htlcbridge/types"
)

// MethodName identifies a contract operation for fault injection.
type MethodName string

const (
	MethodInitiateBridgeTransfer   MethodName = "initiate_bridge_transfer"
	MethodCompleteBridgeTransfer   MethodName = "complete_bridge_transfer"
	MethodRefundBridgeTransfer     MethodName = "refund_bridge_transfer"
	MethodLockBridgeTransferAssets MethodName = "lock_bridge_transfer_assets"
	MethodAbortBridgeTransfer      MethodName = "abort_bridge_transfer"
	MethodGetBridgeTransferDetails MethodName = "get_bridge_transfer_details"
)

// CallConfig is the outcome forced on one invocation. Delay is applied
// first; a non-nil Err is then returned without touching the chain.
type CallConfig struct {
	Err   error
	Delay time.Duration
}

// Faults holds the per-method, per-invocation call configs of one client.
type Faults struct {
	mu      sync.Mutex
	configs map[MethodName]map[int]CallConfig
	calls   map[MethodName]int
}

// SetCallConfig applies cfg to the invocation-th call of method, counting
// from 1.
func (f *Faults) SetCallConfig(method MethodName, invocation int, cfg CallConfig) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.configs == nil {
		f.configs = make(map[MethodName]map[int]CallConfig)
	}
	if f.configs[method] == nil {
		f.configs[method] = make(map[int]CallConfig)
	}
	f.configs[method][invocation] = cfg
}

// Calls returns how many times method has been invoked.
func (f *Faults) Calls(method MethodName) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Reset drops every config and call count.
func (f *Faults) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = nil
	f.calls = nil
}

func (f *Faults) next(method MethodName) (CallConfig, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.calls == nil {
		f.calls = make(map[MethodName]int)
	}
	f.calls[method]++

	cfg, ok := f.configs[method][f.calls[method]]
	return cfg, ok
}

// apply runs the configured outcome for this invocation of method.
func (f *Faults) apply(ctx context.Context, role types.ChainRole, method MethodName) error {
	if ctx.Err() != nil {
		return cancelled(ctx, role)
	}

	cfg, ok := f.next(method)
	if !ok {
		return nil
	}

	if cfg.Delay > 0 {
		timer := time.NewTimer(cfg.Delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return cancelled(ctx, role)
		}
	}

	return cfg.Err
}

var (
	_ clients.InitiatorClient[types.RawAddress, types.Hash32, types.Units]    = (*Initiator[types.RawAddress, types.Hash32, types.Units])(nil)
	_ clients.CounterpartyClient[types.RawAddress, types.Hash32, types.Units] = (*Counterparty[types.RawAddress, types.Hash32, types.Units])(nil)
)

// Initiator is the initiator-contract client of a simulated chain.
type Initiator[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue] struct {
	Faults

	chain *Chain[A, H, V]
	locks *clients.KeyedMutex
}

// Initiator returns a new client for the chain's initiator contract. Each
// client has its own fault table.
func (c *Chain[A, H, V]) Initiator() *Initiator[A, H, V] {
	return &Initiator[A, H, V]{chain: c, locks: clients.NewKeyedMutex()}
}

func (i *Initiator[A, H, V]) GetNetwork() types.Network {
	return i.chain.network
}

func (i *Initiator[A, H, V]) Close() {}

func (i *Initiator[A, H, V]) InitiateBridgeTransfer(
	ctx context.Context,
	initiator types.InitiatorAddress[A],
	recipient types.RecipientAddress[types.RawAddress],
	hashLock types.HashLock[H],
	timeLock types.TimeLock,
	amount types.Amount[V],
) (types.TransferID[H], error) {
	unlock := i.locks.Lock(hashLock.String())
	defer unlock()

	if err := i.apply(ctx, types.RoleInitiator, MethodInitiateBridgeTransfer); err != nil {
		return types.TransferID[H]{}, err
	}
	return i.chain.initiate(initiator, recipient, hashLock, timeLock, amount)
}

func (i *Initiator[A, H, V]) CompleteBridgeTransfer(ctx context.Context, id types.TransferID[H], secret types.HashLockPreImage) error {
	unlock := i.locks.Lock(id.String())
	defer unlock()

	if err := i.apply(ctx, types.RoleInitiator, MethodCompleteBridgeTransfer); err != nil {
		return err
	}
	return i.chain.completeInitiator(id, secret)
}

func (i *Initiator[A, H, V]) RefundBridgeTransfer(ctx context.Context, id types.TransferID[H]) error {
	unlock := i.locks.Lock(id.String())
	defer unlock()

	if err := i.apply(ctx, types.RoleInitiator, MethodRefundBridgeTransfer); err != nil {
		return err
	}
	return i.chain.refund(id)
}

func (i *Initiator[A, H, V]) GetBridgeTransferDetails(ctx context.Context, id types.TransferID[H]) (*types.BridgeTransferDetails[A, H, V], error) {
	if err := i.apply(ctx, types.RoleInitiator, MethodGetBridgeTransferDetails); err != nil {
		return nil, err
	}
	return i.chain.initiatorDetails(id)
}

func (i *Initiator[A, H, V]) SubscribeInitiatorEvents(ctx context.Context) (<-chan clients.InitiatorEvent[A, H, V], error) {
	return i.chain.initiatorFeed.subscribe(ctx), nil
}

// Counterparty is the counterparty-contract client of a simulated chain.
type Counterparty[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue] struct {
	Faults

	chain *Chain[A, H, V]
	locks *clients.KeyedMutex
}

// Counterparty returns a new client for the chain's counterparty contract.
func (c *Chain[A, H, V]) Counterparty() *Counterparty[A, H, V] {
	return &Counterparty[A, H, V]{chain: c, locks: clients.NewKeyedMutex()}
}

func (p *Counterparty[A, H, V]) GetNetwork() types.Network {
	return p.chain.network
}

func (p *Counterparty[A, H, V]) Close() {}

func (p *Counterparty[A, H, V]) LockBridgeTransferAssets(
	ctx context.Context,
	id types.TransferID[H],
	hashLock types.HashLock[H],
	timeLock types.TimeLock,
	initiator types.InitiatorAddress[types.RawAddress],
	recipient types.RecipientAddress[A],
	amount types.Amount[V],
) error {
	unlock := p.locks.Lock(id.String())
	defer unlock()

	if err := p.apply(ctx, types.RoleCounterparty, MethodLockBridgeTransferAssets); err != nil {
		return err
	}
	return p.chain.lock(id, hashLock, timeLock, initiator, recipient, amount)
}

func (p *Counterparty[A, H, V]) CompleteBridgeTransfer(ctx context.Context, id types.TransferID[H], secret types.HashLockPreImage) error {
	unlock := p.locks.Lock(id.String())
	defer unlock()

	if err := p.apply(ctx, types.RoleCounterparty, MethodCompleteBridgeTransfer); err != nil {
		return err
	}
	return p.chain.completeCounterparty(id, secret)
}

func (p *Counterparty[A, H, V]) AbortBridgeTransfer(ctx context.Context, id types.TransferID[H]) error {
	unlock := p.locks.Lock(id.String())
	defer unlock()

	if err := p.apply(ctx, types.RoleCounterparty, MethodAbortBridgeTransfer); err != nil {
		return err
	}
	return p.chain.abort(id)
}

func (p *Counterparty[A, H, V]) GetBridgeTransferDetails(ctx context.Context, id types.TransferID[H]) (*types.LockDetails[A, H, V], error) {
	if err := p.apply(ctx, types.RoleCounterparty, MethodGetBridgeTransferDetails); err != nil {
		return nil, err
	}
	return p.chain.lockDetails(id)
}

func (p *Counterparty[A, H, V]) SubscribeCounterpartyEvents(ctx context.Context) (<-chan clients.CounterpartyEvent[A, H, V], error) {
	return p.chain.counterpartyFeed.subscribe(ctx), nil
}
