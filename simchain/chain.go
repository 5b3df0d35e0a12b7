// Package simchain is an in-memory ledger that hosts both bridge contracts.
// It keeps a logical clock, emits contract events and lets tests inject
// failures and delays per method and invocation.
package simchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vitwit/htlcbridge/clients"
	"github.com/vitwit/htlcbridge/logger"
	"github.com/vitwit/htlcbridge/types"
	"github.com/vitwit/htlcbridge/verification"
)

// TransferState is the contract-side state of one transfer.
type TransferState string

const (
	StatePending   TransferState = "pending"
	StateCompleted TransferState = "completed"
	StateRefunded  TransferState = "refunded"
	StateAborted   TransferState = "aborted"
)

// IDGenerator hands out fresh transfer hashes.
type IDGenerator[H types.BridgeHash] func() (H, error)

type initiatorEntry[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue] struct {
	details types.BridgeTransferDetails[A, H, V]
	state   TransferState
}

type counterpartyEntry[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue] struct {
	details types.LockDetails[A, H, V]
	state   TransferState
}

// Chain is one simulated ledger. A is its native address encoding, H its
// hash encoding and V its value encoding.
type Chain[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue] struct {
	mu sync.Mutex

	network  types.Network
	clock    types.TimeLock
	verifier *verification.Verifier[H]
	newID    IDGenerator[H]
	logger   logger.Logger

	initiated map[H]*initiatorEntry[A, H, V]
	locked    map[H]*counterpartyEntry[A, H, V]

	initiatorFeed    *feed[clients.InitiatorEvent[A, H, V]]
	counterpartyFeed *feed[clients.CounterpartyEvent[A, H, V]]
}

// Option configures a Chain.
type Option[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue] func(*Chain[A, H, V])

func WithLogger[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue](l logger.Logger) Option[A, H, V] {
	return func(c *Chain[A, H, V]) {
		c.logger = l
	}
}

func WithNetwork[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue](n types.Network) Option[A, H, V] {
	return func(c *Chain[A, H, V]) {
		c.network = n
	}
}

// WithClock sets the starting time of the chain clock.
func WithClock[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue](t types.TimeLock) Option[A, H, V] {
	return func(c *Chain[A, H, V]) {
		c.clock = t
	}
}

// New creates a chain that commits secrets with hasher and numbers
// transfers with newID.
func New[A types.BridgeAddress, H types.BridgeHash, V types.BridgeValue](
	hasher verification.Hasher[H],
	newID IDGenerator[H],
	opts ...Option[A, H, V],
) *Chain[A, H, V] {
	c := &Chain[A, H, V]{
		network:          types.NetworkSimulated,
		verifier:         verification.NewVerifier(hasher),
		newID:            newID,
		logger:           logger.NoopLogger{},
		initiated:        make(map[H]*initiatorEntry[A, H, V]),
		locked:           make(map[H]*counterpartyEntry[A, H, V]),
		initiatorFeed:    newFeed[clients.InitiatorEvent[A, H, V]](),
		counterpartyFeed: newFeed[clients.CounterpartyEvent[A, H, V]](),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewHash32 creates a chain with SHA-256 hash locks and random 32-byte
// transfer ids.
func NewHash32[A types.BridgeAddress, V types.BridgeValue](opts ...Option[A, types.Hash32, V]) *Chain[A, types.Hash32, V] {
	return New[A, types.Hash32, V](verification.SHA256Hasher{}, func() (types.Hash32, error) {
		return types.GenUniqueHash32(nil)
	}, opts...)
}

func (c *Chain[A, H, V]) Network() types.Network {
	return c.network
}

// Now returns the current chain time.
func (c *Chain[A, H, V]) Now() types.TimeLock {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clock
}

// AdvanceClock moves the chain time forward by ticks and returns the new
// time.
func (c *Chain[A, H, V]) AdvanceClock(ticks uint64) types.TimeLock {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock += types.TimeLock(ticks)
	return c.clock
}

// Close ends every event subscription.
func (c *Chain[A, H, V]) Close() {
	c.initiatorFeed.close()
	c.counterpartyFeed.close()
}

// InitiatorState returns the initiator contract's state for id.
func (c *Chain[A, H, V]) InitiatorState(id types.TransferID[H]) (TransferState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.initiated[id.Inner()]
	if !ok {
		return "", false
	}
	return e.state, true
}

// CounterpartyState returns the counterparty contract's state for id.
func (c *Chain[A, H, V]) CounterpartyState(id types.TransferID[H]) (TransferState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.locked[id.Inner()]
	if !ok {
		return "", false
	}
	return e.state, true
}

// LockCount returns the number of locks ever recorded on the counterparty
// contract.
func (c *Chain[A, H, V]) LockCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.locked)
}

func (c *Chain[A, H, V]) initiate(
	initiator types.InitiatorAddress[A],
	recipient types.RecipientAddress[types.RawAddress],
	hashLock types.HashLock[H],
	timeLock types.TimeLock,
	amount types.Amount[V],
) (types.TransferID[H], error) {
	var zero types.TransferID[H]

	if !amount.IsPositive() {
		return zero, clients.InitiatorError(clients.CodeInvalidAmount, fmt.Errorf("amount %s is not positive", amount))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if timeLock <= c.clock {
		return zero, clients.InitiatorError(clients.CodeInvalidTimeLock, fmt.Errorf("time lock %d not after chain time %d", timeLock, c.clock))
	}

	h, err := c.newID()
	if err != nil {
		return zero, clients.InitiatorError(clients.CodeContractCallFailed, err)
	}
	if _, ok := c.initiated[h]; ok {
		return zero, clients.InitiatorError(clients.CodeTransferAlreadyExists, nil)
	}

	details := types.BridgeTransferDetails[A, H, V]{
		BridgeTransferID: types.NewTransferID(h),
		InitiatorAddress: initiator,
		RecipientAddress: types.RecipientAddressFromBytes(recipient.Bytes()),
		HashLock:         hashLock,
		TimeLock:         timeLock,
		Amount:           amount,
	}
	c.initiated[h] = &initiatorEntry[A, H, V]{details: details, state: StatePending}
	c.initiatorFeed.publish(clients.InitiatedEvent(details))

	c.logger.Debug("bridge transfer initiated", map[string]any{
		"network":     c.network.String(),
		"transfer_id": details.BridgeTransferID.String(),
		"time_lock":   uint64(timeLock),
	})
	return details.BridgeTransferID, nil
}

func (c *Chain[A, H, V]) completeInitiator(id types.TransferID[H], secret types.HashLockPreImage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.initiated[id.Inner()]
	if !ok {
		return clients.InitiatorError(clients.CodeTransferNotFound, fmt.Errorf("transfer %s", id))
	}
	if err := closedError(types.RoleInitiator, e.state); err != nil {
		return err
	}
	if err := c.verifier.Verify(e.details.HashLock, secret); err != nil {
		return clients.InitiatorError(clients.CodeInvalidSecret, err)
	}

	e.state = StateCompleted
	c.initiatorFeed.publish(clients.InitiatorEvent[A, H, V]{Kind: clients.InitiatorEventCompleted, TransferID: id})
	return nil
}

func (c *Chain[A, H, V]) refund(id types.TransferID[H]) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.initiated[id.Inner()]
	if !ok {
		return clients.InitiatorError(clients.CodeTransferNotFound, fmt.Errorf("transfer %s", id))
	}
	if err := closedError(types.RoleInitiator, e.state); err != nil {
		return err
	}
	if c.clock < e.details.TimeLock {
		return clients.InitiatorError(clients.CodeTimeLockNotExpired, fmt.Errorf("chain time %d before time lock %d", c.clock, e.details.TimeLock))
	}

	e.state = StateRefunded
	c.initiatorFeed.publish(clients.InitiatorEvent[A, H, V]{Kind: clients.InitiatorEventRefunded, TransferID: id})
	return nil
}

func (c *Chain[A, H, V]) initiatorDetails(id types.TransferID[H]) (*types.BridgeTransferDetails[A, H, V], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.initiated[id.Inner()]
	if !ok {
		return nil, clients.InitiatorError(clients.CodeTransferNotFound, fmt.Errorf("transfer %s", id))
	}
	d := e.details
	return &d, nil
}

func (c *Chain[A, H, V]) lock(
	id types.TransferID[H],
	hashLock types.HashLock[H],
	timeLock types.TimeLock,
	initiator types.InitiatorAddress[types.RawAddress],
	recipient types.RecipientAddress[A],
	amount types.Amount[V],
) error {
	if !amount.IsPositive() {
		return clients.CounterpartyError(clients.CodeLockTransferAssets, fmt.Errorf("amount %s is not positive", amount))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if timeLock <= c.clock {
		return clients.CounterpartyError(clients.CodeLockTransferAssets, fmt.Errorf("time lock %d not after chain time %d", timeLock, c.clock))
	}
	if _, ok := c.locked[id.Inner()]; ok {
		return clients.CounterpartyError(clients.CodeLockTransferAssets, clients.CounterpartyError(clients.CodeTransferAlreadyExists, fmt.Errorf("transfer %s", id)))
	}

	details := types.LockDetails[A, H, V]{
		BridgeTransferID: id,
		InitiatorAddress: types.InitiatorAddressFromBytes(initiator.Bytes()),
		RecipientAddress: recipient,
		HashLock:         hashLock,
		TimeLock:         timeLock,
		Amount:           amount,
	}
	c.locked[id.Inner()] = &counterpartyEntry[A, H, V]{details: details, state: StatePending}
	c.counterpartyFeed.publish(clients.LockedEvent(details))

	c.logger.Debug("bridge transfer assets locked", map[string]any{
		"network":     c.network.String(),
		"transfer_id": id.String(),
	})
	return nil
}

func (c *Chain[A, H, V]) completeCounterparty(id types.TransferID[H], secret types.HashLockPreImage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.locked[id.Inner()]
	if !ok {
		return clients.CounterpartyError(clients.CodeTransferNotFound, fmt.Errorf("transfer %s", id))
	}
	if err := closedError(types.RoleCounterparty, e.state); err != nil {
		return err
	}
	if err := c.verifier.Verify(e.details.HashLock, secret); err != nil {
		return clients.CounterpartyError(clients.CodeInvalidSecret, err)
	}

	e.state = StateCompleted
	completed := types.CompletedFromLockDetails(e.details, types.HashLockPreImage(bytes.Clone(secret)))
	c.counterpartyFeed.publish(clients.CompletedEvent(completed))
	return nil
}

func (c *Chain[A, H, V]) abort(id types.TransferID[H]) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.locked[id.Inner()]
	if !ok {
		return clients.CounterpartyError(clients.CodeTransferNotFound, fmt.Errorf("transfer %s", id))
	}
	if err := closedError(types.RoleCounterparty, e.state); err != nil {
		return clients.CounterpartyError(clients.CodeAbortTransfer, err)
	}
	if c.clock < e.details.TimeLock {
		return clients.CounterpartyError(clients.CodeAbortTransfer, fmt.Errorf("chain time %d before time lock %d", c.clock, e.details.TimeLock))
	}

	e.state = StateAborted
	c.counterpartyFeed.publish(clients.CounterpartyEvent[A, H, V]{Kind: clients.CounterpartyEventAborted, TransferID: id})
	return nil
}

func (c *Chain[A, H, V]) lockDetails(id types.TransferID[H]) (*types.LockDetails[A, H, V], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.locked[id.Inner()]
	if !ok {
		return nil, clients.CounterpartyError(clients.CodeTransferNotFound, fmt.Errorf("transfer %s", id))
	}
	d := e.details
	return &d, nil
}

// closedError rejects operations on transfers that already settled.
func closedError(role types.ChainRole, state TransferState) error {
	if state == StatePending {
		return nil
	}
	return &clients.ContractError{
		Role:    role,
		Code:    clients.CodeTransferAlreadyCompleted,
		Message: fmt.Sprintf("transfer already %s", state),
	}
}

// cancelled reports a call abandoned through its context.
func cancelled(ctx context.Context, role types.ChainRole) error {
	err := ctx.Err()
	if err == nil {
		err = errors.New("call abandoned")
	}
	return &clients.ContractError{Role: role, Code: clients.CodeContractCallFailed, Err: err}
}
