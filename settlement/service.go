// Package settlement drives transfers across the two chains of a bridge. It
// follows both event streams, locks funds on the counterparty once a
// transfer is initiated and completes the initiator side once the secret is
// revealed.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"
	"golang.org/x/sync/errgroup"

	"github.com/vitwit/htlcbridge/clients"
	"github.com/vitwit/htlcbridge/metrics"
	"github.com/vitwit/htlcbridge/storage"
	"github.com/vitwit/htlcbridge/types"
	"github.com/vitwit/htlcbridge/verification"
)

var (
	ErrAlreadyRunning = errors.New("settlement service already running")
	ErrStreamClosed   = errors.New("event stream closed")
	ErrClosed         = errors.New("settlement service closed")
	ErrNoEventStream  = errors.New("event channel disabled")
)

const counterEventDropped = "event_dropped"

const (
	opInitiate     = "initiate_bridge_transfer"
	opComplete     = "complete_bridge_transfer"
	opRefund       = "refund_bridge_transfer"
	opLock         = "lock_bridge_transfer_assets"
	opAbort        = "abort_bridge_transfer"
	opGetTransfer  = "get_bridge_transfer_details"
	opGetLock      = "get_lock_details"
	errFieldLength = 512
)

// Codecs carries the conversions between the two chains' encodings.
type Codecs[A1, A2 types.BridgeAddress, H1, H2 types.BridgeHash] struct {
	Initiator      types.AddressCodec[A1]
	Recipient      types.AddressCodec[A2]
	ToCounterparty types.HashConverter[H1, H2]
	ToInitiator    types.HashConverter[H2, H1]
}

func (c Codecs[A1, A2, H1, H2]) validate() error {
	if c.Initiator == nil || c.Recipient == nil || c.ToCounterparty == nil || c.ToInitiator == nil {
		return &types.BridgeError{Code: types.ErrConfigError, Message: "settlement codecs are incomplete"}
	}
	return nil
}

type rawValidator interface {
	ValidateRaw(types.RawAddress) error
}

// Service coordinates one initiator chain with one counterparty chain.
type Service[A1, A2 types.BridgeAddress, H1, H2 types.BridgeHash, V types.BridgeValue] struct {
	settings

	initiator    clients.InitiatorClient[A1, H1, V]
	counterparty clients.CounterpartyClient[A2, H2, V]
	codecs       Codecs[A1, A2, H1, H2]
	verifier     *verification.Verifier[H1]

	ownsStore bool
	locks     *clients.KeyedMutex

	running atomic.Bool
	started chan struct{}
	mu      sync.RWMutex
	closed  bool
	events  chan Event
}

// New creates a service over the two clients. verifier checks secrets
// against initiator-side hash locks.
func New[A1, A2 types.BridgeAddress, H1, H2 types.BridgeHash, V types.BridgeValue](
	initiator clients.InitiatorClient[A1, H1, V],
	counterparty clients.CounterpartyClient[A2, H2, V],
	codecs Codecs[A1, A2, H1, H2],
	verifier *verification.Verifier[H1],
	opts ...Option,
) (*Service[A1, A2, H1, H2, V], error) {
	if initiator == nil || counterparty == nil {
		return nil, &types.BridgeError{Code: types.ErrConfigError, Message: "both chain clients are required"}
	}
	if verifier == nil {
		return nil, &types.BridgeError{Code: types.ErrConfigError, Message: "verifier is required"}
	}
	if err := codecs.validate(); err != nil {
		return nil, err
	}

	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &Service[A1, A2, H1, H2, V]{
		settings:     cfg,
		initiator:    initiator,
		counterparty: counterparty,
		codecs:       codecs,
		verifier:     verifier,
		locks:        clients.NewKeyedMutex(),
		started:      make(chan struct{}),
	}
	if cfg.eventBuffer > 0 {
		s.events = make(chan Event, cfg.eventBuffer)
	}
	if s.store == nil {
		s.store = storage.NewMemoryStore()
		s.ownsStore = true
	}
	if s.bus == nil {
		s.bus = evbus.New()
	}

	return s, nil
}

// Started is closed once Run has subscribed to both chains.
func (s *Service[A1, A2, H1, H2, V]) Started() <-chan struct{} {
	return s.started
}

// Events returns the ordered output stream. It is closed when Run returns
// and is nil when the buffer is disabled. Events that do not fit the buffer
// are dropped, so a caller relying on it must keep draining.
func (s *Service[A1, A2, H1, H2, V]) Events() <-chan Event {
	return s.events
}

// Next blocks for the next event.
func (s *Service[A1, A2, H1, H2, V]) Next(ctx context.Context) (Event, error) {
	if s.events == nil {
		return Event{}, ErrNoEventStream
	}
	select {
	case ev, ok := <-s.events:
		if !ok {
			return Event{}, ErrClosed
		}
		return ev, nil
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Subscribe registers fn on the event bus. fn runs synchronously on the
// goroutine that produced the event.
func (s *Service[A1, A2, H1, H2, V]) Subscribe(fn func(Event)) (unsubscribe func() error, err error) {
	if err := s.bus.Subscribe(EventTopic, fn); err != nil {
		return nil, err
	}
	return func() error { return s.bus.Unsubscribe(EventTopic, fn) }, nil
}

// Store exposes the transfer records kept by the service.
func (s *Service[A1, A2, H1, H2, V]) Store() storage.TransferStore {
	return s.store
}

// Run follows both chains until ctx ends or a stream closes. It returns nil
// when ctx is cancelled. A service runs at most once.
func (s *Service[A1, A2, H1, H2, V]) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.shutdown()

	g, gctx := errgroup.WithContext(ctx)

	initiatorEvents, err := s.initiator.SubscribeInitiatorEvents(gctx)
	if err != nil {
		return fmt.Errorf("subscribe initiator events: %w", err)
	}
	counterpartyEvents, err := s.counterparty.SubscribeCounterpartyEvents(gctx)
	if err != nil {
		return fmt.Errorf("subscribe counterparty events: %w", err)
	}

	close(s.started)
	s.logger.Info("settlement service started", map[string]any{
		"initiator":    s.initiator.GetNetwork().String(),
		"counterparty": s.counterparty.GetNetwork().String(),
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case ev, ok := <-initiatorEvents:
				if !ok {
					return streamClosed(gctx, types.RoleInitiator)
				}
				s.handleInitiatorEvent(gctx, ev)
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case ev, ok := <-counterpartyEvents:
				if !ok {
					return streamClosed(gctx, types.RoleCounterparty)
				}
				s.handleCounterpartyEvent(gctx, ev)
			}
		}
	})

	err = g.Wait()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		err = nil
	}

	s.logger.Info("settlement service stopped", map[string]any{"error": err})
	return err
}

func streamClosed(ctx context.Context, role types.ChainRole) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%s: %w", role, ErrStreamClosed)
}

func (s *Service[A1, A2, H1, H2, V]) shutdown() {
	s.mu.Lock()
	s.closed = true
	if s.events != nil {
		close(s.events)
	}
	s.mu.Unlock()
}

// Close releases the store when the service created it.
func (s *Service[A1, A2, H1, H2, V]) Close() error {
	if s.ownsStore {
		return s.store.Close()
	}
	return nil
}

func (s *Service[A1, A2, H1, H2, V]) emit(ctx context.Context, ev Event) {
	if ev.Failed() {
		s.logger.Warn("transfer step failed", ev.fields())
	} else {
		s.logger.Info("transfer step", ev.fields())
	}
	s.metrics.IncCounter(string(ev.Kind), map[string]string{metrics.LabelChain: ev.Role.String()})
	s.bus.Publish(EventTopic, ev)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.events == nil {
		return
	}

	select {
	case s.events <- ev:
	default:
		s.metrics.IncCounter(counterEventDropped, map[string]string{metrics.LabelChain: ev.Role.String()})
		s.logger.Warn("event channel full, event dropped", ev.fields())
	}
}

func (s *Service[A1, A2, H1, H2, V]) handleInitiatorEvent(ctx context.Context, ev clients.InitiatorEvent[A1, H1, V]) {
	switch ev.Kind {
	case clients.InitiatorEventInitiated:
		if ev.Details == nil {
			s.logger.Warn("initiated event without details", map[string]any{"transfer_id": ev.TransferID.String()})
			return
		}
		s.onInitiated(ctx, *ev.Details)
	case clients.InitiatorEventCompleted:
		unlock := s.locks.Lock(ev.TransferID.String())
		defer unlock()
		if err := s.markCompleted(ctx, ev.TransferID.String()); err != nil {
			s.logger.Warn("failed to record completion", map[string]any{"transfer_id": ev.TransferID.String(), "error": err})
		}
	case clients.InitiatorEventRefunded:
		unlock := s.locks.Lock(ev.TransferID.String())
		defer unlock()
		s.markSettled(ctx, types.RoleInitiator, ev.TransferID.String(), storage.StateRefunded, EventRefunded)
	}
}

func (s *Service[A1, A2, H1, H2, V]) handleCounterpartyEvent(ctx context.Context, ev clients.CounterpartyEvent[A2, H2, V]) {
	id := types.ConvertTransferID(ev.TransferID, s.codecs.ToInitiator)

	switch ev.Kind {
	case clients.CounterpartyEventLocked:
		s.onLocked(ctx, id.String())
	case clients.CounterpartyEventCompleted:
		if ev.Completed == nil {
			s.logger.Warn("completed event without details", map[string]any{"transfer_id": id.String()})
			return
		}
		s.onCounterpartyCompleted(ctx, id, *ev.Completed)
	case clients.CounterpartyEventAborted:
		unlock := s.locks.Lock(id.String())
		defer unlock()
		s.markSettled(ctx, types.RoleCounterparty, id.String(), storage.StateAborted, EventAborted)
	}
}

func (s *Service[A1, A2, H1, H2, V]) onInitiated(ctx context.Context, d types.BridgeTransferDetails[A1, H1, V]) {
	id := d.BridgeTransferID.String()
	unlock := s.locks.Lock(id)
	defer unlock()

	err := s.store.Create(ctx, storage.TransferRecord{
		TransferID: id,
		Initiator:  types.InitiatorToRaw(d.InitiatorAddress, s.codecs.Initiator).Inner().String(),
		Recipient:  d.RecipientAddress.Inner().String(),
		HashLock:   d.HashLock.String(),
		TimeLock:   uint64(d.TimeLock),
		Amount:     d.Amount.String(),
	})
	switch {
	case errors.Is(err, storage.ErrAlreadyExists):
		rec, gerr := s.store.Get(ctx, id)
		if gerr != nil || rec.State != storage.StateInitiated {
			s.logger.Debug("transfer already tracked", map[string]any{"transfer_id": id})
			return
		}
	case err != nil:
		s.logger.Error("failed to record transfer", map[string]any{"transfer_id": id, "error": err})
		return
	default:
		s.emit(ctx, newEvent(types.RoleInitiator, EventInitiated, id, nil))
	}

	_ = s.lockTransfer(ctx, d)
}

// lockTransfer mirrors an initiated transfer onto the counterparty chain.
// The caller holds the transfer's lock.
func (s *Service[A1, A2, H1, H2, V]) lockTransfer(ctx context.Context, d types.BridgeTransferDetails[A1, H1, V]) error {
	id := d.BridgeTransferID.String()

	if v, ok := s.codecs.Recipient.(rawValidator); ok {
		if err := v.ValidateRaw(d.RecipientAddress.Inner()); err != nil {
			err = clients.CounterpartyError(clients.CodeLockTransferAssets, err)
			s.lockFailed(ctx, id, err)
			return err
		}
	}

	lock := types.LockDetailsFromTransfer(d, s.codecs.Initiator, s.codecs.Recipient, s.codecs.ToCounterparty)
	err := s.call(ctx, types.RoleCounterparty, opLock, func(ctx context.Context) error {
		return s.counterparty.LockBridgeTransferAssets(ctx,
			lock.BridgeTransferID,
			lock.HashLock,
			lock.TimeLock,
			lock.InitiatorAddress,
			lock.RecipientAddress,
			lock.Amount,
		)
	})
	if errors.Is(err, clients.ErrTransferAlreadyExists) && s.lockMatches(ctx, lock) {
		err = nil
	}
	if err != nil {
		s.lockFailed(ctx, id, err)
		return err
	}

	s.markLocked(ctx, id)
	return nil
}

// lockMatches reports whether an existing counterparty lock carries the
// same hash lock and amount as lock.
func (s *Service[A1, A2, H1, H2, V]) lockMatches(ctx context.Context, lock types.LockDetails[A2, H2, V]) bool {
	var existing *types.LockDetails[A2, H2, V]
	err := s.call(ctx, types.RoleCounterparty, opGetLock, func(ctx context.Context) error {
		var err error
		existing, err = s.counterparty.GetBridgeTransferDetails(ctx, lock.BridgeTransferID)
		return err
	})
	if err != nil {
		return false
	}
	return existing.HashLock == lock.HashLock && existing.Amount == lock.Amount
}

func (s *Service[A1, A2, H1, H2, V]) lockFailed(ctx context.Context, id string, cause error) {
	_, err := s.store.Transition(ctx, id, storage.StateLockFailed, func(r *storage.TransferRecord) {
		r.LockAttempts++
		r.LastError = truncate(cause.Error())
	})
	if err != nil {
		s.logger.Error("failed to record lock failure", map[string]any{"transfer_id": id, "error": err})
	}
	s.emit(ctx, newEvent(types.RoleCounterparty, EventLockFailed, id, cause))
}

func (s *Service[A1, A2, H1, H2, V]) markLocked(ctx context.Context, id string) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		s.logger.Warn("lock for untracked transfer", map[string]any{"transfer_id": id, "error": err})
		return
	}
	if rec.State != storage.StateInitiated && rec.State != storage.StateLockFailed {
		return
	}

	_, err = s.store.Transition(ctx, id, storage.StateLocked, func(r *storage.TransferRecord) {
		r.LockAttempts++
		r.LastError = ""
	})
	if err != nil {
		s.logger.Error("failed to record lock", map[string]any{"transfer_id": id, "error": err})
		return
	}
	s.emit(ctx, newEvent(types.RoleCounterparty, EventLocked, id, nil))
}

// onLocked picks up locks that landed on chain without the service seeing
// the call succeed, such as a call that timed out after submission.
func (s *Service[A1, A2, H1, H2, V]) onLocked(ctx context.Context, id string) {
	unlock := s.locks.Lock(id)
	defer unlock()
	s.markLocked(ctx, id)
}

func (s *Service[A1, A2, H1, H2, V]) onCounterpartyCompleted(
	ctx context.Context,
	id types.TransferID[H1],
	c types.CounterpartyCompletedDetails[A2, H2, V],
) {
	key := id.String()
	unlock := s.locks.Lock(key)
	defer unlock()

	hashLock := types.ConvertHashLock(c.HashLock, s.codecs.ToInitiator)
	if err := s.verifier.Verify(hashLock, c.Secret); err != nil {
		s.emit(ctx, newEvent(types.RoleCounterparty, EventCompleteFailed, key,
			clients.CounterpartyError(clients.CodeInvalidSecret, err)))
		return
	}

	if _, err := s.store.Update(ctx, key, func(r *storage.TransferRecord) {
		r.Secret = c.Secret.String()
	}); err != nil {
		s.logger.Warn("secret revealed for untracked transfer", map[string]any{"transfer_id": key, "error": err})
	}
	s.emit(ctx, newEvent(types.RoleCounterparty, EventCounterpartyCompleted, key, nil))

	if err := s.completeInitiator(ctx, id, c.Secret); err != nil {
		s.logger.Debug("initiator completion not recorded", map[string]any{"transfer_id": key, "error": err})
	}
}

func (s *Service[A1, A2, H1, H2, V]) completeInitiator(ctx context.Context, id types.TransferID[H1], secret types.HashLockPreImage) error {
	key := id.String()
	err := s.call(ctx, types.RoleInitiator, opComplete, func(ctx context.Context) error {
		return s.initiator.CompleteBridgeTransfer(ctx, id, secret)
	})
	if err != nil {
		if _, uerr := s.store.Update(ctx, key, func(r *storage.TransferRecord) {
			r.LastError = truncate(err.Error())
		}); uerr != nil {
			s.logger.Debug("no record for failed completion", map[string]any{"transfer_id": key})
		}
		s.emit(ctx, newEvent(types.RoleInitiator, EventCompleteFailed, key, err))
		return err
	}

	return s.markCompleted(ctx, key)
}

// markCompleted moves the record to completed and emits
// initiator_completed once.
func (s *Service[A1, A2, H1, H2, V]) markCompleted(ctx context.Context, id string) error {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("completion for untracked transfer %s: %w", id, err)
	}
	if rec.State == storage.StateCompleted {
		return nil
	}

	if _, err := s.store.Transition(ctx, id, storage.StateCompleted, func(r *storage.TransferRecord) {
		r.Settled = true
		r.LastError = ""
	}); err != nil {
		s.logger.Error("failed to record completion", map[string]any{"transfer_id": id, "error": err})
		return err
	}
	s.emit(ctx, newEvent(types.RoleInitiator, EventInitiatorCompleted, id, nil))
	return nil
}

// markSettled records a refund or abort once per side. Refunds and aborts
// close their own side only, so Settled is left as is.
func (s *Service[A1, A2, H1, H2, V]) markSettled(ctx context.Context, role types.ChainRole, id string, to storage.State, kind EventKind) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		s.logger.Warn("event for untracked transfer", map[string]any{"transfer_id": id, "kind": string(kind), "error": err})
		return
	}

	flag := func(r *storage.TransferRecord) *bool {
		if to == storage.StateRefunded {
			return &r.Refunded
		}
		return &r.Aborted
	}
	if *flag(rec) {
		return
	}

	if _, err := s.store.Transition(ctx, id, to, func(r *storage.TransferRecord) {
		*flag(r) = true
	}); err != nil {
		s.logger.Error("failed to record transfer state", map[string]any{"transfer_id": id, "state": string(to), "error": err})
		return
	}
	s.emit(ctx, newEvent(role, kind, id, nil))
}

// Initiate proposes a transfer on the initiator chain. The recipient is
// given in the counterparty's encoding. The call is never retried.
func (s *Service[A1, A2, H1, H2, V]) Initiate(
	ctx context.Context,
	initiator types.InitiatorAddress[A1],
	recipient types.RecipientAddress[A2],
	hashLock types.HashLock[H1],
	timeLock types.TimeLock,
	amount types.Amount[V],
) (types.TransferID[H1], error) {
	var id types.TransferID[H1]
	err := s.callOnce(ctx, types.RoleInitiator, opInitiate, func(ctx context.Context) error {
		var err error
		id, err = s.initiator.InitiateBridgeTransfer(ctx,
			initiator,
			types.RecipientToRaw(recipient, s.codecs.Recipient),
			hashLock,
			timeLock,
			amount,
		)
		return err
	})
	return id, err
}

// RetryLock repeats the counterparty lock of a transfer whose earlier lock
// failed. The transfer is re-read from the initiator chain.
func (s *Service[A1, A2, H1, H2, V]) RetryLock(ctx context.Context, id types.TransferID[H1]) error {
	key := id.String()
	unlock := s.locks.Lock(key)
	defer unlock()

	rec, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if rec.State != storage.StateLockFailed && rec.State != storage.StateInitiated {
		return fmt.Errorf("%w: %s is %s", storage.ErrInvalidTransition, key, rec.State)
	}

	d, err := s.transferDetails(ctx, id)
	if err != nil {
		return err
	}
	return s.lockTransfer(ctx, *d)
}

// CompleteTransfer completes the initiator side with secret. The secret is
// checked against the on-chain hash lock first; a wrong secret returns an
// InvalidSecret error and emits nothing. The transfer must then be recorded
// as locked; any other state returns ErrInvalidTransition and the initiator
// contract is not called.
func (s *Service[A1, A2, H1, H2, V]) CompleteTransfer(ctx context.Context, id types.TransferID[H1], secret types.HashLockPreImage) error {
	key := id.String()
	unlock := s.locks.Lock(key)
	defer unlock()

	d, err := s.transferDetails(ctx, id)
	if err != nil {
		return err
	}
	if err := s.verifier.Verify(d.HashLock, secret); err != nil {
		return clients.InitiatorError(clients.CodeInvalidSecret, err)
	}

	rec, err := s.store.Get(ctx, key)
	if err != nil {
		return err
	}
	if rec.State != storage.StateLocked {
		return fmt.Errorf("%w: %s is %s", storage.ErrInvalidTransition, key, rec.State)
	}

	return s.completeInitiator(ctx, id, secret)
}

// Refund returns an expired transfer to its initiator.
func (s *Service[A1, A2, H1, H2, V]) Refund(ctx context.Context, id types.TransferID[H1]) error {
	key := id.String()
	unlock := s.locks.Lock(key)
	defer unlock()

	if err := s.call(ctx, types.RoleInitiator, opRefund, func(ctx context.Context) error {
		return s.initiator.RefundBridgeTransfer(ctx, id)
	}); err != nil {
		return err
	}

	s.markSettled(ctx, types.RoleInitiator, key, storage.StateRefunded, EventRefunded)
	return nil
}

// Abort releases an expired counterparty lock.
func (s *Service[A1, A2, H1, H2, V]) Abort(ctx context.Context, id types.TransferID[H1]) error {
	key := id.String()
	unlock := s.locks.Lock(key)
	defer unlock()

	counterpartyID := types.ConvertTransferID(id, s.codecs.ToCounterparty)
	if err := s.call(ctx, types.RoleCounterparty, opAbort, func(ctx context.Context) error {
		return s.counterparty.AbortBridgeTransfer(ctx, counterpartyID)
	}); err != nil {
		return err
	}

	s.markSettled(ctx, types.RoleCounterparty, key, storage.StateAborted, EventAborted)
	return nil
}

// Transfer returns the stored record of a transfer.
func (s *Service[A1, A2, H1, H2, V]) Transfer(ctx context.Context, id types.TransferID[H1]) (*storage.TransferRecord, error) {
	return s.store.Get(ctx, id.String())
}

func (s *Service[A1, A2, H1, H2, V]) transferDetails(ctx context.Context, id types.TransferID[H1]) (*types.BridgeTransferDetails[A1, H1, V], error) {
	var d *types.BridgeTransferDetails[A1, H1, V]
	err := s.call(ctx, types.RoleInitiator, opGetTransfer, func(ctx context.Context) error {
		var err error
		d, err = s.initiator.GetBridgeTransferDetails(ctx, id)
		return err
	})
	return d, err
}

func truncate(msg string) string {
	if len(msg) <= errFieldLength {
		return msg
	}
	return msg[:errFieldLength]
}
