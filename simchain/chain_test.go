package simchain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/htlcbridge/clients"
	"github.com/vitwit/htlcbridge/types"
	"github.com/vitwit/htlcbridge/verification"
)

type testChain = Chain[types.RawAddress, types.Hash32, types.Units]

func newTestChain(t *testing.T) *testChain {
	t.Helper()
	c := NewHash32[types.RawAddress, types.Units]()
	t.Cleanup(c.Close)
	return c
}

func testSecret(t *testing.T) (types.HashLockPreImage, types.HashLock[types.Hash32]) {
	t.Helper()
	secret, lock, err := verification.NewSecretAndLock[types.Hash32](verification.SHA256Hasher{})
	require.NoError(t, err)
	return secret, lock
}

func initiate(t *testing.T, c *testChain, lock types.HashLock[types.Hash32], timeLock types.TimeLock) types.TransferID[types.Hash32] {
	t.Helper()
	id, err := c.Initiator().InitiateBridgeTransfer(
		context.Background(),
		types.InitiatorAddressFromString("initiator"),
		types.RecipientAddressFromString("recipient"),
		lock,
		timeLock,
		types.NewAmount(types.Units(1000)),
	)
	require.NoError(t, err)
	return id
}

func TestInitiateAndComplete(t *testing.T) {
	ctx := context.Background()
	c := newTestChain(t)
	initiator := c.Initiator()

	events, err := initiator.SubscribeInitiatorEvents(ctx)
	require.NoError(t, err)

	secret, lock := testSecret(t)
	id := initiate(t, c, lock, 100)

	ev := <-events
	assert.Equal(t, clients.InitiatorEventInitiated, ev.Kind)
	assert.Equal(t, id, ev.TransferID)
	require.NotNil(t, ev.Details)
	assert.Equal(t, lock, ev.Details.HashLock)
	assert.Equal(t, types.TimeLock(100), ev.Details.TimeLock)
	assert.Equal(t, "recipient", ev.Details.RecipientAddress.Inner().String())

	details, err := initiator.GetBridgeTransferDetails(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, *ev.Details, *details)

	err = initiator.CompleteBridgeTransfer(ctx, id, types.HashLockPreImage("invalid_secret"))
	assert.ErrorIs(t, err, clients.ErrInvalidSecret)

	require.NoError(t, initiator.CompleteBridgeTransfer(ctx, id, secret))
	ev = <-events
	assert.Equal(t, clients.InitiatorEventCompleted, ev.Kind)
	assert.Equal(t, id, ev.TransferID)

	err = initiator.CompleteBridgeTransfer(ctx, id, secret)
	assert.ErrorIs(t, err, clients.ErrTransferAlreadyCompleted)

	state, ok := c.InitiatorState(id)
	require.True(t, ok)
	assert.Equal(t, StateCompleted, state)
}

func TestInitiateValidation(t *testing.T) {
	ctx := context.Background()
	c := newTestChain(t)
	c.AdvanceClock(50)
	_, lock := testSecret(t)

	_, err := c.Initiator().InitiateBridgeTransfer(ctx,
		types.InitiatorAddressFromString("initiator"),
		types.RecipientAddressFromString("recipient"),
		lock, 100, types.NewAmount(types.Units(0)))
	assert.ErrorIs(t, err, clients.ErrInvalidAmount)

	_, err = c.Initiator().InitiateBridgeTransfer(ctx,
		types.InitiatorAddressFromString("initiator"),
		types.RecipientAddressFromString("recipient"),
		lock, 50, types.NewAmount(types.Units(10)))
	assert.ErrorIs(t, err, clients.ErrInvalidTimeLock)
}

func TestRefund(t *testing.T) {
	ctx := context.Background()
	c := newTestChain(t)
	initiator := c.Initiator()
	_, lock := testSecret(t)
	id := initiate(t, c, lock, 100)

	assert.ErrorIs(t, initiator.RefundBridgeTransfer(ctx, id), clients.ErrTimeLockNotExpired)

	c.AdvanceClock(100)
	require.NoError(t, initiator.RefundBridgeTransfer(ctx, id))

	state, _ := c.InitiatorState(id)
	assert.Equal(t, StateRefunded, state)

	unknown, err := types.GenTransferID(nil)
	require.NoError(t, err)
	assert.ErrorIs(t, initiator.RefundBridgeTransfer(ctx, unknown), clients.ErrTransferNotFound)
}

func TestLockIsNotDuplicated(t *testing.T) {
	ctx := context.Background()
	c := newTestChain(t)
	counterparty := c.Counterparty()

	_, lock := testSecret(t)
	id, err := types.GenTransferID(nil)
	require.NoError(t, err)

	lockOnce := func() error {
		return counterparty.LockBridgeTransferAssets(ctx, id, lock, 100,
			types.InitiatorAddressFromString("initiator"),
			types.NewRecipientAddress(types.RawAddressFromString("recipient")),
			types.NewAmount(types.Units(1000)))
	}

	require.NoError(t, lockOnce())
	err = lockOnce()
	assert.ErrorIs(t, err, clients.ErrLockTransferAssets)
	assert.ErrorIs(t, err, clients.ErrTransferAlreadyExists)
	assert.Equal(t, 1, c.LockCount())
}

func TestCounterpartyCompleteEmitsSecret(t *testing.T) {
	ctx := context.Background()
	c := newTestChain(t)
	counterparty := c.Counterparty()

	events, err := counterparty.SubscribeCounterpartyEvents(ctx)
	require.NoError(t, err)

	secret, lock := testSecret(t)
	id, err := types.GenTransferID(nil)
	require.NoError(t, err)

	require.NoError(t, counterparty.LockBridgeTransferAssets(ctx, id, lock, 100,
		types.InitiatorAddressFromString("initiator"),
		types.NewRecipientAddress(types.RawAddressFromString("recipient")),
		types.NewAmount(types.Units(1000))))

	ev := <-events
	assert.Equal(t, clients.CounterpartyEventLocked, ev.Kind)
	require.NotNil(t, ev.Lock)

	assert.ErrorIs(t, counterparty.CompleteBridgeTransfer(ctx, id, types.HashLockPreImage("invalid_secret")), clients.ErrInvalidSecret)
	require.NoError(t, counterparty.CompleteBridgeTransfer(ctx, id, secret))

	ev = <-events
	assert.Equal(t, clients.CounterpartyEventCompleted, ev.Kind)
	require.NotNil(t, ev.Completed)
	assert.True(t, secret.Equal(ev.Completed.Secret))
	assert.Equal(t, lock, ev.Completed.HashLock)
	assert.Equal(t, types.Units(1000), ev.Completed.Amount.Value())

	assert.ErrorIs(t, counterparty.AbortBridgeTransfer(ctx, id), clients.ErrAbortTransfer)
}

func TestAbort(t *testing.T) {
	ctx := context.Background()
	c := newTestChain(t)
	counterparty := c.Counterparty()

	_, lock := testSecret(t)
	id, err := types.GenTransferID(nil)
	require.NoError(t, err)
	require.NoError(t, counterparty.LockBridgeTransferAssets(ctx, id, lock, 10,
		types.InitiatorAddressFromString("initiator"),
		types.NewRecipientAddress(types.RawAddressFromString("recipient")),
		types.NewAmount(types.Units(1))))

	assert.ErrorIs(t, counterparty.AbortBridgeTransfer(ctx, id), clients.ErrAbortTransfer)

	c.AdvanceClock(10)
	require.NoError(t, counterparty.AbortBridgeTransfer(ctx, id))

	state, _ := c.CounterpartyState(id)
	assert.Equal(t, StateAborted, state)
}

func TestCallConfigPerInvocation(t *testing.T) {
	ctx := context.Background()
	c := newTestChain(t)
	counterparty := c.Counterparty()
	counterparty.SetCallConfig(MethodLockBridgeTransferAssets, 1, CallConfig{
		Err: clients.CounterpartyError(clients.CodeLockTransferAssets, nil),
	})

	_, lock := testSecret(t)
	id, err := types.GenTransferID(nil)
	require.NoError(t, err)

	lockOnce := func() error {
		return counterparty.LockBridgeTransferAssets(ctx, id, lock, 100,
			types.InitiatorAddressFromString("initiator"),
			types.NewRecipientAddress(types.RawAddressFromString("recipient")),
			types.NewAmount(types.Units(1000)))
	}

	assert.ErrorIs(t, lockOnce(), clients.ErrLockTransferAssets)
	assert.Equal(t, 0, c.LockCount())

	require.NoError(t, lockOnce())
	assert.Equal(t, 2, counterparty.Calls(MethodLockBridgeTransferAssets))
	assert.Equal(t, 1, c.LockCount())
}

func TestCallConfigDelayHonoursContext(t *testing.T) {
	c := newTestChain(t)
	initiator := c.Initiator()
	initiator.SetCallConfig(MethodRefundBridgeTransfer, 1, CallConfig{Delay: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	id, err := types.GenTransferID(nil)
	require.NoError(t, err)

	err = initiator.RefundBridgeTransfer(ctx, id)
	assert.ErrorIs(t, err, clients.ErrContractCallFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	c := newTestChain(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := c.Initiator().SubscribeInitiatorEvents(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
}

func TestCloseDeliversQueuedEvents(t *testing.T) {
	c := newTestChain(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Initiator().SubscribeInitiatorEvents(ctx)
	require.NoError(t, err)

	var ids []types.TransferID[types.Hash32]
	for i := 0; i < 3; i++ {
		_, lock := testSecret(t)
		ids = append(ids, initiate(t, c, lock, 100))
	}
	c.Close()

	for _, id := range ids {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "closed before %s was delivered", id)
			assert.Equal(t, clients.InitiatorEventInitiated, ev.Kind)
			assert.Equal(t, id, ev.TransferID)
		case <-time.After(time.Second):
			t.Fatalf("event for %s not delivered", id)
		}
	}

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed after drain")
	}

	late, err := c.Initiator().SubscribeInitiatorEvents(ctx)
	require.NoError(t, err)
	_, ok := <-late
	assert.False(t, ok)
}
