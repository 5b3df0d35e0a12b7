package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateInitiated, StateLocked, true},
		{StateInitiated, StateLockFailed, true},
		{StateLockFailed, StateLocked, true},
		{StateLockFailed, StateLockFailed, true},
		{StateLocked, StateCompleted, true},
		{StateLocked, StateAborted, true},
		{StateRefunded, StateAborted, true},
		{StateInitiated, StateCompleted, false},
		{StateCompleted, StateRefunded, false},
		{StateAborted, StateLocked, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func testRecord(id string) TransferRecord {
	return TransferRecord{
		TransferID: id,
		Initiator:  "initiator",
		Recipient:  "recipient",
		HashLock:   "aa",
		TimeLock:   100,
		Amount:     "1000",
	}
}

func runStoreSuite(t *testing.T, s TransferStore) {
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testRecord("01")))
	assert.ErrorIs(t, s.Create(ctx, testRecord("01")), ErrAlreadyExists)

	rec, err := s.Get(ctx, "01")
	require.NoError(t, err)
	assert.Equal(t, StateInitiated, rec.State)
	assert.Equal(t, uint64(100), rec.TimeLock)
	assert.False(t, rec.CreatedAt.IsZero())

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	rec, err = s.Transition(ctx, "01", StateLockFailed, func(r *TransferRecord) {
		r.LockAttempts++
		r.LastError = "lock failed"
	})
	require.NoError(t, err)
	assert.Equal(t, StateLockFailed, rec.State)
	assert.Equal(t, 1, rec.LockAttempts)

	_, err = s.Transition(ctx, "01", StateCompleted, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.Transition(ctx, "01", StateLocked, nil)
	require.NoError(t, err)

	rec, err = s.Update(ctx, "01", func(r *TransferRecord) { r.Secret = "bb" })
	require.NoError(t, err)
	assert.Equal(t, StateLocked, rec.State)

	rec, err = s.Get(ctx, "01")
	require.NoError(t, err)
	assert.Equal(t, "bb", rec.Secret)
	assert.Equal(t, "lock failed", rec.LastError)

	_, err = s.Update(ctx, "missing", func(*TransferRecord) {})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Create(ctx, testRecord("02")))
	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "01", list[0].TransferID)
	assert.Equal(t, "02", list[1].TransferID)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	tick := time.Unix(1700000000, 0)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	runStoreSuite(t, s)
}

func TestBadgerStore(t *testing.T) {
	s, err := NewBadgerStore("", nil)
	require.NoError(t, err)
	defer s.Close()

	tick := time.Unix(1700000000, 0)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	runStoreSuite(t, s)
}

func TestBadgerStorePersists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewBadgerStore(dir, nil)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, testRecord("01")))
	_, err = s.Transition(ctx, "01", StateLocked, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewBadgerStore(dir, nil)
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.Get(ctx, "01")
	require.NoError(t, err)
	assert.Equal(t, StateLocked, rec.State)
}
