// Package storage persists the bridge's view of each transfer as it moves
// through its lifecycle.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("transfer record not found")
	ErrAlreadyExists     = errors.New("transfer record already exists")
	ErrInvalidTransition = errors.New("invalid state transition")
)

// State is the lifecycle stage of a transfer as seen by the bridge.
type State string

const (
	StateInitiated  State = "initiated"
	StateLockFailed State = "lock_failed"
	StateLocked     State = "locked"
	StateCompleted  State = "completed"
	StateRefunded   State = "refunded"
	StateAborted    State = "aborted"
)

var transitions = map[State][]State{
	StateInitiated:  {StateLocked, StateLockFailed, StateRefunded},
	StateLockFailed: {StateLocked, StateLockFailed, StateRefunded},
	StateLocked:     {StateCompleted, StateRefunded, StateAborted},
	StateCompleted:  {StateCompleted},
	StateRefunded:   {StateAborted},
	StateAborted:    {StateRefunded},
}

// CanTransition reports whether a record in from may move to to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransferRecord is the persisted form of one transfer. Ids, hash locks and
// secrets are lowercase hex; addresses are their raw text.
type TransferRecord struct {
	TransferID   string    `json:"transferId"`
	Initiator    string    `json:"initiator"`
	Recipient    string    `json:"recipient"`
	HashLock     string    `json:"hashLock"`
	TimeLock     uint64    `json:"timeLock"`
	Amount       string    `json:"amount"`
	Secret       string    `json:"secret,omitempty"`
	State        State     `json:"state"`
	Settled      bool      `json:"settled"`
	Refunded     bool      `json:"refunded"`
	Aborted      bool      `json:"aborted"`
	LockAttempts int       `json:"lockAttempts"`
	LastError    string    `json:"lastError,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// TransferStore keeps transfer records keyed by transfer id.
type TransferStore interface {
	// Create stores a new record in StateInitiated.
	Create(ctx context.Context, rec TransferRecord) error
	Get(ctx context.Context, id string) (*TransferRecord, error)
	// Transition moves the record to state to and applies mutate to it in
	// the same step. mutate may be nil.
	Transition(ctx context.Context, id string, to State, mutate func(*TransferRecord)) (*TransferRecord, error)
	// Update applies mutate without changing state.
	Update(ctx context.Context, id string, mutate func(*TransferRecord)) (*TransferRecord, error)
	List(ctx context.Context) ([]TransferRecord, error)
	Close() error
}

func newRecord(rec TransferRecord, now time.Time) TransferRecord {
	rec.State = StateInitiated
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return rec
}

func applyTransition(rec *TransferRecord, to State, mutate func(*TransferRecord), now time.Time) error {
	if !CanTransition(rec.State, to) {
		return fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, rec.State, to, rec.TransferID)
	}
	rec.State = to
	if mutate != nil {
		mutate(rec)
	}
	rec.UpdatedAt = now
	return nil
}
