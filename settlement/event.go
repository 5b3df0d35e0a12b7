package settlement

import (
	"time"

	"github.com/google/uuid"
	"github.com/vitwit/htlcbridge/types"
)

// EventTopic is the EventBus topic every Event is published on.
const EventTopic = "htlcbridge:settlement"

type EventKind string

const (
	EventInitiated             EventKind = "initiated"
	EventLocked                EventKind = "locked"
	EventLockFailed            EventKind = "lock_failed"
	EventCounterpartyCompleted EventKind = "counterparty_completed"
	EventInitiatorCompleted    EventKind = "initiator_completed"
	EventCompleteFailed        EventKind = "complete_failed"
	EventRefunded              EventKind = "refunded"
	EventAborted               EventKind = "aborted"
)

// Event is one step of a transfer as observed by the service. TransferID is
// the initiator-side id in hex. Err is set for the failure kinds.
type Event struct {
	ID         uuid.UUID
	Role       types.ChainRole
	Kind       EventKind
	TransferID string
	Err        error
	At         time.Time
}

func newEvent(role types.ChainRole, kind EventKind, id string, err error) Event {
	return Event{
		ID:         uuid.New(),
		Role:       role,
		Kind:       kind,
		TransferID: id,
		Err:        err,
		At:         time.Now(),
	}
}

// Failed reports whether the event records a failed operation.
func (e Event) Failed() bool {
	return e.Err != nil
}

func (e Event) fields() map[string]any {
	f := map[string]any{
		"event_id":    e.ID.String(),
		"chain":       e.Role.String(),
		"kind":        string(e.Kind),
		"transfer_id": e.TransferID,
	}
	if e.Err != nil {
		f["error"] = e.Err
	}
	return f
}
