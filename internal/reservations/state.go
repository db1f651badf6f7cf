package reservations

import "fmt"

// State is the lifecycle position of a single Reserve call.
type State int

const (
	StateValidating State = iota
	StateReserving
	StateCommitting
	StateConfirmed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateValidating:
		return "validating"
	case StateReserving:
		return "reserving"
	case StateCommitting:
		return "committing"
	case StateConfirmed:
		return "confirmed"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateAborted
}

// CanTransition reports whether s -> to is a legal step. Besides the forward
// path, a lost optimistic race returns Committing to Reserving, and a replayed
// idempotency key confirms straight from Validating.
func (s State) CanTransition(to State) bool {
	switch {
	case s.Terminal():
		return false
	case to == StateAborted:
		return true
	case s == StateCommitting && to == StateReserving:
		return true
	case s == StateValidating && to == StateConfirmed:
		return true
	}
	return to == s+1
}

// Observer is notified of every state change of a reservation.
type Observer func(reservationID string, from, to State)

type tracker struct {
	id       string
	state    State
	observer Observer
}

func newTracker(id string, observer Observer) *tracker {
	return &tracker{id: id, state: StateValidating, observer: observer}
}

func (t *tracker) advance(to State) error {
	if !t.state.CanTransition(to) {
		return fmt.Errorf("%w: illegal transition %s -> %s", ErrInternalInconsistency, t.state, to)
	}
	from := t.state
	t.state = to
	if t.observer != nil {
		t.observer(t.id, from, to)
	}
	return nil
}

// abort moves to Aborted unless the reservation already finished.
func (t *tracker) abort() {
	if !t.state.Terminal() {
		_ = t.advance(StateAborted)
	}
}
