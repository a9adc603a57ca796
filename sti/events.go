package sti

import "sync"

// Event names a point in the record lifecycle.
type Event string

const (
	// EventCreating fires immediately before a new record is first persisted.
	EventCreating Event = "creating"
	// EventRetrieved fires after a record has been materialized from storage.
	EventRetrieved Event = "retrieved"
)

// Listener observes a lifecycle event. Returning an error from a halting
// dispatch stops the operation.
type Listener func(rec Record) error

// Events is a small lifecycle dispatcher shared by a resolver and its host.
type Events struct {
	mu        sync.RWMutex
	listeners map[Event][]Listener
}

// NewEvents creates an empty dispatcher.
func NewEvents() *Events {
	return &Events{listeners: make(map[Event][]Listener)}
}

// Listen registers fn for ev. Listeners run in registration order.
func (e *Events) Listen(ev Event, fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[ev] = append(e.listeners[ev], fn)
}

// Fire runs the listeners for ev and stops at the first error.
func (e *Events) Fire(ev Event, rec Record) error {
	for _, fn := range e.snapshot(ev) {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// Dispatch runs every listener for ev regardless of failures and returns
// the errors collected.
func (e *Events) Dispatch(ev Event, rec Record) []error {
	var errs []error
	for _, fn := range e.snapshot(ev) {
		if err := fn(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (e *Events) snapshot(ev Event) []Listener {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Listener(nil), e.listeners[ev]...)
}
