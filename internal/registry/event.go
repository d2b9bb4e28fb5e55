package registry

// EventKind names a domain event.
type EventKind string

const (
	ClaimCreated     EventKind = "ClaimCreated"
	ClaimTransferred EventKind = "ClaimTransferred"
	ClaimRevoked     EventKind = "ClaimRevoked"
)

// Event is emitted once per successful mutating operation.
// Receiver is only set for ClaimTransferred.
type Event struct {
	Kind        EventKind
	Caller      Identity
	Receiver    Identity
	Fingerprint Fingerprint
}

// EventSink receives the events emitted by the registry.
type EventSink interface {
	Deposit(Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

// Deposit calls f(ev).
func (f SinkFunc) Deposit(ev Event) {
	f(ev)
}

// discardSink drops every event.
type discardSink struct{}

func (discardSink) Deposit(Event) {}

// Discard is an EventSink that drops every event.
var Discard EventSink = discardSink{}

// Recorder is an EventSink that keeps events in memory, in emission order.
type Recorder struct {
	events []Event
}

// Deposit appends ev.
func (r *Recorder) Deposit(ev Event) {
	r.events = append(r.events, ev)
}

// Events returns the recorded events.
func (r *Recorder) Events() []Event {
	return r.events
}

// Drain returns the recorded events and clears the recorder.
func (r *Recorder) Drain() []Event {
	out := r.events
	r.events = nil
	return out
}
