package okapi

// EventType classifies a notification delivered by a watch session.
type EventType string

const (
	// EventCreated reports a resource the server added.
	EventCreated EventType = "create"

	// EventUpdated reports a resource the server modified.
	EventUpdated EventType = "update"

	// EventDeleted reports a resource the server removed.
	EventDeleted EventType = "delete"

	// EventError reports a failure; the session may or may not continue
	// depending on the failure class.
	EventError EventType = "error"

	// EventResponse reports that a streaming connection was established.
	// Sessions emit one per connect and reconnect.
	EventResponse EventType = "response"
)

// Wire-level change types sent by the server inside watch frames.
const (
	WatchAdded    = "ADDED"
	WatchModified = "MODIFIED"
	WatchDeleted  = "DELETED"
)

// WatchEvent is one notification from a watch session. Object is set for
// create/update/delete events; Err for error events; StatusCode for response
// events. Raw carries the undecoded payload when the server sent a change
// type the session does not recognize.
type WatchEvent struct {
	Type       EventType
	Object     *Object
	Err        error
	StatusCode int
	Raw        []byte
}

// WatchSession is a long-lived subscription to change events for one
// resource collection or item.
//
// A session is created holding the snapshot taken when the watch was
// requested; registering on Events and then calling Start guarantees no
// change between snapshot and subscription is missed. Delivery across
// reconnects is at-least-once: the server may re-send events at the resume
// boundary, so consumers must tolerate duplicates.
type WatchSession interface {
	// Snapshot returns the collection state captured when the watch was
	// requested, along with the resource version the stream resumes from.
	Snapshot() *List

	// Events returns the channel notifications are delivered on. The channel
	// is closed when the session stops.
	Events() <-chan WatchEvent

	// Start opens the streaming connection. Calling Start again without
	// WithForce is a no-op. WithForce opens an additional connection and
	// produces duplicate events; callers must not force a session that is
	// already connected.
	Start(opts ...StartOption) error

	// Stop tears down the connection and closes the event channel. No
	// reconnect attempts occur after Stop.
	Stop()

	// ResourceVersion returns the version the session would resume from.
	ResourceVersion() string
}

// StartOptions configures a watch session's Start transition.
type StartOptions struct {
	// RetryLimit bounds reconnect attempts after timeout-class transport
	// errors. Negative means unlimited (the default). Reconnects after a
	// clean end-of-stream never consume the budget.
	RetryLimit int

	// Force opens a connection even if the session is already started.
	Force bool
}

// StartOption mutates StartOptions.
type StartOption func(*StartOptions)

// DefaultStartOptions returns the options Start uses when none are given.
func DefaultStartOptions() StartOptions {
	return StartOptions{RetryLimit: -1}
}

// WithRetryLimit bounds the number of reconnects attempted after
// timeout-class failures before the session gives up with an error event.
func WithRetryLimit(n int) StartOption {
	return func(o *StartOptions) {
		o.RetryLimit = n
	}
}

// WithForce opens an additional connection on an already-started session.
func WithForce() StartOption {
	return func(o *StartOptions) {
		o.Force = true
	}
}
