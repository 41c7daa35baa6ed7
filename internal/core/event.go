package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventSnapshot carries the popularity snapshot, either broadcast or in reply to a request.
	EventSnapshot EventKind = iota
	// EventError notifies the originating client about a rejected command.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
	Error    *CoreError
}
