package bus

import "time"

// Event kinds published by the daemon.
const (
	KindStoreChanged     = "store.changed"
	KindStoreUnavailable = "store.unavailable"
	KindStatusChanged    = "status.changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
