package crawler

import "github.com/tradeguard-network/tradeguard-daemon/pkg/explorer"

// EventType defines the kind of event emitted by the crawler.
type EventType int

const (
	// AddressDeposit is emitted when the recent incoming transfers of an
	// observed address have been fetched.
	AddressDeposit EventType = iota
	// CloseSignal is emitted right before the event channel is closed.
	CloseSignal
)

func (et EventType) String() string {
	switch et {
	case AddressDeposit:
		return "AddressDeposit"
	case CloseSignal:
		return "CloseSignal"
	default:
		return "Unknown"
	}
}

// AddressEvent carries the latest incoming token transfers observed for an
// address.
type AddressEvent struct {
	EventType EventType
	Address   string
	Transfers []explorer.Transfer
}

// Type implements the Event interface.
func (a AddressEvent) Type() EventType {
	return a.EventType
}

// QuitEvent is sent when the crawler is stopped.
type QuitEvent struct{}

// Type implements the Event interface.
func (q QuitEvent) Type() EventType {
	return CloseSignal
}
