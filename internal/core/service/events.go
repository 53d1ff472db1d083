package service

import "github.com/phantom-eng/bytefood-web/internal/core/domain"

type EventKind string

const (
	EventStateChanged EventKind = "state_changed"
	EventCartChanged  EventKind = "cart_changed"
	EventNotice       EventKind = "notice"
	EventReceipt      EventKind = "receipt"
	EventSent         EventKind = "sent"
)

// Event is published to subscribers after the operation that produced it has finished,
// so a subscriber may call back into the session.
type Event struct {
	SessionID string
	Kind      EventKind
	From      domain.CheckoutState
	State     domain.CheckoutState
	Op        string
	Notice    string
	Err       error
}

type Subscriber func(Event)

type eventBuffer []Event

func (b *eventBuffer) add(e Event) {
	*b = append(*b, e)
}
