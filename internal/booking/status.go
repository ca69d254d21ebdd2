package booking

type Kind string

const (
	KindRental  Kind = "rental"
	KindSale    Kind = "sale"
	KindPackage Kind = "package"
)

func (k Kind) Valid() bool {
	switch k {
	case KindRental, KindSale, KindPackage:
		return true
	}
	return false
}

type Status string

const (
	StatusQuote            Status = "quote"
	StatusPendingSelection Status = "pending_selection"
	StatusConfirmed        Status = "confirmed"
	StatusDelivered        Status = "delivered"
	StatusReturned         Status = "returned"
	StatusOrderComplete    Status = "order_complete"
	StatusCancelled        Status = "cancelled"
)

// validNext is the kind-independent part of the transition table; kind guards
// are applied on top in CanTransition.
var validNext = map[Status]map[Status]bool{
	StatusQuote:            {StatusConfirmed: true},
	StatusPendingSelection: {StatusConfirmed: true},
	StatusConfirmed:        {StatusDelivered: true},
	StatusDelivered:        {StatusReturned: true, StatusOrderComplete: true},
	StatusReturned:         {},
	StatusOrderComplete:    {},
	StatusCancelled:        {},
}

// IsTerminal reports whether no transition may leave s.
func IsTerminal(s Status) bool {
	return s == StatusReturned || s == StatusOrderComplete || s == StatusCancelled
}

// CanTransition checks the guarded transition table for a booking of the given
// kind. Cancel is legal from any non-terminal state. Out of `delivered`, sale
// bookings complete while rentals and packages wait for all units to return.
func CanTransition(kind Kind, from, to Status) bool {
	if IsTerminal(from) {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	if !validNext[from][to] {
		return false
	}
	switch {
	case from == StatusDelivered && to == StatusOrderComplete:
		return kind == KindSale
	case from == StatusDelivered && to == StatusReturned:
		return kind == KindRental || kind == KindPackage
	}
	return true
}
