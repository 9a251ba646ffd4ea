package orders

// Status is the single source of truth for the order lifecycle. WAITING_PAYMENT
// is the self-service entry point; PAID is the cashier fast path where payment
// settled at creation. Both converge on PROCESSING.
type Status string

const (
	StatusWaitingPayment Status = "WAITING_PAYMENT"
	StatusPaid           Status = "PAID"
	StatusProcessing     Status = "PROCESSING"
	StatusReadyForPickup Status = "READY_FOR_PICKUP"
	StatusCompleted      Status = "COMPLETED"
	StatusCancelled      Status = "CANCELLED"
)

var validNext = map[Status]map[Status]bool{
	StatusWaitingPayment: {StatusProcessing: true, StatusCancelled: true},
	StatusPaid:           {StatusProcessing: true},
	StatusProcessing:     {StatusReadyForPickup: true, StatusCancelled: true},
	StatusReadyForPickup: {StatusCompleted: true},
	StatusCompleted:      {},
	StatusCancelled:      {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// KnownStatus reports whether s is part of the lifecycle at all.
func KnownStatus(s Status) bool {
	_, ok := validNext[s]
	return ok
}

// Cancellable statuses: an order past PROCESSING is either being handed over or
// already terminal, so the whole-order cancel path is closed.
func Cancellable(s Status) bool {
	return s == StatusWaitingPayment || s == StatusProcessing
}
