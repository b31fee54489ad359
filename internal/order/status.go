package order

type Status string

const (
	StatusPending         Status = "PENDING"
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusConfirmed       Status = "CONFIRMED"
	StatusCancelled       Status = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:         {StatusAwaitingPayment: true, StatusCancelled: true},
	StatusAwaitingPayment: {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed:       {StatusCancelled: true}, // refund pasca-capture
	StatusCancelled:       {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Final: payment status yg tidak boleh berubah lagi kecuali refund.
func (p PaymentStatus) Final() bool {
	return p == PaymentCompleted || p == PaymentFailed || p == PaymentRefunded
}
