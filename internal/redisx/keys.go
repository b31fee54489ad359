package redisx

import "time"

const (
	// Dedup event payment per charge: dedup:payment:{charge_id}
	KeyDedupPayment = "dedup:payment:%s"

	// Dedup event processing generik: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Cache status order: order_status:{order_id} -> {"status":"...","payment_status":"..."}
	KeyOrderStatus = "order_status:%s"

	// Idempotency checkout per cart: idem:checkout:{cart_id} -> order_id
	KeyIdemCheckout = "idem:checkout:%s"
)

var (
	TTLDedup       = 48 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLIdempotency = 24 * time.Hour
)
