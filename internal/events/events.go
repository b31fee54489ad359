package events

import (
	"encoding/json"
	"time"
)

const (
	EventStockChanged      = "StockChanged"
	EventPlateAvailability = "PlateAvailabilityChanged"
	EventOrderCreated      = "OrderCreated"
	EventOrderConfirmed    = "OrderConfirmed"
	EventOrderCancelled    = "OrderCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // salah satu const di atas
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g., "kitchen-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // biasanya order_id
	Payload       json.RawMessage `json:"payload"`                  // payload spesifik
}

// ---- Payload tipe per event ----

// StockChangedPayload: daftar ingredient/product yg stok atau flag
// availability-nya berubah. Propagator cuma perlu id-nya.
type StockChangedPayload struct {
	IngredientIDs []string `json:"ingredient_ids,omitempty"`
	ProductIDs    []string `json:"product_ids,omitempty"`
	Source        string   `json:"source"` // admin | order | refund
}

type PlateAvailabilityPayload struct {
	PlateID   string `json:"plate_id"`
	Available bool   `json:"available"`
}

type OrderCreatedPayload struct {
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	ChargeID   string `json:"charge_id"`
	TotalCents int    `json:"total_cents"`
	TotalGrams int    `json:"total_grams"`
}

type OrderConfirmedPayload struct {
	OrderID    string `json:"order_id"`
	ChargeID   string `json:"charge_id"`
	TotalCents int    `json:"total_cents"`
}

type OrderCancelledPayload struct {
	OrderID       string   `json:"order_id"`
	ChargeID      string   `json:"charge_id,omitempty"`
	PaymentStatus string   `json:"payment_status"` // failed | refunded
	Reasons       []string `json:"reasons,omitempty"`
}
