package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-kitchen-orders.git/internal/kafka"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/events"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/order"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/redisx"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/stock"
)

var (
	ErrPaymentNotCaptured = errors.New("payment: charge not captured")
	ErrChargeMismatch     = errors.New("payment: charge does not belong to order")
)

type Orders interface {
	Get(ctx context.Context, id string) (*order.Order, error)
	GetByCharge(ctx context.Context, chargeID string) (*order.Order, error)
	Confirm(ctx context.Context, o *order.Order) (bool, []stock.Issue, error)
	Cancel(ctx context.Context, orderID string, pay order.PaymentStatus, from ...order.Status) error
	Release(ctx context.Context, o *order.Order) ([]stock.Line, error)
}

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// Result: hasil finalisasi. AlreadyFinal=true adalah short-circuit
// idempotency, bukan error.
type Result struct {
	OrderID       string              `json:"order_id"`
	Status        order.Status        `json:"status"`
	PaymentStatus order.PaymentStatus `json:"payment_status"`
	AlreadyFinal  bool                `json:"already_final"`
	Issues        []stock.Issue       `json:"issues,omitempty"`
	RefundID      string              `json:"refund_id,omitempty"`
}

// Reconciler menjembatani event charge dari provider ke transisi order.
// Jalur confirm-call dan webhook konvergen di logika yg sama; keduanya
// idempotent per charge id karena delivery webhook at-least-once.
type Reconciler struct {
	Orders         Orders
	Provider       Provider
	Redis          *redis.Client // optional; DB tetap sumber kebenaran
	Producer       Publisher
	ServiceName    string
	CaptureTimeout time.Duration
}

func (r *Reconciler) captureTimeout() time.Duration {
	if r.CaptureTimeout > 0 {
		return r.CaptureTimeout
	}
	return 10 * time.Second
}

// ConfirmByClient: client klaim pembayaran sukses; jangan percaya,
// verifikasi ke provider dulu. Timeout verifikasi = capture gagal
// (refund-attempt lalu cancel), tidak pernah menggantung ambigu.
func (r *Reconciler) ConfirmByClient(ctx context.Context, orderID, chargeID string) (*Result, error) {
	o, err := r.Orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.ChargeID == "" || o.ChargeID != chargeID {
		return nil, ErrChargeMismatch
	}
	if o.PaymentStatus.Final() {
		return r.alreadyFinal(o), nil
	}

	cctx, cancel := context.WithTimeout(ctx, r.captureTimeout())
	defer cancel()
	ch, err := r.Provider.GetCharge(cctx, chargeID)
	if err != nil {
		// status capture tidak bisa dipastikan -> perlakukan gagal
		res, ferr := r.failWithRefund(ctx, o, "CAPTURE_UNVERIFIED")
		if ferr != nil {
			return nil, ferr
		}
		return res, fmt.Errorf("%w: %v", ErrPaymentNotCaptured, err)
	}

	switch ch.Status {
	case ChargeSucceeded:
		return r.finalizeSuccess(ctx, o)
	case ChargeFailed:
		return r.markFailed(ctx, o, "CHARGE_FAILED")
	default:
		// masih pending di provider; biarkan, webhook yg menutup
		return nil, ErrPaymentNotCaptured
	}
}

// WebhookEvent: bentuk event charge setelah verifikasi signature
// (verifikasi itu di luar core ini).
type WebhookEvent struct {
	ID          string `json:"id"`
	Type        string `json:"type"` // charge.succeeded | charge.failed | charge.refunded
	ChargeID    string `json:"charge_id"`
	OrderID     string `json:"order_id,omitempty"` // dari metadata charge
	AmountCents int    `json:"amount_cents,omitempty"`
}

// HandleWebhook: delivery at-least-once, bisa balapan dengan
// ConfirmByClient utk order yg sama — keduanya mendeteksi "sudah final"
// dan no-op dengan aman.
func (r *Reconciler) HandleWebhook(ctx context.Context, ev WebhookEvent) (*Result, error) {
	// dedup murah via redis; guard sesungguhnya tetap state machine di DB
	dkey := ""
	if r.Redis != nil {
		dkey = fmt.Sprintf(redisx.KeyDedupPayment, ev.ChargeID+":"+ev.Type)
		if ok, _ := redisx.Exists(ctx, r.Redis, dkey); ok {
			return nil, nil
		}
	}

	o, err := r.resolveOrder(ctx, ev)
	if err != nil {
		return nil, err
	}

	var res *Result
	switch ev.Type {
	case "charge.succeeded":
		if o.PaymentStatus.Final() {
			res = r.alreadyFinal(o)
		} else {
			res, err = r.finalizeSuccess(ctx, o)
		}
	case "charge.failed":
		if o.PaymentStatus.Final() {
			res = r.alreadyFinal(o)
		} else {
			res, err = r.markFailed(ctx, o, "CHARGE_FAILED")
		}
	case "charge.refunded":
		// refund pasca-decrement: kembalikan stok + kuota
		if o.Status != order.StatusConfirmed {
			res = r.alreadyFinal(o)
		} else {
			res, err = r.release(ctx, o)
		}
	default:
		return nil, fmt.Errorf("payment: unknown webhook type %q", ev.Type)
	}

	// tandai SETELAH diproses: gagal transien di tengah jalan masih bisa
	// di-redeliver tanpa mental di fast path
	if err == nil && dkey != "" {
		_ = r.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}
	return res, err
}

func (r *Reconciler) resolveOrder(ctx context.Context, ev WebhookEvent) (*order.Order, error) {
	if ev.OrderID != "" {
		return r.Orders.Get(ctx, ev.OrderID)
	}
	return r.Orders.GetByCharge(ctx, ev.ChargeID)
}

// finalizeSuccess: capture sudah sukses. Re-validasi + decrement + kuota
// terjadi atomik di Orders.Confirm; kalau gagal, uang wajib dikembalikan —
// tidak boleh menahan pembayaran utk barang yg tidak bisa dikirim.
func (r *Reconciler) finalizeSuccess(ctx context.Context, o *order.Order) (*Result, error) {
	ok, issues, err := r.Orders.Confirm(ctx, o)
	if errors.Is(err, order.ErrInvalidTransition) {
		// difinalkan proses lain di antara cek dan commit
		cur, gerr := r.Orders.Get(ctx, o.ID)
		if gerr != nil {
			return nil, gerr
		}
		return r.alreadyFinal(cur), nil
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		res, ferr := r.failWithRefund(ctx, o, reasonsFrom(issues)...)
		if res != nil {
			res.Issues = issues
		}
		return res, ferr
	}

	r.publishOrderEvent(events.TopicOrderConfirmed, events.EventOrderConfirmed, o.ID, events.OrderConfirmedPayload{
		OrderID: o.ID, ChargeID: o.ChargeID, TotalCents: o.TotalCents,
	})
	r.publishStockChanged(o, "order")
	r.cacheStatus(ctx, o.ID, order.StatusConfirmed, order.PaymentCompleted)
	return &Result{OrderID: o.ID, Status: order.StatusConfirmed, PaymentStatus: order.PaymentCompleted, Issues: issues}, nil
}

// failWithRefund: capture sukses tapi order tidak bisa dipenuhi.
// Refund diterbitkan sekali (guard SETNX per charge), lalu cancel.
func (r *Reconciler) failWithRefund(ctx context.Context, o *order.Order, reasons ...string) (*Result, error) {
	pay := order.PaymentFailed
	refundID := ""
	if o.ChargeID != "" && r.claimRefund(ctx, o.ChargeID) {
		rctx, cancel := context.WithTimeout(ctx, r.captureTimeout())
		id, err := r.Provider.Refund(rctx, o.ChargeID, o.TotalCents)
		cancel()
		if err != nil {
			// refund gagal diterbitkan: tetap cancel, biar direkonsiliasi
			// ulang oleh webhook charge.refunded dari provider
			log.Printf("refund charge=%s order=%s: %v", o.ChargeID, o.ID, err)
		} else {
			refundID = id
			pay = order.PaymentRefunded
		}
	}

	if err := r.Orders.Cancel(ctx, o.ID, pay); err != nil && !errors.Is(err, order.ErrInvalidTransition) {
		return nil, err
	}
	r.publishOrderEvent(events.TopicOrderCancelled, events.EventOrderCancelled, o.ID, events.OrderCancelledPayload{
		OrderID: o.ID, ChargeID: o.ChargeID, PaymentStatus: string(pay), Reasons: reasons,
	})
	r.cacheStatus(ctx, o.ID, order.StatusCancelled, pay)
	return &Result{OrderID: o.ID, Status: order.StatusCancelled, PaymentStatus: pay, RefundID: refundID}, nil
}

// markFailed: charge gagal di provider. Stok belum pernah disentuh di
// jalur ini, tidak ada kompensasi.
func (r *Reconciler) markFailed(ctx context.Context, o *order.Order, reasons ...string) (*Result, error) {
	if err := r.Orders.Cancel(ctx, o.ID, order.PaymentFailed); err != nil && !errors.Is(err, order.ErrInvalidTransition) {
		return nil, err
	}
	r.publishOrderEvent(events.TopicOrderCancelled, events.EventOrderCancelled, o.ID, events.OrderCancelledPayload{
		OrderID: o.ID, ChargeID: o.ChargeID, PaymentStatus: string(order.PaymentFailed), Reasons: reasons,
	})
	r.cacheStatus(ctx, o.ID, order.StatusCancelled, order.PaymentFailed)
	return &Result{OrderID: o.ID, Status: order.StatusCancelled, PaymentStatus: order.PaymentFailed}, nil
}

func (r *Reconciler) release(ctx context.Context, o *order.Order) (*Result, error) {
	if _, err := r.Orders.Release(ctx, o); err != nil {
		if errors.Is(err, order.ErrInvalidTransition) {
			cur, gerr := r.Orders.Get(ctx, o.ID)
			if gerr != nil {
				return nil, gerr
			}
			return r.alreadyFinal(cur), nil
		}
		return nil, err
	}
	r.publishOrderEvent(events.TopicOrderCancelled, events.EventOrderCancelled, o.ID, events.OrderCancelledPayload{
		OrderID: o.ID, ChargeID: o.ChargeID, PaymentStatus: string(order.PaymentRefunded),
	})
	r.publishStockChanged(o, "refund")
	r.cacheStatus(ctx, o.ID, order.StatusCancelled, order.PaymentRefunded)
	return &Result{OrderID: o.ID, Status: order.StatusCancelled, PaymentStatus: order.PaymentRefunded}, nil
}

func (r *Reconciler) alreadyFinal(o *order.Order) *Result {
	return &Result{OrderID: o.ID, Status: o.Status, PaymentStatus: o.PaymentStatus, AlreadyFinal: true}
}

// claimRefund: SETNX per charge supaya refund tidak diterbitkan dobel
// saat webhook dan confirm-call balapan. Tanpa redis, guard jatuh ke
// state machine order saja.
func (r *Reconciler) claimRefund(ctx context.Context, chargeID string) bool {
	if r.Redis == nil {
		return true
	}
	ok, err := redisx.Claim(ctx, r.Redis, fmt.Sprintf(redisx.KeyDedupPayment, chargeID+":refund"), redisx.TTLDedup)
	if err != nil {
		return true // redis down bukan alasan menahan uang orang
	}
	return ok
}

func (r *Reconciler) cacheStatus(ctx context.Context, orderID string, st order.Status, pay order.PaymentStatus) {
	if r.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	val := fmt.Sprintf(`{"status":%q,"payment_status":%q}`, st, pay)
	_ = r.Redis.Set(ctx, key, val, redisx.TTLStatusCache).Err()
}

func (r *Reconciler) publishOrderEvent(topic, eventType, orderID string, payload any) {
	if r.Producer == nil {
		return
	}
	ev := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      r.ServiceName,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	r.Producer.Publish(topic, events.PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (r *Reconciler) publishStockChanged(o *order.Order, source string) {
	if r.Producer == nil {
		return
	}
	payload := events.StockChangedPayload{
		IngredientIDs: o.TouchedIngredients(),
		ProductIDs:    o.TouchedProducts(),
		Source:        source,
	}
	ev := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     events.EventStockChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      r.ServiceName,
		CorrelationID: o.ID,
		Payload:       kafkax.MustMarshal(payload),
	}
	r.Producer.Publish(events.TopicStockChanged, events.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventStockChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func reasonsFrom(issues []stock.Issue) []string {
	var out []string
	for _, is := range issues {
		if is.Blocking {
			out = append(out, fmt.Sprintf("%s:%s:%s", is.Kind, is.ID, is.Reason))
		}
	}
	if len(out) == 0 {
		out = []string{"REVALIDATION_FAILED"}
	}
	return out
}
