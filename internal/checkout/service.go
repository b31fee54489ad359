package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-kitchen-orders.git/internal/cart"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/events"
	kafkax "github.com/ariefcatur/go-kitchen-orders.git/internal/kafka"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/order"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/payment"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/redisx"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/stock"
)

// ErrStaleCart: re-validasi saat checkout menemukan item yg sudah tidak
// bisa dipenuhi (stok terkuras cart lain, plate di-disable, kuota habis).
var ErrStaleCart = errors.New("checkout: cart is stale")

type Orders interface {
	Create(ctx context.Context, o *order.Order) error
	SetAwaitingPayment(ctx context.Context, orderID, chargeID string) error
	Cancel(ctx context.Context, orderID string, pay order.PaymentStatus, from ...order.Status) error
}

type Carts interface {
	Validate(ctx context.Context, userID string) (*cart.Cart, *cart.ValidationResult, error)
	LinesFor(ctx context.Context, items []cart.Item) ([]stock.Line, error)
	MarkCheckedOut(ctx context.Context, cartID string) error
}

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Orders      Orders
	Carts       Carts
	Provider    payment.Provider
	Producer    Publisher
	Redis       *redis.Client
	ServiceName string
}

type Result struct {
	OrderID      string `json:"order_id"`
	ClientSecret string `json:"client_secret"`
	TotalCents   int    `json:"total_cents"`
}

// Checkout mengonversi cart open jadi order pending + charge di provider.
// Stok TIDAK disentuh di sini; decrement terjadi exactly-once saat
// payment completed (lihat order.Repo.Confirm). Kalau validasi gagal,
// cart ditinggalkan utuh dan user dapat daftar masalahnya.
func (s *Service) Checkout(ctx context.Context, userID string) (*Result, *cart.ValidationResult, error) {
	c, vres, err := s.Carts.Validate(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if !vres.Valid {
		return nil, vres, ErrStaleCart
	}

	// double-submit utk cart yg sama: balikin hasil checkout yg sudah ada,
	// jangan bikin order + charge kedua
	if prev := s.previousResult(ctx, c.ID); prev != nil {
		return prev, vres, nil
	}

	// snapshot beku: harga locked-in dari cart, resep di-expand sekarang
	items := order.SnapshotFromCart(c.Items, func(it cart.Item) []stock.Line {
		lines, lerr := s.Carts.LinesFor(ctx, []cart.Item{it})
		if lerr != nil {
			err = lerr
			return nil
		}
		return lines
	})
	if err != nil {
		return nil, nil, err
	}

	o := &order.Order{
		ID:            uuid.NewString(),
		UserID:        userID,
		CartID:        c.ID,
		Status:        order.StatusPending,
		PaymentStatus: order.PaymentPending,
		Items:         items,
		TotalCents:    cart.TotalCents(c.Items),
		TotalGrams:    cart.TotalGrams(c.Items),
	}
	if err := s.Orders.Create(ctx, o); err != nil {
		return nil, nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	ch, err := s.Provider.CreateCharge(cctx, o.TotalCents, map[string]string{"order_id": o.ID})
	if err != nil {
		// charge gagal dibuat: order dibatalkan, cart tetap open
		_ = s.Orders.Cancel(ctx, o.ID, order.PaymentFailed)
		return nil, nil, err
	}

	if err := s.Orders.SetAwaitingPayment(ctx, o.ID, ch.ID); err != nil {
		return nil, nil, err
	}

	// MarkCheckedOut adalah penentu balapan: cuma satu checkout yg bisa
	// menutup cart open. Kalah = order kita dibatalkan, hasil pemenang
	// (kalau sudah tercatat) yg dikembalikan.
	if err := s.Carts.MarkCheckedOut(ctx, c.ID); err != nil {
		_ = s.Orders.Cancel(ctx, o.ID, order.PaymentFailed)
		if prev := s.previousResult(ctx, c.ID); prev != nil {
			return prev, vres, nil
		}
		return nil, nil, err
	}

	res := &Result{OrderID: o.ID, ClientSecret: ch.ClientSecret, TotalCents: o.TotalCents}
	if s.Redis != nil {
		_ = s.Redis.Set(ctx, fmt.Sprintf(redisx.KeyIdemCheckout, c.ID), kafkax.MustMarshal(res), redisx.TTLIdempotency).Err()
		_ = s.Redis.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, o.ID),
			fmt.Sprintf(`{"status":%q,"payment_status":%q}`, order.StatusAwaitingPayment, order.PaymentPending),
			redisx.TTLStatusCache).Err()
	}

	s.publishCreated(o, ch.ID)
	return res, vres, nil
}

// previousResult: hasil checkout terdahulu utk cart ini (kalau ada).
func (s *Service) previousResult(ctx context.Context, cartID string) *Result {
	if s.Redis == nil {
		return nil
	}
	raw, err := s.Redis.Get(ctx, fmt.Sprintf(redisx.KeyIdemCheckout, cartID)).Result()
	if err != nil || raw == "" {
		return nil
	}
	var prev Result
	if json.Unmarshal([]byte(raw), &prev) != nil || prev.OrderID == "" {
		return nil
	}
	return &prev
}

func (s *Service) publishCreated(o *order.Order, chargeID string) {
	if s.Producer == nil {
		return
	}
	ev := events.Envelope{
		EventID:       uuid.NewString(),
		EventType:     events.EventOrderCreated,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(events.OrderCreatedPayload{
			OrderID: o.ID, UserID: o.UserID, ChargeID: chargeID,
			TotalCents: o.TotalCents, TotalGrams: o.TotalGrams,
		}),
	}
	s.Producer.Publish(events.TopicOrderCreated, events.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventOrderCreated)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
