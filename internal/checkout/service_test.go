package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-kitchen-orders.git/internal/cart"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/events"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/order"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/payment"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/stock"
)

type fakeOrders struct {
	created   []*order.Order
	awaiting  map[string]string // orderID -> chargeID
	cancelled map[string]order.PaymentStatus
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{awaiting: map[string]string{}, cancelled: map[string]order.PaymentStatus{}}
}

func (f *fakeOrders) Create(_ context.Context, o *order.Order) error {
	f.created = append(f.created, o)
	return nil
}
func (f *fakeOrders) SetAwaitingPayment(_ context.Context, orderID, chargeID string) error {
	f.awaiting[orderID] = chargeID
	return nil
}
func (f *fakeOrders) Cancel(_ context.Context, orderID string, pay order.PaymentStatus, _ ...order.Status) error {
	f.cancelled[orderID] = pay
	return nil
}

type fakeCarts struct {
	cart *cart.Cart
	vres *cart.ValidationResult

	checkedOut []string
}

func (f *fakeCarts) Validate(context.Context, string) (*cart.Cart, *cart.ValidationResult, error) {
	if f.cart == nil {
		return nil, nil, cart.ErrCartNotFound
	}
	return f.cart, f.vres, nil
}

func (f *fakeCarts) LinesFor(_ context.Context, items []cart.Item) ([]stock.Line, error) {
	var lines []stock.Line
	for _, it := range items {
		lines = append(lines, stock.Line{Kind: stock.KindIngredient, ID: "basil", Qty: it.Qty})
	}
	return lines, nil
}

func (f *fakeCarts) MarkCheckedOut(_ context.Context, cartID string) error {
	for _, id := range f.checkedOut {
		if id == cartID {
			return cart.ErrCartNotFound // cart open sudah keburu ditutup
		}
	}
	f.checkedOut = append(f.checkedOut, cartID)
	return nil
}

type fakeProvider struct {
	charge      payment.Charge
	createErr   error
	lastAmount  int
	lastMeta    map[string]string
	createCalls int
}

func (f *fakeProvider) CreateCharge(_ context.Context, amountCents int, metadata map[string]string) (payment.Charge, error) {
	f.createCalls++
	f.lastAmount = amountCents
	f.lastMeta = metadata
	if f.createErr != nil {
		return payment.Charge{}, f.createErr
	}
	return f.charge, nil
}
func (f *fakeProvider) GetCharge(context.Context, string) (payment.Charge, error) {
	return f.charge, nil
}
func (f *fakeProvider) Refund(context.Context, string, int) (string, error) { return "", nil }

type fakePublisher struct{ topics []string }

func (f *fakePublisher) Publish(topic string, _, _ []byte, _ ...kafkago.Header) {
	f.topics = append(f.topics, topic)
}

func openCart() *cart.Cart {
	return &cart.Cart{
		ID: "cart-1", UserID: "user-1", Status: cart.StatusOpen,
		Items: []cart.Item{
			{ID: "it-1", CartID: "cart-1", Kind: cart.KindPlate, PlateID: "pesto",
				Name: "Pesto Bowl", UnitPriceCents: 1200, UnitWeightGrams: 400, Qty: 2},
		},
	}
}

func newService() (*Service, *fakeOrders, *fakeCarts, *fakeProvider, *fakePublisher) {
	fo := newFakeOrders()
	fc := &fakeCarts{cart: openCart(), vres: &cart.ValidationResult{Valid: true, RemainingGrams: 4_200}}
	fp := &fakeProvider{charge: payment.Charge{ID: "ch_1", ClientSecret: "sec_1", Status: payment.ChargePending}}
	pub := &fakePublisher{}
	return &Service{Orders: fo, Carts: fc, Provider: fp, Producer: pub, ServiceName: "test"}, fo, fc, fp, pub
}

func TestCheckout_Success(t *testing.T) {
	svc, fo, fc, fp, pub := newService()

	res, vres, err := svc.Checkout(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, vres.Valid)

	require.Len(t, fo.created, 1)
	o := fo.created[0]
	assert.Equal(t, res.OrderID, o.ID)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, 2400, o.TotalCents)
	assert.Equal(t, 800, o.TotalGrams)

	// snapshot sudah membawa lines hasil expand
	require.Len(t, o.Items, 1)
	assert.Equal(t, []stock.Line{{Kind: stock.KindIngredient, ID: "basil", Qty: 2}}, o.Items[0].Lines)

	// charge sebesar total, metadata nyambung ke order
	assert.Equal(t, 2400, fp.lastAmount)
	assert.Equal(t, o.ID, fp.lastMeta["order_id"])
	assert.Equal(t, "sec_1", res.ClientSecret)

	assert.Equal(t, "ch_1", fo.awaiting[o.ID])
	assert.Equal(t, []string{"cart-1"}, fc.checkedOut)
	assert.Equal(t, []string{events.TopicOrderCreated}, pub.topics)
}

func TestCheckout_StaleCartCreatesNothing(t *testing.T) {
	svc, fo, fc, fp, _ := newService()
	fc.vres = &cart.ValidationResult{
		Valid: false,
		StockIssues: []stock.Issue{{
			Kind: stock.KindIngredient, ID: "basil",
			Reason: stock.ReasonOutOfStock, Required: 2, Available: 1, Blocking: true,
		}},
	}

	res, vres, err := svc.Checkout(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrStaleCart)
	assert.Nil(t, res)
	// detail masalah diteruskan ke caller
	require.NotNil(t, vres)
	assert.False(t, vres.Valid)
	assert.NotEmpty(t, vres.StockIssues)

	assert.Empty(t, fo.created)
	assert.Equal(t, 0, fp.createCalls)
	assert.Empty(t, fc.checkedOut)
}

func TestCheckout_ChargeFailureCancelsOrderKeepsCartOpen(t *testing.T) {
	svc, fo, fc, fp, pub := newService()
	fp.createErr = errors.New("gateway 502")

	res, _, err := svc.Checkout(context.Background(), "user-1")
	require.Error(t, err)
	assert.Nil(t, res)

	require.Len(t, fo.created, 1)
	oid := fo.created[0].ID
	assert.Equal(t, order.PaymentFailed, fo.cancelled[oid])
	assert.Empty(t, fc.checkedOut) // cart tetap open, user bisa coba lagi
	assert.Empty(t, pub.topics)
}

func TestCheckout_DoubleSubmitLeavesOneLiveOrder(t *testing.T) {
	svc, fo, fc, fp, _ := newService()

	first, _, err := svc.Checkout(context.Background(), "user-1")
	require.NoError(t, err)

	// submit kedua masih melihat cart open (view basi): order + charge
	// kedua memang sempat dibuat, tapi kalah di MarkCheckedOut dan
	// langsung dibatalkan — tidak ada dua order hidup utk satu cart
	_, _, err = svc.Checkout(context.Background(), "user-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, cart.ErrCartNotFound)

	require.Len(t, fo.created, 2)
	loser := fo.created[1].ID
	assert.NotEqual(t, first.OrderID, loser)
	assert.Equal(t, order.PaymentFailed, fo.cancelled[loser])
	assert.NotContains(t, fo.cancelled, first.OrderID)
	assert.Equal(t, []string{"cart-1"}, fc.checkedOut)
	assert.Equal(t, 2, fp.createCalls)
}

func TestCheckout_NoCart(t *testing.T) {
	svc, fo, fc, _, _ := newService()
	fc.cart = nil

	_, _, err := svc.Checkout(context.Background(), "user-1")
	assert.ErrorIs(t, err, cart.ErrCartNotFound)
	assert.Empty(t, fo.created)
}
