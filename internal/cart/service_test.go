package cart

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-kitchen-orders.git/internal/catalog"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/quota"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/stock"
)

// ---- fakes in-memory ----

type fakeStore struct {
	carts map[string]*Cart // by userID, cuma yg open
}

func newFakeStore() *fakeStore { return &fakeStore{carts: map[string]*Cart{}} }

func (f *fakeStore) GetOpen(_ context.Context, userID string) (*Cart, error) {
	c, ok := f.carts[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	cp := *c
	cp.Items = append([]Item(nil), c.Items...)
	return &cp, nil
}

func (f *fakeStore) Create(_ context.Context, userID string) (*Cart, error) {
	c := &Cart{ID: uuid.NewString(), UserID: userID, Status: StatusOpen}
	f.carts[userID] = c
	return c, nil
}

func (f *fakeStore) find(itemID string) (*Cart, int) {
	for _, c := range f.carts {
		for i := range c.Items {
			if c.Items[i].ID == itemID {
				return c, i
			}
		}
	}
	return nil, -1
}

func (f *fakeStore) InsertItem(_ context.Context, it Item) error {
	for _, c := range f.carts {
		if c.ID == it.CartID {
			c.Items = append(c.Items, it)
			return nil
		}
	}
	return ErrCartNotFound
}

func (f *fakeStore) UpdateItemQty(_ context.Context, itemID string, qty int) error {
	c, i := f.find(itemID)
	if c == nil {
		return ErrItemNotFound
	}
	c.Items[i].Qty = qty
	return nil
}

func (f *fakeStore) DeleteItem(_ context.Context, itemID string) error {
	c, i := f.find(itemID)
	if c == nil {
		return ErrItemNotFound
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return nil
}

func (f *fakeStore) SetTotal(_ context.Context, cartID string, totalCents int) error {
	for _, c := range f.carts {
		if c.ID == cartID {
			c.TotalCents = totalCents
			return nil
		}
	}
	return ErrCartNotFound
}

func (f *fakeStore) Close(_ context.Context, cartID, status string) error {
	for uid, c := range f.carts {
		if c.ID == cartID {
			c.Status = status
			delete(f.carts, uid)
			return nil
		}
	}
	return nil
}

type fakeCatalog struct {
	plates      map[string]catalog.Plate
	products    map[string]catalog.Product
	ingredients map[string]catalog.Ingredient
	edges       map[string][]catalog.RecipeEdge
}

func (f *fakeCatalog) GetPlate(_ context.Context, id string) (catalog.Plate, error) {
	p, ok := f.plates[id]
	if !ok {
		return catalog.Plate{}, catalog.ErrNotFound
	}
	return p, nil
}
func (f *fakeCatalog) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}
func (f *fakeCatalog) GetIngredients(_ context.Context, ids []string) ([]catalog.Ingredient, error) {
	var out []catalog.Ingredient
	for _, id := range ids {
		if ing, ok := f.ingredients[id]; ok {
			out = append(out, ing)
		}
	}
	return out, nil
}
func (f *fakeCatalog) PlateEdges(_ context.Context, plateID string) ([]catalog.RecipeEdge, error) {
	return f.edges[plateID], nil
}

// fakeStock meniru semantik ledger di atas map in-memory.
type fakeStock struct {
	stock       map[string]int // key "kind:id"
	unavailable map[string]bool
}

func (f *fakeStock) Check(_ context.Context, lines []stock.Line) ([]stock.Issue, error) {
	var issues []stock.Issue
	for _, ln := range stock.Aggregate(lines) {
		key := string(ln.Kind) + ":" + ln.ID
		st, ok := f.stock[key]
		switch {
		case !ok:
			issues = append(issues, stock.Issue{Kind: ln.Kind, ID: ln.ID, Reason: stock.ReasonNotFound, Required: ln.Qty, Blocking: !ln.Garnish})
		case f.unavailable[key]:
			issues = append(issues, stock.Issue{Kind: ln.Kind, ID: ln.ID, Reason: stock.ReasonUnavailable, Required: ln.Qty, Available: st, Blocking: !ln.Garnish})
		case st < ln.Qty:
			issues = append(issues, stock.Issue{Kind: ln.Kind, ID: ln.ID, Reason: stock.ReasonOutOfStock, Required: ln.Qty, Available: st, Blocking: !ln.Garnish})
		}
	}
	return issues, nil
}

type fakeQuota struct{ sub quota.Subscription }

func (f *fakeQuota) Get(context.Context, string) (quota.Subscription, error) { return f.sub, nil }

// ---- fixture ----

const user = "user-1"

func newService() (*Service, *fakeStore, *fakeStock, *fakeQuota) {
	cat := &fakeCatalog{
		plates: map[string]catalog.Plate{
			"pesto": {ID: "pesto", Name: "Pesto Bowl", Category: "bowls", PriceCents: 1200, WeightGrams: 400, ComputedAvailable: true},
			"gone":  {ID: "gone", Name: "Retired", Category: "bowls", AdminDisabled: true, ComputedAvailable: true},
			"cake":  {ID: "cake", Name: "Cake", Category: "desserts", PriceCents: 900, WeightGrams: 300, ComputedAvailable: true},
		},
		products: map[string]catalog.Product{
			"juice": {ID: "juice", SKU: "JUICE-1", Name: "Juice", Category: "bowls", Available: true, PriceCents: 500, WeightGrams: 600},
		},
		ingredients: map[string]catalog.Ingredient{
			"basil": {ID: "basil", Name: "Basil", Available: true, PriceCents: 200, WeightGrams: 20},
			"pasta": {ID: "pasta", Name: "Pasta", Available: true, PriceCents: 300, WeightGrams: 120},
		},
		edges: map[string][]catalog.RecipeEdge{
			"pesto": {
				{PlateID: "pesto", IngredientID: "basil", RequiredQty: 1, Required: true},
				{PlateID: "pesto", IngredientID: "pasta", RequiredQty: 2, Required: true},
			},
		},
	}
	st := &fakeStock{
		stock: map[string]int{
			"ingredient:basil": 10,
			"ingredient:pasta": 20,
			"product:juice":    5,
		},
		unavailable: map[string]bool{},
	}
	q := &fakeQuota{sub: quota.Subscription{UserID: user, Plan: "basic", LimitGrams: 5_000, UsedGrams: 0}}
	store := newFakeStore()
	return &Service{Carts: store, Catalog: cat, Stock: st, Quota: q}, store, st, q
}

// ---- tests ----

func TestAddItem_MergeIsCommutativeWithSingleAdd(t *testing.T) {
	ctx := context.Background()

	svc, _, _, _ := newService()
	c, err := svc.AddItem(ctx, user, AddRequest{Kind: KindPlate, PlateID: "pesto", Qty: 2})
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, user, AddRequest{Kind: KindPlate, PlateID: "pesto", Qty: 3})
	require.NoError(t, err)

	svc2, _, _, _ := newService()
	c2, err := svc2.AddItem(ctx, user, AddRequest{Kind: KindPlate, PlateID: "pesto", Qty: 5})
	require.NoError(t, err)

	// satu line qty 5, bukan dua line
	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Qty)
	assert.Equal(t, c2.Items[0].Qty, c.Items[0].Qty)
	assert.Equal(t, c2.TotalCents, c.TotalCents)
	assert.Equal(t, 5*1200, c.TotalCents)
}

func TestAddItem_MergeValidatesNewTotalNotDelta(t *testing.T) {
	ctx := context.Background()
	svc, _, st, _ := newService()
	st.stock["ingredient:basil"] = 4

	_, err := svc.AddItem(ctx, user, AddRequest{Kind: KindPlate, PlateID: "pesto", Qty: 3})
	require.NoError(t, err)

	// delta 2 sendiri lolos (2 <= 4), tapi total 5 > 4 harus ditolak
	_, err = svc.AddItem(ctx, user, AddRequest{Kind: KindPlate, PlateID: "pesto", Qty: 2})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, stock.ReasonOutOfStock, verr.Issues[0].Reason)

	// cart tidak termutasi
	c, err := svc.Carts.GetOpen(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Items[0].Qty)
}

func TestAddItem_QuotaExceededLeavesUsageUntouched(t *testing.T) {
	ctx := context.Background()
	svc, store, _, q := newService()
	q.sub.UsedGrams = 4_500 // sisa 0.5kg

	// juice 600g -> tolak; cart open tetap ada tapi tanpa item
	_, err := svc.AddItem(ctx, user, AddRequest{Kind: KindProduct, ProductID: "juice", Qty: 1})
	assert.ErrorIs(t, err, quota.ErrQuotaExceeded)
	c, err := store.GetOpen(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestAddItem_CategoryGateBeforeWeight(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newService()

	// plan basic tidak boleh desserts, meski berat masih cukup
	_, err := svc.AddItem(ctx, user, AddRequest{Kind: KindPlate, PlateID: "cake", Qty: 1})
	assert.ErrorIs(t, err, quota.ErrCategoryNotAllowed)
}

func TestAddItem_AdminDisabledPlateRejected(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newService()

	_, err := svc.AddItem(ctx, user, AddRequest{Kind: KindPlate, PlateID: "gone", Qty: 1})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAddItem_CustomItemLocksPriceAndWeight(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newService()

	c, err := svc.AddItem(ctx, user, AddRequest{
		Kind: KindCustom, IngredientIDs: []string{"pasta", "basil", "basil"}, Qty: 2,
	})
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	it := c.Items[0]
	assert.Equal(t, []string{"basil", "pasta"}, it.IngredientIDs) // sorted+dedup
	assert.Equal(t, 500, it.UnitPriceCents)                       // 200+300
	assert.Equal(t, 140, it.UnitWeightGrams)
	assert.Equal(t, 1000, c.TotalCents)
}

func TestUpdateQuantity_ZeroMeansRemoval(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newService()

	c, err := svc.AddItem(ctx, user, AddRequest{Kind: KindPlate, PlateID: "pesto", Qty: 2})
	require.NoError(t, err)

	got, err := svc.UpdateQuantity(ctx, user, c.Items[0].ID, 0)
	require.NoError(t, err)
	assert.Nil(t, got) // cart kosong = teardown

	_, err = svc.Carts.GetOpen(ctx, user)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestUpdateQuantity_IncreaseRevalidates(t *testing.T) {
	ctx := context.Background()
	svc, _, st, _ := newService()
	st.stock["ingredient:pasta"] = 6 // cukup utk qty 3 (butuh 2/porsi)

	c, err := svc.AddItem(ctx, user, AddRequest{Kind: KindPlate, PlateID: "pesto", Qty: 3})
	require.NoError(t, err)

	_, err = svc.UpdateQuantity(ctx, user, c.Items[0].ID, 4)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	// turun selalu boleh, tanpa cek stok
	st.stock["ingredient:pasta"] = 0
	got, err := svc.UpdateQuantity(ctx, user, c.Items[0].ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Items[0].Qty)
	assert.Equal(t, 1200, got.TotalCents) // total dihitung ulang
}

func TestRemoveItem_RecomputesTotal(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newService()

	c, err := svc.AddItem(ctx, user, AddRequest{Kind: KindPlate, PlateID: "pesto", Qty: 1})
	require.NoError(t, err)
	c, err = svc.AddItem(ctx, user, AddRequest{Kind: KindProduct, ProductID: "juice", Qty: 2})
	require.NoError(t, err)
	require.Len(t, c.Items, 2)

	var juiceItem string
	for _, it := range c.Items {
		if it.Kind == KindProduct {
			juiceItem = it.ID
		}
	}
	got, err := svc.RemoveItem(ctx, user, juiceItem)
	require.NoError(t, err)
	assert.Equal(t, 1200, got.TotalCents)
}

func TestRemoveItem_UnknownItem(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newService()

	_, err := svc.AddItem(ctx, user, AddRequest{Kind: KindPlate, PlateID: "pesto", Qty: 1})
	require.NoError(t, err)

	_, err = svc.RemoveItem(ctx, user, "nope")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestClear_AlwaysSucceeds(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newService()

	// tanpa cart pun clear tidak error
	require.NoError(t, svc.Clear(ctx, user))

	_, err := svc.AddItem(ctx, user, AddRequest{Kind: KindPlate, PlateID: "pesto", Qty: 1})
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, user))

	_, err = svc.Carts.GetOpen(ctx, user)
	assert.ErrorIs(t, err, ErrCartNotFound)
}

func TestValidate_FlagsStaleStockAndDisabledPlate(t *testing.T) {
	ctx := context.Background()
	svc, _, st, _ := newService()

	c, err := svc.AddItem(ctx, user, AddRequest{Kind: KindPlate, PlateID: "pesto", Qty: 2})
	require.NoError(t, err)
	require.NotNil(t, c)

	// stok terkuras cart lain setelah add
	st.stock["ingredient:basil"] = 1

	_, res, err := svc.Validate(ctx, user)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.NotEmpty(t, res.StockIssues)
	assert.Equal(t, stock.ReasonOutOfStock, res.StockIssues[0].Reason)
}

func TestValidate_EmptyCartIsDistinctFromNoCart(t *testing.T) {
	ctx := context.Background()
	svc, store, _, _ := newService()

	_, _, err := svc.Validate(ctx, user)
	assert.ErrorIs(t, err, ErrCartNotFound)

	// cart ada tapi kosong
	_, err = store.Create(ctx, user)
	require.NoError(t, err)
	_, _, err = svc.Validate(ctx, user)
	assert.ErrorIs(t, err, ErrCartEmpty)
}

func TestAddItem_InvalidRequests(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newService()

	_, err := svc.AddItem(ctx, user, AddRequest{Kind: KindPlate, PlateID: "pesto", Qty: 0})
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = svc.AddItem(ctx, user, AddRequest{Kind: KindCustom, Qty: 1})
	assert.ErrorIs(t, err, ErrInvalidItem)

	_, err = svc.AddItem(ctx, user, AddRequest{Kind: KindPlate, PlateID: "ghost", Qty: 1})
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
}
