package order

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ariefcatur/go-kitchen-orders.git/internal/cart"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/stock"
)

func TestSnapshotFromCart_FreezesPriceAndLines(t *testing.T) {
	items := []cart.Item{
		{Kind: cart.KindPlate, PlateID: "p1", Name: "Pesto Bowl", UnitPriceCents: 1200, UnitWeightGrams: 400, Qty: 2},
	}
	lines := []stock.Line{
		{Kind: stock.KindIngredient, ID: "basil", Qty: 2},
		{Kind: stock.KindIngredient, ID: "pasta", Qty: 4},
	}
	snap := SnapshotFromCart(items, func(cart.Item) []stock.Line { return lines })

	assert.Len(t, snap, 1)
	assert.Equal(t, 1200, snap[0].UnitPriceCents)
	assert.Equal(t, lines, snap[0].Lines)
}

func TestOrderStockLines_ConcatsAllItems(t *testing.T) {
	o := &Order{Items: []SnapshotItem{
		{Lines: []stock.Line{{Kind: stock.KindIngredient, ID: "a", Qty: 1}}},
		{Lines: []stock.Line{{Kind: stock.KindProduct, ID: "x", Qty: 2}}},
	}}
	assert.Len(t, o.StockLines(), 2)
}

func TestTouchedIngredientsAndProducts(t *testing.T) {
	o := &Order{Items: []SnapshotItem{
		{Lines: []stock.Line{
			{Kind: stock.KindIngredient, ID: "a", Qty: 1},
			{Kind: stock.KindIngredient, ID: "a", Qty: 2}, // dedup
			{Kind: stock.KindProduct, ID: "x", Qty: 1},
		}},
	}}
	assert.Equal(t, []string{"a"}, o.TouchedIngredients())
	assert.Equal(t, []string{"x"}, o.TouchedProducts())
}

func TestDisabledPlateIssues_BlocksOnlyDisabledPlateItems(t *testing.T) {
	items := []SnapshotItem{
		{Kind: cart.KindPlate, PlateID: "pesto", Qty: 2},
		{Kind: cart.KindPlate, PlateID: "cake", Qty: 1},
		{Kind: cart.KindProduct, ProductID: "juice", Qty: 3},
	}

	// plate di-disable admin di antara checkout dan capture: wajib jadi
	// blocking issue supaya finalisasi jalan ke path refund
	got := DisabledPlateIssues(items, map[string]bool{"pesto": true})
	assert.Equal(t, []stock.Issue{{
		Kind: stock.KindPlate, ID: "pesto",
		Reason: stock.ReasonUnavailable, Required: 2, Blocking: true,
	}}, got)

	assert.Empty(t, DisabledPlateIssues(items, nil))
	assert.Empty(t, DisabledPlateIssues(items, map[string]bool{"juice": true}))
}

func TestSnapshotPlateIDs_DedupsAndSkipsNonPlates(t *testing.T) {
	items := []SnapshotItem{
		{Kind: cart.KindPlate, PlateID: "pesto", Qty: 1},
		{Kind: cart.KindPlate, PlateID: "pesto", Qty: 2},
		{Kind: cart.KindCustom, IngredientIDs: []string{"basil"}, Qty: 1},
		{Kind: cart.KindPlate, PlateID: "cake", Qty: 1},
	}
	assert.Equal(t, []string{"pesto", "cake"}, snapshotPlateIDs(items))
}

func TestAnnotateMissingGarnish(t *testing.T) {
	items := []SnapshotItem{{
		Name: "Pesto Bowl",
		Lines: []stock.Line{
			{Kind: stock.KindIngredient, ID: "basil", Qty: 1},
			{Kind: stock.KindIngredient, ID: "mint", Qty: 1, Garnish: true},
		},
	}}
	issues := []stock.Issue{
		{Kind: stock.KindIngredient, ID: "mint", Reason: stock.ReasonOutOfStock, Blocking: false},
	}
	got := annotateMissingGarnish(items, issues)
	// item tetap ada, garnish yg hilang cuma ditandai
	assert.Len(t, got, 1)
	assert.Equal(t, []string{"mint"}, got[0].MissingGarnish)
	// input tidak dimutasi
	assert.Empty(t, items[0].MissingGarnish)
}
