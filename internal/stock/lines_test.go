package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate_SumsByKindAndID(t *testing.T) {
	lines := []Line{
		{Kind: KindIngredient, ID: "a", Qty: 2},
		{Kind: KindIngredient, ID: "a", Qty: 3},
		{Kind: KindProduct, ID: "a", Qty: 1}, // id sama tapi kind beda
		{Kind: KindIngredient, ID: "b", Qty: 1},
	}
	got := Aggregate(lines)
	assert.Len(t, got, 3)
	assert.Equal(t, Line{Kind: KindIngredient, ID: "a", Qty: 5}, got[0])
	assert.Equal(t, Line{Kind: KindIngredient, ID: "b", Qty: 1}, got[1])
	assert.Equal(t, Line{Kind: KindProduct, ID: "a", Qty: 1}, got[2])
}

func TestAggregate_RequiredWinsOverGarnish(t *testing.T) {
	lines := []Line{
		{Kind: KindIngredient, ID: "basil", Qty: 1, Garnish: true},
		{Kind: KindIngredient, ID: "basil", Qty: 2, Garnish: false},
	}
	got := Aggregate(lines)
	assert.Len(t, got, 1)
	assert.False(t, got[0].Garnish)
	assert.Equal(t, 3, got[0].Qty)
}

func TestAggregate_AllGarnishStaysGarnish(t *testing.T) {
	lines := []Line{
		{Kind: KindIngredient, ID: "mint", Qty: 1, Garnish: true},
		{Kind: KindIngredient, ID: "mint", Qty: 1, Garnish: true},
	}
	got := Aggregate(lines)
	assert.Len(t, got, 1)
	assert.True(t, got[0].Garnish)
}

func TestAggregate_DeterministicOrder(t *testing.T) {
	a := Aggregate([]Line{
		{Kind: KindProduct, ID: "z", Qty: 1},
		{Kind: KindIngredient, ID: "b", Qty: 1},
		{Kind: KindIngredient, ID: "a", Qty: 1},
	})
	b := Aggregate([]Line{
		{Kind: KindIngredient, ID: "a", Qty: 1},
		{Kind: KindProduct, ID: "z", Qty: 1},
		{Kind: KindIngredient, ID: "b", Qty: 1},
	})
	// urutan lock deterministik apa pun urutan inputnya
	assert.Equal(t, a, b)
}

func TestBlocking(t *testing.T) {
	assert.False(t, Blocking(nil))
	assert.False(t, Blocking([]Issue{{Reason: ReasonOutOfStock, Blocking: false}}))
	assert.True(t, Blocking([]Issue{
		{Reason: ReasonOutOfStock, Blocking: false},
		{Reason: ReasonUnavailable, Blocking: true},
	}))
}
