package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeAvailable_RequiredIngredientOutOfStock(t *testing.T) {
	edges := []RecipeEdge{
		{PlateID: "pesto-bowl", IngredientID: "basil", RequiredQty: 1, Required: true},
	}
	states := map[string]IngredientState{
		"basil": {Stock: 0, Available: true, Found: true},
	}
	assert.False(t, ComputeAvailable(edges, states))

	// stok kembali positif -> plate available lagi
	states["basil"] = IngredientState{Stock: 3, Available: true, Found: true}
	assert.True(t, ComputeAvailable(edges, states))
}

func TestComputeAvailable_GarnishNeverBlocks(t *testing.T) {
	edges := []RecipeEdge{
		{PlateID: "p1", IngredientID: "pasta", RequiredQty: 2, Required: true},
		{PlateID: "p1", IngredientID: "parsley", RequiredQty: 1, Required: false},
	}
	states := map[string]IngredientState{
		"pasta":   {Stock: 10, Available: true, Found: true},
		"parsley": {Stock: 0, Available: true, Found: true},
	}
	assert.True(t, ComputeAvailable(edges, states))
}

func TestComputeAvailable_AdminDisabledIngredient(t *testing.T) {
	edges := []RecipeEdge{
		{PlateID: "p1", IngredientID: "cheese", RequiredQty: 1, Required: true},
	}
	// stok ada tapi flag available=false tetap memblokir
	states := map[string]IngredientState{
		"cheese": {Stock: 50, Available: false, Found: true},
	}
	assert.False(t, ComputeAvailable(edges, states))
}

func TestComputeAvailable_RequiredQtyThreshold(t *testing.T) {
	edges := []RecipeEdge{
		{PlateID: "p1", IngredientID: "rice", RequiredQty: 3, Required: true},
	}
	tests := []struct {
		name  string
		stock int
		want  bool
	}{
		{"below threshold", 2, false},
		{"at threshold", 3, true},
		{"above threshold", 4, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			states := map[string]IngredientState{
				"rice": {Stock: tc.stock, Available: true, Found: true},
			}
			assert.Equal(t, tc.want, ComputeAvailable(edges, states))
		})
	}
}

func TestComputeAvailable_EmptyRecipeIsVacuouslyAvailable(t *testing.T) {
	assert.True(t, ComputeAvailable(nil, nil))
}

func TestComputeAvailable_MissingIngredientBlocks(t *testing.T) {
	edges := []RecipeEdge{
		{PlateID: "p1", IngredientID: "ghost", RequiredQty: 1, Required: true},
	}
	assert.False(t, ComputeAvailable(edges, map[string]IngredientState{}))
}

func TestPlateJSON_SnakeCaseKeys(t *testing.T) {
	b, err := json.Marshal(Plate{ID: "p1", Name: "Pesto", PriceCents: 1200, AdminDisabled: true})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Contains(t, m, "id")
	assert.Contains(t, m, "price_cents")
	assert.Contains(t, m, "admin_disabled")
	assert.NotContains(t, m, "ID")
	assert.NotContains(t, m, "PriceCents")
}

func TestPlateAvailable_AdminOverrideWins(t *testing.T) {
	// computed true tapi admin disable -> tidak available, propagasi
	// tidak boleh menimpa intent admin
	p := Plate{AdminDisabled: true, ComputedAvailable: true}
	assert.False(t, p.Available())

	p = Plate{AdminDisabled: false, ComputedAvailable: true}
	assert.True(t, p.Available())

	p = Plate{AdminDisabled: false, ComputedAvailable: false}
	assert.False(t, p.Available())
}
