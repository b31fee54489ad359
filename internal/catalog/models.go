package catalog

import "time"

type Ingredient struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Stock       int       `json:"stock"`
	Available   bool      `json:"available"` // flag administratif, independen dari stock
	PriceCents  int       `json:"price_cents"`
	WeightGrams int       `json:"weight_grams"` // berat per unit, dipakai hitung kuota item custom
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Plate menyimpan dua field availability: admin_disabled (intent admin,
// tidak pernah ditimpa propagasi) dan computed_available (derived dari
// stok ingredient). Yang dilihat pembeli adalah gabungannya.
type Plate struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Category          string    `json:"category"`
	PriceCents        int       `json:"price_cents"`
	WeightGrams       int       `json:"weight_grams"`
	AdminDisabled     bool      `json:"admin_disabled"`
	ComputedAvailable bool      `json:"computed_available"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (p Plate) Available() bool { return !p.AdminDisabled && p.ComputedAvailable }

// RecipeEdge: satu baris resep plate -> ingredient.
// Required=false artinya garnish: habisnya stok tidak memblokir plate.
type RecipeEdge struct {
	PlateID      string `json:"plate_id"`
	IngredientID string `json:"ingredient_id"`
	RequiredQty  int    `json:"required_qty"`
	Required     bool   `json:"required"`
}

// Product: lini produk diskrit (bukan komposit), stok otoritatif sendiri.
type Product struct {
	ID          string    `json:"id"`
	SKU         string    `json:"sku"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Stock       int       `json:"stock"`
	Available   bool      `json:"available"`
	PriceCents  int       `json:"price_cents"`
	WeightGrams int       `json:"weight_grams"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IngredientState: potret minimal utk hitung derived availability.
type IngredientState struct {
	Stock     int
	Available bool
	Found     bool
}

// ComputeAvailable menghitung availability derived sebuah plate dari
// resep + state ingredient. Plate tanpa resep dianggap available
// (vacuous). Edge non-required tidak pernah memblokir.
func ComputeAvailable(edges []RecipeEdge, states map[string]IngredientState) bool {
	for _, e := range edges {
		if !e.Required {
			continue
		}
		st := states[e.IngredientID]
		if !st.Found || !st.Available || st.Stock < e.RequiredQty {
			return false
		}
	}
	return true
}
