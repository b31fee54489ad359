package cart

import (
	"errors"
	"sort"
	"time"

	"github.com/ariefcatur/go-kitchen-orders.git/internal/catalog"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/stock"
)

var (
	ErrCartNotFound = errors.New("cart: not found")
	ErrItemNotFound = errors.New("cart: item not found")
	ErrCartEmpty    = errors.New("cart: empty")
	ErrInvalidItem  = errors.New("cart: invalid item")
)

type ItemKind string

const (
	KindPlate   ItemKind = "plate"
	KindCustom  ItemKind = "custom"
	KindProduct ItemKind = "product"
)

const (
	StatusOpen       = "open"
	StatusCheckedOut = "checked_out"
	StatusCleared    = "cleared"
)

// Item: tagged union (plate | custom | product) dengan discriminant Kind.
// Harga & nama di-lock saat add, tidak dihitung ulang dari katalog saat
// checkout (hindari price drift di tengah sesi).
type Item struct {
	ID              string   `json:"id"`
	CartID          string   `json:"cart_id"`
	Kind            ItemKind `json:"kind"`
	PlateID         string   `json:"plate_id,omitempty"`
	ProductID       string   `json:"product_id,omitempty"`
	IngredientIDs   []string `json:"ingredient_ids,omitempty"` // custom saja, disimpan terurut
	Name            string   `json:"name"`
	UnitPriceCents  int      `json:"unit_price_cents"`
	UnitWeightGrams int      `json:"unit_weight_grams"`
	Qty             int      `json:"qty"`
}

// SameLine: kunci merge. Plate id + set ingredient identik (atau product
// id sama) = satu line, qty dijumlah.
func (it Item) SameLine(o Item) bool {
	if it.Kind != o.Kind {
		return false
	}
	switch it.Kind {
	case KindPlate:
		return it.PlateID == o.PlateID
	case KindProduct:
		return it.ProductID == o.ProductID
	case KindCustom:
		return sameIDSet(it.IngredientIDs, o.IngredientIDs)
	}
	return false
}

func (it Item) LineTotalCents() int { return it.UnitPriceCents * it.Qty }

type Cart struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	Items      []Item    `json:"items"`
	TotalCents int       `json:"total_cents"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Total selalu dihitung ulang dari line item, tidak pernah di-trust
// incremental antar mutasi.
func TotalCents(items []Item) int {
	total := 0
	for _, it := range items {
		total += it.LineTotalCents()
	}
	return total
}

func TotalGrams(items []Item) int {
	total := 0
	for _, it := range items {
		total += it.UnitWeightGrams * it.Qty
	}
	return total
}

// NormalizeIngredientIDs: sort + dedup, supaya kunci merge item custom
// tidak tergantung urutan input.
func NormalizeIngredientIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := map[string]bool{}
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sameIDSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// LinesForItem meng-expand satu item jadi kebutuhan stok.
// Plate pakai resep (edges), custom 1 unit per ingredient per qty,
// product langsung ke stok produknya.
func LinesForItem(it Item, edges []catalog.RecipeEdge) []stock.Line {
	switch it.Kind {
	case KindPlate:
		out := make([]stock.Line, 0, len(edges))
		for _, e := range edges {
			out = append(out, stock.Line{
				Kind:    stock.KindIngredient,
				ID:      e.IngredientID,
				Qty:     e.RequiredQty * it.Qty,
				Garnish: !e.Required,
			})
		}
		return out
	case KindCustom:
		out := make([]stock.Line, 0, len(it.IngredientIDs))
		for _, id := range it.IngredientIDs {
			out = append(out, stock.Line{Kind: stock.KindIngredient, ID: id, Qty: it.Qty})
		}
		return out
	case KindProduct:
		return []stock.Line{{Kind: stock.KindProduct, ID: it.ProductID, Qty: it.Qty}}
	}
	return nil
}
