package order

import (
	"time"

	"github.com/ariefcatur/go-kitchen-orders.git/internal/cart"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/stock"
)

// SnapshotItem: potret beku satu line saat checkout. Lines sudah
// di-expand dari resep di sini supaya finalisasi tidak perlu baca
// katalog lagi (katalog bisa berubah, snapshot tidak).
type SnapshotItem struct {
	Kind            cart.ItemKind `json:"kind"`
	PlateID         string        `json:"plate_id,omitempty"`
	ProductID       string        `json:"product_id,omitempty"`
	IngredientIDs   []string      `json:"ingredient_ids,omitempty"`
	Name            string        `json:"name"`
	UnitPriceCents  int           `json:"unit_price_cents"`
	UnitWeightGrams int           `json:"unit_weight_grams"`
	Qty             int           `json:"qty"`
	Lines           []stock.Line  `json:"lines"`
	// Garnish yg ketahuan habis saat finalisasi; item tetap dikirim,
	// fulfillment yg memutuskan (tidak pernah di-drop diam-diam).
	MissingGarnish []string `json:"missing_garnish,omitempty"`
}

type Order struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	CartID        string         `json:"cart_id"`
	Status        Status         `json:"status"`
	PaymentStatus PaymentStatus  `json:"payment_status"`
	ChargeID      string         `json:"charge_id,omitempty"`
	Items         []SnapshotItem `json:"items"`
	TotalCents    int            `json:"total_cents"`
	TotalGrams    int            `json:"total_grams"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// StockLines: seluruh kebutuhan stok order dari snapshot beku.
func (o *Order) StockLines() []stock.Line {
	var out []stock.Line
	for _, it := range o.Items {
		out = append(out, it.Lines...)
	}
	return out
}

// TouchedIngredients: id ingredient yg tersentuh order (utk event
// stock.changed -> propagasi availability plate).
func (o *Order) TouchedIngredients() []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range o.StockLines() {
		if l.Kind == stock.KindIngredient && !seen[l.ID] {
			seen[l.ID] = true
			out = append(out, l.ID)
		}
	}
	return out
}

func (o *Order) TouchedProducts() []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range o.StockLines() {
		if l.Kind == stock.KindProduct && !seen[l.ID] {
			seen[l.ID] = true
			out = append(out, l.ID)
		}
	}
	return out
}

// SnapshotFromCart membekukan isi cart + hasil expand resep jadi item
// order yang immutable.
func SnapshotFromCart(items []cart.Item, linesFor func(cart.Item) []stock.Line) []SnapshotItem {
	out := make([]SnapshotItem, 0, len(items))
	for _, it := range items {
		out = append(out, SnapshotItem{
			Kind:            it.Kind,
			PlateID:         it.PlateID,
			ProductID:       it.ProductID,
			IngredientIDs:   it.IngredientIDs,
			Name:            it.Name,
			UnitPriceCents:  it.UnitPriceCents,
			UnitWeightGrams: it.UnitWeightGrams,
			Qty:             it.Qty,
			Lines:           linesFor(it),
		})
	}
	return out
}
