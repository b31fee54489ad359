package stock

import "sort"

type Kind string

const (
	KindIngredient Kind = "ingredient"
	KindProduct    Kind = "product"

	// KindPlate cuma muncul di Issue (plate di-disable admin), tidak
	// pernah jadi Line di ledger.
	KindPlate Kind = "plate"
)

// Line: satu kebutuhan stok. Garnish=true artinya non-required:
// kekurangan stok tidak memblokir dan decrement-nya di-skip.
type Line struct {
	Kind    Kind   `json:"kind"`
	ID      string `json:"id"`
	Qty     int    `json:"qty"`
	Garnish bool   `json:"garnish,omitempty"`
}

const (
	ReasonNotFound    = "NOT_FOUND"
	ReasonUnavailable = "UNAVAILABLE"
	ReasonOutOfStock  = "OUT_OF_STOCK"
)

// Issue: detail penolakan per line, utk pesan ke user.
// Blocking=false berarti informasional saja (garnish habis).
type Issue struct {
	Kind      Kind   `json:"kind"`
	ID        string `json:"id"`
	Reason    string `json:"reason"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
	Blocking  bool   `json:"blocking"`
}

func Blocking(issues []Issue) bool {
	for _, is := range issues {
		if is.Blocking {
			return true
		}
	}
	return false
}

// Aggregate menjumlahkan qty per (kind,id). Kalau satu id muncul sebagai
// required sekaligus garnish, required menang — garnish hanya bertahan
// jika semua kemunculannya garnish. Output terurut supaya urutan lock
// di transaksi deterministik (hindari deadlock antar checkout).
func Aggregate(lines []Line) []Line {
	type key struct {
		kind Kind
		id   string
	}
	acc := map[key]*Line{}
	for _, l := range lines {
		k := key{l.Kind, l.ID}
		if cur, ok := acc[k]; ok {
			cur.Qty += l.Qty
			cur.Garnish = cur.Garnish && l.Garnish
			continue
		}
		cp := l
		acc[k] = &cp
	}
	out := make([]Line, 0, len(acc))
	for _, l := range acc {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].ID < out[j].ID
	})
	return out
}
