package quota

// Policy plan -> limit berat + kategori yg boleh.
// Categories nil = semua kategori boleh.
type Plan struct {
	Name       string
	LimitGrams int
	Categories []string
}

var plans = map[string]Plan{
	"basic":   {Name: "basic", LimitGrams: 5_000, Categories: []string{"bowls", "salads"}},
	"family":  {Name: "family", LimitGrams: 12_000, Categories: []string{"bowls", "salads", "mains", "desserts"}},
	"premium": {Name: "premium", LimitGrams: 20_000, Categories: nil},
}

// PlanFor: plan tidak dikenal jatuh ke basic (paling ketat).
func PlanFor(name string) Plan {
	if p, ok := plans[name]; ok {
		return p
	}
	return plans["basic"]
}

// CategoryAllowed: gate kategori, dievaluasi sebelum cek berat.
// Item tanpa kategori (custom plate) selalu lolos gate ini.
func CategoryAllowed(p Plan, category string) bool {
	if category == "" || p.Categories == nil {
		return true
	}
	for _, c := range p.Categories {
		if c == category {
			return true
		}
	}
	return false
}
