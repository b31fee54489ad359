package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-kitchen-orders.git/internal/catalog"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/quota"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/stock"
)

// Dependensi service dipegang lewat interface kecil supaya bisa di-fake
// di test; implementasi produksi: cart.Repo, catalog.Repo, stock.Ledger,
// quota.Tracker.
type Store interface {
	GetOpen(ctx context.Context, userID string) (*Cart, error)
	Create(ctx context.Context, userID string) (*Cart, error)
	InsertItem(ctx context.Context, it Item) error
	UpdateItemQty(ctx context.Context, itemID string, qty int) error
	DeleteItem(ctx context.Context, itemID string) error
	SetTotal(ctx context.Context, cartID string, totalCents int) error
	Close(ctx context.Context, cartID, status string) error
}

type Catalog interface {
	GetPlate(ctx context.Context, id string) (catalog.Plate, error)
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
	GetIngredients(ctx context.Context, ids []string) ([]catalog.Ingredient, error)
	PlateEdges(ctx context.Context, plateID string) ([]catalog.RecipeEdge, error)
}

type StockChecker interface {
	Check(ctx context.Context, lines []stock.Line) ([]stock.Issue, error)
}

type QuotaSource interface {
	Get(ctx context.Context, userID string) (quota.Subscription, error)
}

type Service struct {
	Carts   Store
	Catalog Catalog
	Stock   StockChecker
	Quota   QuotaSource
}

type AddRequest struct {
	Kind          ItemKind `json:"kind"`
	PlateID       string   `json:"plate_id,omitempty"`
	ProductID     string   `json:"product_id,omitempty"`
	IngredientIDs []string `json:"ingredient_ids,omitempty"`
	Qty           int      `json:"qty"`
}

// ValidationError membawa detail per line yg gagal cek stok.
type ValidationError struct {
	Issues []stock.Issue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cart: %d stock issue(s)", len(e.Issues))
}

var ErrUnavailable = errors.New("cart: item unavailable")

// AddItem memvalidasi kandidat (stok + kuota + kategori) SEBELUM mutasi.
// Line identik di-merge: qty dijumlah dan total barunya divalidasi ulang,
// bukan cuma delta-nya.
func (s *Service) AddItem(ctx context.Context, userID string, req AddRequest) (*Cart, error) {
	if req.Qty <= 0 {
		return nil, ErrInvalidItem
	}
	cand, category, err := s.buildCandidate(ctx, req)
	if err != nil {
		return nil, err
	}

	sub, err := s.Quota.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	// gate kategori dievaluasi sebelum cek berat
	if !quota.CategoryAllowed(quota.PlanFor(sub.Plan), category) {
		return nil, quota.ErrCategoryNotAllowed
	}

	c, err := s.Carts.GetOpen(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		c, err = s.Carts.Create(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	// merge-on-identical-item
	merged := false
	prospective := make([]Item, len(c.Items))
	copy(prospective, c.Items)
	for i := range prospective {
		if prospective[i].SameLine(cand) {
			prospective[i].Qty += cand.Qty
			cand = prospective[i]
			merged = true
			break
		}
	}
	if !merged {
		cand.ID = uuid.NewString()
		cand.CartID = c.ID
		prospective = append(prospective, cand)
	}

	if err := s.validateProspective(ctx, sub, prospective); err != nil {
		return nil, err
	}

	if merged {
		if err := s.Carts.UpdateItemQty(ctx, cand.ID, cand.Qty); err != nil {
			return nil, err
		}
	} else {
		if err := s.Carts.InsertItem(ctx, cand); err != nil {
			return nil, err
		}
	}
	return s.finishMutation(ctx, c, prospective)
}

// UpdateQuantity: qty 0 = remove; naik = validasi ulang total baru;
// turun selalu boleh.
func (s *Service) UpdateQuantity(ctx context.Context, userID, itemID string, newQty int) (*Cart, error) {
	if newQty < 0 {
		return nil, ErrInvalidItem
	}
	c, err := s.Carts.GetOpen(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrItemNotFound
	}

	if newQty == 0 {
		return s.RemoveItem(ctx, userID, itemID)
	}

	prospective := make([]Item, len(c.Items))
	copy(prospective, c.Items)
	oldQty := prospective[idx].Qty
	prospective[idx].Qty = newQty

	if newQty > oldQty {
		sub, err := s.Quota.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := s.validateProspective(ctx, sub, prospective); err != nil {
			return nil, err
		}
	}

	if err := s.Carts.UpdateItemQty(ctx, itemID, newQty); err != nil {
		return nil, err
	}
	return s.finishMutation(ctx, c, prospective)
}

// RemoveItem selalu sukses untuk item yg ada. Cart yg jadi kosong
// di-teardown: GetOpen berikutnya mengembalikan ErrCartNotFound.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) (*Cart, error) {
	c, err := s.Carts.GetOpen(ctx, userID)
	if err != nil {
		return nil, err
	}
	remaining := make([]Item, 0, len(c.Items))
	found := false
	for _, it := range c.Items {
		if it.ID == itemID {
			found = true
			continue
		}
		remaining = append(remaining, it)
	}
	if !found {
		return nil, ErrItemNotFound
	}
	if err := s.Carts.DeleteItem(ctx, itemID); err != nil {
		return nil, err
	}
	if len(remaining) == 0 {
		if err := s.Carts.Close(ctx, c.ID, StatusCleared); err != nil {
			return nil, err
		}
		return nil, nil // "no cart"
	}
	return s.finishMutation(ctx, c, remaining)
}

// MarkCheckedOut dipanggil saat cart sukses dikonversi jadi order.
func (s *Service) MarkCheckedOut(ctx context.Context, cartID string) error {
	return s.Carts.Close(ctx, cartID, StatusCheckedOut)
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	c, err := s.Carts.GetOpen(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return nil // clear selalu sukses
	}
	if err != nil {
		return err
	}
	return s.Carts.Close(ctx, c.ID, StatusCleared)
}

// ValidationResult: hasil re-validasi seluruh cart (freshness sebelum
// view/checkout). Valid=false kalau ada blocker.
type ValidationResult struct {
	Valid             bool          `json:"valid"`
	StockIssues       []stock.Issue `json:"stock_issues,omitempty"`
	DisabledPlates    []string      `json:"disabled_plates,omitempty"`
	BlockedCategories []string      `json:"blocked_categories,omitempty"`
	QuotaExceeded     bool          `json:"quota_exceeded"`
	RemainingGrams    int           `json:"remaining_grams"`
}

// Validate menjalankan ulang dua sumbu admission (stok + kuota) terhadap
// SELURUH isi cart — waktu sudah lewat sejak add, cart lain bisa saja
// menguras stok.
func (s *Service) Validate(ctx context.Context, userID string) (*Cart, *ValidationResult, error) {
	c, err := s.Carts.GetOpen(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if len(c.Items) == 0 {
		return c, nil, ErrCartEmpty
	}
	sub, err := s.Quota.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	res := &ValidationResult{Valid: true, RemainingGrams: sub.RemainingGrams()}

	plan := quota.PlanFor(sub.Plan)
	for _, it := range c.Items {
		switch it.Kind {
		case KindPlate:
			p, err := s.Catalog.GetPlate(ctx, it.PlateID)
			if err != nil {
				return nil, nil, err
			}
			if p.AdminDisabled {
				res.DisabledPlates = append(res.DisabledPlates, it.PlateID)
				res.Valid = false
			}
			if !quota.CategoryAllowed(plan, p.Category) {
				res.BlockedCategories = append(res.BlockedCategories, p.Category)
				res.Valid = false
			}
		case KindProduct:
			p, err := s.Catalog.GetProduct(ctx, it.ProductID)
			if err != nil {
				return nil, nil, err
			}
			if !quota.CategoryAllowed(plan, p.Category) {
				res.BlockedCategories = append(res.BlockedCategories, p.Category)
				res.Valid = false
			}
		}
	}

	lines, err := s.LinesFor(ctx, c.Items)
	if err != nil {
		return nil, nil, err
	}
	issues, err := s.Stock.Check(ctx, lines)
	if err != nil {
		return nil, nil, err
	}
	res.StockIssues = issues
	if stock.Blocking(issues) {
		res.Valid = false
	}

	if !sub.CanAdd(TotalGrams(c.Items)) {
		res.QuotaExceeded = true
		res.Valid = false
	}
	return c, res, nil
}

// LinesFor meng-expand seluruh item jadi kebutuhan stok (resep plate
// di-load sekali per plate).
func (s *Service) LinesFor(ctx context.Context, items []Item) ([]stock.Line, error) {
	edgeCache := map[string][]catalog.RecipeEdge{}
	var lines []stock.Line
	for _, it := range items {
		var edges []catalog.RecipeEdge
		if it.Kind == KindPlate {
			cached, ok := edgeCache[it.PlateID]
			if !ok {
				var err error
				cached, err = s.Catalog.PlateEdges(ctx, it.PlateID)
				if err != nil {
					return nil, err
				}
				edgeCache[it.PlateID] = cached
			}
			edges = cached
		}
		lines = append(lines, LinesForItem(it, edges)...)
	}
	return lines, nil
}

func (s *Service) validateProspective(ctx context.Context, sub quota.Subscription, items []Item) error {
	lines, err := s.LinesFor(ctx, items)
	if err != nil {
		return err
	}
	issues, err := s.Stock.Check(ctx, lines)
	if err != nil {
		return err
	}
	if stock.Blocking(issues) {
		return &ValidationError{Issues: issues}
	}
	if !sub.CanAdd(TotalGrams(items)) {
		return quota.ErrQuotaExceeded
	}
	return nil
}

func (s *Service) finishMutation(ctx context.Context, c *Cart, items []Item) (*Cart, error) {
	total := TotalCents(items)
	if err := s.Carts.SetTotal(ctx, c.ID, total); err != nil {
		return nil, err
	}
	c.Items = items
	c.TotalCents = total
	return c, nil
}

// buildCandidate me-resolve kandidat item dari katalog: nama + harga +
// berat di-lock sekarang, plus cek flag availability.
func (s *Service) buildCandidate(ctx context.Context, req AddRequest) (Item, string, error) {
	switch req.Kind {
	case KindPlate:
		p, err := s.Catalog.GetPlate(ctx, req.PlateID)
		if err != nil {
			return Item{}, "", err
		}
		if !p.Available() {
			return Item{}, "", fmt.Errorf("%w: plate %s", ErrUnavailable, p.Name)
		}
		return Item{
			Kind: KindPlate, PlateID: p.ID, Name: p.Name,
			UnitPriceCents: p.PriceCents, UnitWeightGrams: p.WeightGrams, Qty: req.Qty,
		}, p.Category, nil

	case KindProduct:
		p, err := s.Catalog.GetProduct(ctx, req.ProductID)
		if err != nil {
			return Item{}, "", err
		}
		if !p.Available {
			return Item{}, "", fmt.Errorf("%w: product %s", ErrUnavailable, p.Name)
		}
		return Item{
			Kind: KindProduct, ProductID: p.ID, Name: p.Name,
			UnitPriceCents: p.PriceCents, UnitWeightGrams: p.WeightGrams, Qty: req.Qty,
		}, p.Category, nil

	case KindCustom:
		ids := NormalizeIngredientIDs(req.IngredientIDs)
		if len(ids) == 0 {
			return Item{}, "", ErrInvalidItem
		}
		ings, err := s.Catalog.GetIngredients(ctx, ids)
		if err != nil {
			return Item{}, "", err
		}
		if len(ings) != len(ids) {
			return Item{}, "", catalog.ErrNotFound
		}
		price, grams := 0, 0
		for _, ing := range ings {
			if !ing.Available {
				return Item{}, "", fmt.Errorf("%w: ingredient %s", ErrUnavailable, ing.Name)
			}
			price += ing.PriceCents
			grams += ing.WeightGrams
		}
		return Item{
			Kind: KindCustom, IngredientIDs: ids,
			Name:           fmt.Sprintf("Custom plate (%d ingredients)", len(ids)),
			UnitPriceCents: price, UnitWeightGrams: grams, Qty: req.Qty,
		}, "", nil
	}
	return Item{}, "", ErrInvalidItem
}
