package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("catalog: not found")

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) GetIngredient(ctx context.Context, id string) (Ingredient, error) {
	var ing Ingredient
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, stock, available, price_cents, weight_grams, created_at, updated_at
		FROM ingredients WHERE id=$1`, id).
		Scan(&ing.ID, &ing.Name, &ing.Stock, &ing.Available, &ing.PriceCents, &ing.WeightGrams, &ing.CreatedAt, &ing.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ingredient{}, ErrNotFound
	}
	return ing, err
}

func (r *Repo) GetIngredients(ctx context.Context, ids []string) ([]Ingredient, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, stock, available, price_cents, weight_grams, created_at, updated_at
		FROM ingredients WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ingredient
	for rows.Next() {
		var ing Ingredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.Stock, &ing.Available, &ing.PriceCents, &ing.WeightGrams, &ing.CreatedAt, &ing.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ing)
	}
	return out, rows.Err()
}

func (r *Repo) GetPlate(ctx context.Context, id string) (Plate, error) {
	var p Plate
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, category, price_cents, weight_grams, admin_disabled, computed_available, created_at, updated_at
		FROM plates WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.WeightGrams, &p.AdminDisabled, &p.ComputedAvailable, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Plate{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) ListPlates(ctx context.Context) ([]Plate, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, category, price_cents, weight_grams, admin_disabled, computed_available, created_at, updated_at
		FROM plates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Plate
	for rows.Next() {
		var p Plate
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.WeightGrams, &p.AdminDisabled, &p.ComputedAvailable, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) GetProduct(ctx context.Context, id string) (Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, sku, name, category, stock, available, price_cents, weight_grams, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Stock, &p.Available, &p.PriceCents, &p.WeightGrams, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, sku, name, category, stock, available, price_cents, weight_grams, created_at, updated_at
		FROM products ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Category, &p.Stock, &p.Available, &p.PriceCents, &p.WeightGrams, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) PlateEdges(ctx context.Context, plateID string) ([]RecipeEdge, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT plate_id, ingredient_id, required_qty, required
		FROM plate_ingredients WHERE plate_id=$1`, plateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RecipeEdge
	for rows.Next() {
		var e RecipeEdge
		if err := rows.Scan(&e.PlateID, &e.IngredientID, &e.RequiredQty, &e.Required); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PlatesUsingIngredient: plate mana saja yg resepnya menyentuh ingredient ini.
func (r *Repo) PlatesUsingIngredient(ctx context.Context, ingredientID string) ([]string, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT DISTINCT plate_id FROM plate_ingredients WHERE ingredient_id=$1`, ingredientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ---- Mutasi administratif ----

func (r *Repo) SetIngredientStock(ctx context.Context, id string, stock int) error {
	if stock < 0 {
		return errors.New("catalog: negative stock")
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE ingredients SET stock=$2, updated_at=now() WHERE id=$1`, id, stock)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

var ErrNegativeStock = errors.New("catalog: adjustment would make stock negative")

func (r *Repo) AdjustIngredientStock(ctx context.Context, id string, delta int) error {
	// conditional update: tidak boleh bikin stok negatif
	ct, err := r.DB.Exec(ctx, `
		UPDATE ingredients SET stock = stock + $2, updated_at=now()
		WHERE id=$1 AND stock + $2 >= 0`, id, delta)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		if _, err := r.GetIngredient(ctx, id); err != nil {
			return err
		}
		return ErrNegativeStock
	}
	return nil
}

func (r *Repo) SetIngredientAvailable(ctx context.Context, id string, available bool) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE ingredients SET available=$2, updated_at=now() WHERE id=$1`, id, available)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPlateAdminDisabled: soft-delete / enable plate oleh admin.
// computed_available tidak disentuh di sini.
func (r *Repo) SetPlateAdminDisabled(ctx context.Context, id string, disabled bool) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE plates SET admin_disabled=$2, updated_at=now() WHERE id=$1`, id, disabled)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) SetProductStock(ctx context.Context, id string, stock int) error {
	if stock < 0 {
		return errors.New("catalog: negative stock")
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET stock=$2, updated_at=now() WHERE id=$1`, id, stock)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
