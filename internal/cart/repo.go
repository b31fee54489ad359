package cart

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

// GetOpen mengembalikan cart open milik user beserta item-nya.
// Tidak ada cart open -> ErrCartNotFound ("no cart", beda dari cart kosong).
func (r *Repo) GetOpen(ctx context.Context, userID string) (*Cart, error) {
	var c Cart
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, status, total_cents, created_at, updated_at
		FROM carts WHERE user_id=$1 AND status='open'`, userID).
		Scan(&c.ID, &c.UserID, &c.Status, &c.TotalCents, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, cart_id, kind, COALESCE(plate_id::text,''), COALESCE(product_id::text,''),
		       COALESCE(ingredient_ids, '{}'), name, unit_price_cents, unit_weight_grams, qty
		FROM cart_items WHERE cart_id=$1 ORDER BY created_at`, c.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.CartID, &it.Kind, &it.PlateID, &it.ProductID,
			&it.IngredientIDs, &it.Name, &it.UnitPriceCents, &it.UnitWeightGrams, &it.Qty); err != nil {
			return nil, err
		}
		c.Items = append(c.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) Create(ctx context.Context, userID string) (*Cart, error) {
	var c Cart
	err := r.DB.QueryRow(ctx, `
		INSERT INTO carts(user_id, status, total_cents) VALUES ($1,'open',0)
		RETURNING id, user_id, status, total_cents, created_at, updated_at`, userID).
		Scan(&c.ID, &c.UserID, &c.Status, &c.TotalCents, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) InsertItem(ctx context.Context, it Item) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO cart_items(id, cart_id, kind, plate_id, product_id, ingredient_ids,
		                       name, unit_price_cents, unit_weight_grams, qty)
		VALUES ($1,$2,$3,NULLIF($4,'')::uuid,NULLIF($5,'')::uuid,$6,$7,$8,$9,$10)`,
		it.ID, it.CartID, it.Kind, it.PlateID, it.ProductID, it.IngredientIDs,
		it.Name, it.UnitPriceCents, it.UnitWeightGrams, it.Qty)
	return err
}

func (r *Repo) UpdateItemQty(ctx context.Context, itemID string, qty int) error {
	ct, err := r.DB.Exec(ctx, `UPDATE cart_items SET qty=$2 WHERE id=$1`, itemID, qty)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *Repo) DeleteItem(ctx context.Context, itemID string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE id=$1`, itemID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *Repo) SetTotal(ctx context.Context, cartID string, totalCents int) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE carts SET total_cents=$2, updated_at=now() WHERE id=$1`, cartID, totalCents)
	return err
}

// Close menutup cart (checked_out saat jadi order, cleared saat kosong /
// di-clear user). Cart tertutup tidak pernah dibuka lagi; 0 rows berarti
// cart sudah ditutup proses lain (double-submit checkout yg kalah).
func (r *Repo) Close(ctx context.Context, cartID, status string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE carts SET status=$2, updated_at=now() WHERE id=$1 AND status='open'`, cartID, status)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrCartNotFound
	}
	return nil
}
