package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-kitchen-orders.git/internal/postgres"
)

var (
	ErrInsufficientStock = errors.New("stock: insufficient")
	ErrUnavailable       = errors.New("stock: unavailable")
	ErrNotFound          = errors.New("stock: not found")
)

func tableFor(k Kind) (string, error) {
	switch k {
	case KindIngredient:
		return "ingredients", nil
	case KindProduct:
		return "products", nil
	default:
		return "", fmt.Errorf("stock: unknown kind %q", k)
	}
}

// Ledger: otoritas stok. Semua mutasi lewat conditional update / FOR UPDATE
// supaya dua checkout concurrent tidak bisa sama-sama overdraw.
type Ledger struct{ DB *pgxpool.Pool }

// Check memvalidasi batch line tanpa mutasi (dipakai saat add-to-cart dan
// pre-checkout). Line di-aggregate dulu: delta saja bisa lolos padahal
// total kumulatifnya tidak.
func (l *Ledger) Check(ctx context.Context, lines []Line) ([]Issue, error) {
	return CheckAll(ctx, l.DB, lines)
}

func CheckAll(ctx context.Context, q postgres.Querier, lines []Line) ([]Issue, error) {
	var issues []Issue
	for _, ln := range Aggregate(lines) {
		table, err := tableFor(ln.Kind)
		if err != nil {
			return nil, err
		}
		var (
			stock     int
			available bool
		)
		err = q.QueryRow(ctx, `SELECT stock, available FROM `+table+` WHERE id=$1`, ln.ID).
			Scan(&stock, &available)
		if errors.Is(err, pgx.ErrNoRows) {
			issues = append(issues, Issue{Kind: ln.Kind, ID: ln.ID, Reason: ReasonNotFound, Required: ln.Qty, Blocking: !ln.Garnish})
			continue
		}
		if err != nil {
			return nil, err
		}
		switch {
		case !available:
			issues = append(issues, Issue{Kind: ln.Kind, ID: ln.ID, Reason: ReasonUnavailable, Required: ln.Qty, Available: stock, Blocking: !ln.Garnish})
		case stock < ln.Qty:
			issues = append(issues, Issue{Kind: ln.Kind, ID: ln.ID, Reason: ReasonOutOfStock, Required: ln.Qty, Available: stock, Blocking: !ln.Garnish})
		}
	}
	return issues, nil
}

// AlreadyDecremented: idempotency short-circuit — apakah order ini sudah
// pernah men-decrement stok.
func AlreadyDecremented(ctx context.Context, q postgres.Querier, orderID string) (bool, error) {
	var n int
	err := q.QueryRow(ctx, `
		SELECT COUNT(*) FROM stock_movements
		WHERE order_id=$1 AND status='DECREMENTED'`, orderID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DecrementAll: lock stok per baris (FOR UPDATE) -> cek -> kurangi ->
// catat movement (idempotent via ON CONFLICT). Kekurangan pada satu line
// required = seluruh batch gagal; caller wajib rollback transaksinya.
// Line garnish yg kurang cuma di-skip + dilaporkan non-blocking.
func DecrementAll(ctx context.Context, q postgres.Querier, orderID string, lines []Line) (ok bool, issues []Issue, err error) {
	for _, ln := range Aggregate(lines) {
		table, terr := tableFor(ln.Kind)
		if terr != nil {
			return false, nil, terr
		}

		var (
			stock     int
			available bool
		)
		err := q.QueryRow(ctx, `SELECT stock, available FROM `+table+` WHERE id=$1 FOR UPDATE`, ln.ID).
			Scan(&stock, &available)
		if errors.Is(err, pgx.ErrNoRows) {
			issues = append(issues, Issue{Kind: ln.Kind, ID: ln.ID, Reason: ReasonNotFound, Required: ln.Qty, Blocking: !ln.Garnish})
			continue
		}
		if err != nil {
			return false, nil, err
		}
		if !available {
			issues = append(issues, Issue{Kind: ln.Kind, ID: ln.ID, Reason: ReasonUnavailable, Required: ln.Qty, Available: stock, Blocking: !ln.Garnish})
			continue
		}
		if stock < ln.Qty {
			issues = append(issues, Issue{Kind: ln.Kind, ID: ln.ID, Reason: ReasonOutOfStock, Required: ln.Qty, Available: stock, Blocking: !ln.Garnish})
			continue
		}

		ct, err := q.Exec(ctx, `UPDATE `+table+` SET stock = stock - $2, updated_at=now() WHERE id=$1 AND stock >= $2`, ln.ID, ln.Qty)
		if err != nil {
			return false, nil, err
		}
		if ct.RowsAffected() != 1 {
			issues = append(issues, Issue{Kind: ln.Kind, ID: ln.ID, Reason: ReasonOutOfStock, Required: ln.Qty, Available: stock, Blocking: !ln.Garnish})
			continue
		}

		if _, err := q.Exec(ctx, `
			INSERT INTO stock_movements(order_id, line_kind, line_id, qty, status)
			VALUES ($1,$2,$3,$4,'DECREMENTED')
			ON CONFLICT (order_id, line_kind, line_id) DO NOTHING
		`, orderID, ln.Kind, ln.ID, ln.Qty); err != nil {
			return false, nil, err
		}
	}

	if Blocking(issues) {
		return false, issues, nil // caller rollback
	}
	return true, issues, nil
}

// ReleaseAll: kompensasi — kembalikan semua decrement milik order lalu
// tandai RELEASED. Return line yg dikembalikan (utk event stock.changed).
func ReleaseAll(ctx context.Context, q postgres.Querier, orderID string) ([]Line, error) {
	rows, err := q.Query(ctx, `
		SELECT line_kind, line_id, qty FROM stock_movements
		WHERE order_id=$1 AND status='DECREMENTED'`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.Kind, &l.ID, &l.Qty); err != nil {
			return nil, err
		}
		recs = append(recs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, l := range recs {
		table, err := tableFor(l.Kind)
		if err != nil {
			return nil, err
		}
		if _, err := q.Exec(ctx, `UPDATE `+table+` SET stock = stock + $2, updated_at=now() WHERE id=$1`, l.ID, l.Qty); err != nil {
			return nil, err
		}
	}
	if _, err := q.Exec(ctx, `
		UPDATE stock_movements SET status='RELEASED'
		WHERE order_id=$1 AND status='DECREMENTED'`, orderID); err != nil {
		return nil, err
	}
	return recs, nil
}
