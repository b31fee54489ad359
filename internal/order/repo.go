package order

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-kitchen-orders.git/internal/cart"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/postgres"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/quota"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/stock"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrInvalidTransition = errors.New("order: invalid status transition")
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, o *Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	_, err = r.DB.Exec(ctx, `
		INSERT INTO orders(id, user_id, cart_id, status, payment_status, charge_id, items, total_cents, total_grams)
		VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8,$9)`,
		o.ID, o.UserID, o.CartID, o.Status, o.PaymentStatus, o.ChargeID, items, o.TotalCents, o.TotalGrams)
	return err
}

func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	var (
		o     Order
		items []byte
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id, user_id, cart_id, status, payment_status, COALESCE(charge_id,''), items,
		       total_cents, total_grams, created_at, updated_at
		FROM orders WHERE id=$1`, id).
		Scan(&o.ID, &o.UserID, &o.CartID, &o.Status, &o.PaymentStatus, &o.ChargeID, &items,
			&o.TotalCents, &o.TotalGrams, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) GetByCharge(ctx context.Context, chargeID string) (*Order, error) {
	var id string
	err := r.DB.QueryRow(ctx, `SELECT id FROM orders WHERE charge_id=$1`, chargeID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// SetAwaitingPayment: simpan charge id setelah charge dibuat di provider.
func (r *Repo) SetAwaitingPayment(ctx context.Context, orderID, chargeID string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, charge_id=$3, updated_at=now()
		WHERE id=$1 AND status=$4`,
		orderID, StatusAwaitingPayment, chargeID, StatusPending)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// Confirm: transisi final sukses dalam SATU transaksi —
// decrement stok (all-or-nothing) + commit kuota + status order.
// Stok dikurangi exactly once per order: kalau movement-nya sudah ada
// (retry webhook), decrement di-skip tapi transisi status tetap dijaga.
// ok=false (dengan issues) artinya re-validasi gagal: tidak ada satu pun
// write yg tertinggal, caller wajib jalan ke path refund.
func (r *Repo) Confirm(ctx context.Context, o *Order) (ok bool, issues []stock.Issue, err error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	done, err := stock.AlreadyDecremented(ctx, tx, o.ID)
	if err != nil {
		return false, nil, err
	}
	if !done {
		// re-check flag admin plate: disable setelah checkout tetap
		// otoritatif, order-nya jalan ke path refund
		disabled, err := disabledPlates(ctx, tx, o.Items)
		if err != nil {
			return false, nil, err
		}
		if dis := DisabledPlateIssues(o.Items, disabled); len(dis) > 0 {
			return false, dis, nil
		}

		ok, issues, err = stock.DecrementAll(ctx, tx, o.ID, o.StockLines())
		if err != nil {
			return false, nil, err
		}
		if !ok {
			return false, issues, nil // rollback via defer
		}
		if err := quota.ApplyUsage(ctx, tx, o.UserID, o.TotalGrams); err != nil {
			if errors.Is(err, quota.ErrQuotaExceeded) {
				return false, issues, nil
			}
			return false, nil, err
		}
	}

	// garnish yg kena skip dicatat di snapshot, item tidak di-drop
	items := annotateMissingGarnish(o.Items, issues)
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return false, nil, err
	}

	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, payment_status=$3, items=$4, updated_at=now()
		WHERE id=$1 AND status=$5`,
		o.ID, StatusConfirmed, PaymentCompleted, itemsJSON, StatusAwaitingPayment)
	if err != nil {
		return false, nil, err
	}
	if ct.RowsAffected() == 0 {
		// sudah difinalkan proses lain; biarkan no-op (idempotent)
		return false, nil, ErrInvalidTransition
	}
	if err := tx.Commit(ctx); err != nil {
		return false, nil, err
	}
	o.Status, o.PaymentStatus, o.Items = StatusConfirmed, PaymentCompleted, items
	return true, issues, nil
}

// Cancel: transisi gagal. Tidak menyentuh stok (belum ada decrement di
// jalur ini).
func (r *Repo) Cancel(ctx context.Context, orderID string, pay PaymentStatus, fromStatuses ...Status) error {
	if len(fromStatuses) == 0 {
		fromStatuses = []Status{StatusPending, StatusAwaitingPayment}
	}
	from := make([]string, 0, len(fromStatuses))
	for _, s := range fromStatuses {
		from = append(from, string(s))
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, payment_status=$3, updated_at=now()
		WHERE id=$1 AND status = ANY($4)`,
		orderID, StatusCancelled, pay, from)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// Release: kompensasi pasca-decrement (refund order confirmed) —
// kembalikan stok + kuota + tandai cancelled/refunded, satu transaksi.
func (r *Repo) Release(ctx context.Context, o *Order) ([]stock.Line, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lines, err := stock.ReleaseAll(ctx, tx, o.ID)
	if err != nil {
		return nil, err
	}
	if len(lines) > 0 {
		if err := quota.ApplyUsage(ctx, tx, o.UserID, -o.TotalGrams); err != nil {
			return nil, err
		}
	}
	ct, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, payment_status=$3, updated_at=now()
		WHERE id=$1 AND status=$4`,
		o.ID, StatusCancelled, PaymentRefunded, StatusConfirmed)
	if err != nil {
		return nil, err
	}
	if ct.RowsAffected() == 0 {
		return nil, ErrInvalidTransition
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return lines, nil
}

// disabledPlates: plate mana dari snapshot yg sedang admin_disabled.
func disabledPlates(ctx context.Context, q postgres.Querier, items []SnapshotItem) (map[string]bool, error) {
	ids := snapshotPlateIDs(items)
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := q.Query(ctx, `SELECT id FROM plates WHERE id = ANY($1) AND admin_disabled`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

func snapshotPlateIDs(items []SnapshotItem) []string {
	seen := map[string]bool{}
	var out []string
	for _, it := range items {
		if it.Kind == cart.KindPlate && it.PlateID != "" && !seen[it.PlateID] {
			seen[it.PlateID] = true
			out = append(out, it.PlateID)
		}
	}
	return out
}

// DisabledPlateIssues: satu issue blocking per plate item yg kena disable.
func DisabledPlateIssues(items []SnapshotItem, disabled map[string]bool) []stock.Issue {
	if len(disabled) == 0 {
		return nil
	}
	var out []stock.Issue
	for _, it := range items {
		if it.Kind == cart.KindPlate && disabled[it.PlateID] {
			out = append(out, stock.Issue{
				Kind:     stock.KindPlate,
				ID:       it.PlateID,
				Reason:   stock.ReasonUnavailable,
				Required: it.Qty,
				Blocking: true,
			})
		}
	}
	return out
}

func annotateMissingGarnish(items []SnapshotItem, issues []stock.Issue) []SnapshotItem {
	short := map[string]bool{}
	for _, is := range issues {
		if !is.Blocking {
			short[is.ID] = true
		}
	}
	if len(short) == 0 {
		return items
	}
	out := make([]SnapshotItem, len(items))
	copy(out, items)
	for i := range out {
		for _, l := range out[i].Lines {
			if l.Garnish && short[l.ID] {
				out[i].MissingGarnish = append(out[i].MissingGarnish, l.ID)
			}
		}
	}
	return out
}
