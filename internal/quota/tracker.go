package quota

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-kitchen-orders.git/internal/postgres"
)

var (
	ErrNoSubscription     = errors.New("quota: subscription not found")
	ErrQuotaExceeded      = errors.New("quota: weight limit exceeded")
	ErrCategoryNotAllowed = errors.New("quota: category not allowed for plan")
)

type Subscription struct {
	UserID     string
	Plan       string
	LimitGrams int
	UsedGrams  int
	RenewsAt   time.Time
}

// RemainingGrams tidak pernah negatif (bisa terjadi sesaat setelah
// downgrade plan sebelum clamp).
func (s Subscription) RemainingGrams() int {
	if r := s.LimitGrams - s.UsedGrams; r > 0 {
		return r
	}
	return 0
}

func (s Subscription) CanAdd(grams int) bool { return grams <= s.RemainingGrams() }

type Tracker struct{ DB *pgxpool.Pool }

func (t *Tracker) Get(ctx context.Context, userID string) (Subscription, error) {
	var s Subscription
	err := t.DB.QueryRow(ctx, `
		SELECT user_id, plan, limit_grams, used_grams, renews_at
		FROM subscriptions WHERE user_id=$1`, userID).
		Scan(&s.UserID, &s.Plan, &s.LimitGrams, &s.UsedGrams, &s.RenewsAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subscription{}, ErrNoSubscription
	}
	return s, err
}

// Apply menyesuaikan used_grams lewat pool (non-transaksional).
func (t *Tracker) Apply(ctx context.Context, userID string, deltaGrams int) error {
	return ApplyUsage(ctx, t.DB, userID, deltaGrams)
}

// ApplyUsage: satu conditional UPDATE, bukan read-then-write, supaya dua
// request concurrent tidak bisa sama-sama lolos lalu melewati limit.
// Delta negatif (kompensasi refund) di-clamp di nol.
func ApplyUsage(ctx context.Context, q postgres.Querier, userID string, deltaGrams int) error {
	if deltaGrams == 0 {
		return nil
	}
	if deltaGrams < 0 {
		ct, err := q.Exec(ctx, `
			UPDATE subscriptions SET used_grams = GREATEST(used_grams + $2, 0), updated_at=now()
			WHERE user_id=$1`, userID, deltaGrams)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return ErrNoSubscription
		}
		return nil
	}

	ct, err := q.Exec(ctx, `
		UPDATE subscriptions SET used_grams = used_grams + $2, updated_at=now()
		WHERE user_id=$1 AND used_grams + $2 <= limit_grams`, userID, deltaGrams)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	// bedakan "tidak ada subscription" dari "limit terlampaui"
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM subscriptions WHERE user_id=$1)`, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNoSubscription
	}
	return ErrQuotaExceeded
}

// ChangePlan: jalur administratif. Downgrade boleh memaksa
// used_grams := min(used_grams, limit baru).
func (t *Tracker) ChangePlan(ctx context.Context, userID, planName string) error {
	p := PlanFor(planName)
	ct, err := t.DB.Exec(ctx, `
		UPDATE subscriptions
		SET plan=$2, limit_grams=$3, used_grams=LEAST(used_grams, $3), updated_at=now()
		WHERE user_id=$1`, userID, p.Name, p.LimitGrams)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNoSubscription
	}
	return nil
}
