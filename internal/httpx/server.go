package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ariefcatur/go-kitchen-orders.git/internal/cart"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/catalog"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/checkout"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/order"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/payment"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/quota"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr memetakan taksonomi error domain ke status + body terstruktur.
// Semua recoverable-and-reported; hanya persistence failure yg jadi 500.
func writeErr(w http.ResponseWriter, err error) {
	var verr *cart.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusConflict, map[string]any{"error": "insufficient_stock", "issues": verr.Issues})
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, order.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
	case errors.Is(err, cart.ErrUnavailable):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "unavailable", "detail": err.Error()})
	case errors.Is(err, quota.ErrQuotaExceeded):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "quota_exceeded"})
	case errors.Is(err, quota.ErrCategoryNotAllowed):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "category_not_allowed"})
	case errors.Is(err, quota.ErrNoSubscription):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "no_subscription"})
	case errors.Is(err, cart.ErrCartEmpty):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cart_empty"})
	case errors.Is(err, cart.ErrInvalidItem):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_item"})
	case errors.Is(err, payment.ErrPaymentNotCaptured):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "payment_not_captured"})
	case errors.Is(err, payment.ErrChargeMismatch):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "charge_mismatch"})
	case errors.Is(err, checkout.ErrStaleCart):
		// stale cart ditangani khusus di handler (bawa issues); fallback:
		writeJSON(w, http.StatusConflict, map[string]string{"error": "stale_cart"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal"})
	}
}

// userID dari header; auth/session issuance di luar core.
func userID(r *http.Request) string { return r.Header.Get("X-User-Id") }
