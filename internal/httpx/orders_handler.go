package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-kitchen-orders.git/internal/checkout"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/order"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/payment"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/redisx"
)

type OrdersHandler struct {
	Checkout *checkout.Service
	Recon    *payment.Reconciler
	Orders   *order.Repo
	Redis    *redis.Client
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/checkout", h.checkout)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/confirm", h.confirmPayment)
	r.Post("/webhooks/payment", h.paymentWebhook)
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing user"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	res, vres, err := h.Checkout.Checkout(ctx, uid)
	if errors.Is(err, checkout.ErrStaleCart) {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "stale_cart", "validation": vres})
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *OrdersHandler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChargeID string `json:"charge_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChargeID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing charge_id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	res, err := h.Recon.ConfirmByClient(ctx, chi.URLParam(r, "id"), req.ChargeID)
	if err != nil && res == nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// paymentWebhook: body sudah diverifikasi signature-nya di layer luar.
// Balas 200 juga utk duplikat — provider retry at-least-once.
func (h *OrdersHandler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	var ev payment.WebhookEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	res, err := h.Recon.HandleWebhook(ctx, ev)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			// order belum ada (event nyasar) — 200 supaya provider berhenti retry
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		writeErr(w, err)
		return
	}
	if res == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache status
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	// 2) fallback DB
	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if h.Redis != nil {
		val := fmt.Sprintf(`{"status":%q,"payment_status":%q}`, o.Status, o.PaymentStatus)
		_ = h.Redis.Set(ctx, key, val, redisx.TTLStatusCache).Err()
	}
	writeJSON(w, http.StatusOK, o)
}
