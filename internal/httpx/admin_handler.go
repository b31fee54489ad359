package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-kitchen-orders.git/internal/catalog"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/events"
	kafkax "github.com/ariefcatur/go-kitchen-orders.git/internal/kafka"
	"github.com/ariefcatur/go-kitchen-orders.git/internal/quota"
)

type Publisher interface {
	Publish(topic string, key, value []byte, headers ...kafkago.Header)
}

// AdminHandler: katalog + mutasi administratif. Tiap mutasi stok /
// availability publish stock.changed supaya propagator jalan.
type AdminHandler struct {
	Catalog     *catalog.Repo
	Quota       *quota.Tracker
	Producer    Publisher
	ServiceName string
}

func (h *AdminHandler) Register(r *chi.Mux) {
	r.Get("/plates", h.listPlates)
	r.Get("/products", h.listProducts)
	r.Patch("/admin/ingredients/{id}", h.patchIngredient)
	r.Patch("/admin/plates/{id}", h.patchPlate)
	r.Patch("/admin/subscriptions/{userID}", h.patchSubscription)
}

func (h *AdminHandler) listPlates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ListPlates(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	type plateView struct {
		catalog.Plate
		Available bool `json:"available"`
	}
	out := make([]plateView, 0, len(ps))
	for _, p := range ps {
		out = append(out, plateView{Plate: p, Available: p.Available()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *AdminHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Catalog.ListProducts(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *AdminHandler) patchIngredient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Stock      *int  `json:"stock,omitempty"`
		StockDelta *int  `json:"stock_delta,omitempty"`
		Available  *bool `json:"available,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if req.Stock != nil {
		if err := h.Catalog.SetIngredientStock(ctx, id, *req.Stock); err != nil {
			writeErr(w, err)
			return
		}
	}
	if req.StockDelta != nil {
		if err := h.Catalog.AdjustIngredientStock(ctx, id, *req.StockDelta); err != nil {
			writeErr(w, err)
			return
		}
	}
	if req.Available != nil {
		if err := h.Catalog.SetIngredientAvailable(ctx, id, *req.Available); err != nil {
			writeErr(w, err)
			return
		}
	}

	h.publishStockChanged([]string{id}, nil)
	ing, err := h.Catalog.GetIngredient(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ing)
}

func (h *AdminHandler) patchPlate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		AdminDisabled *bool `json:"admin_disabled,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AdminDisabled == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing admin_disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Catalog.SetPlateAdminDisabled(ctx, id, *req.AdminDisabled); err != nil {
		writeErr(w, err)
		return
	}
	p, err := h.Catalog.GetPlate(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) patchSubscription(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "userID")
	var req struct {
		Plan string `json:"plan"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Plan == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing plan"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// downgrade boleh meng-clamp used_grams ke limit baru
	if err := h.Quota.ChangePlan(ctx, uid, req.Plan); err != nil {
		writeErr(w, err)
		return
	}
	sub, err := h.Quota.Get(ctx, uid)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *AdminHandler) publishStockChanged(ingredientIDs, productIDs []string) {
	if h.Producer == nil {
		return
	}
	key := "admin"
	if len(ingredientIDs) > 0 {
		key = ingredientIDs[0]
	}
	ev := events.Envelope{
		EventID:      uuid.NewString(),
		EventType:    events.EventStockChanged,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     h.ServiceName,
		Payload: kafkax.MustMarshal(events.StockChangedPayload{
			IngredientIDs: ingredientIDs, ProductIDs: productIDs, Source: "admin",
		}),
	}
	h.Producer.Publish(events.TopicStockChanged, events.PartitionKey(key), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(events.EventStockChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
