package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warehouse-sim/shipping-coordinator/internal/invclient"
	"github.com/warehouse-sim/shipping-coordinator/internal/inventory"
	"github.com/warehouse-sim/shipping-coordinator/internal/orders"
)

type OrdersHandler struct {
	Coordinator *orders.Coordinator
	Reconciler  *orders.Reconciler
	Client      *invclient.Client
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Post("/orders/check-availability", h.checkAvailability)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Post("/orders/{id}/ship", h.shipOrder)
	r.Post("/orders/recover", h.recoverOrders)
	r.Get("/orders/{id}/verify", h.verifyOrder)

	r.Get("/control/timeout", h.getTimeout)
	r.Put("/control/timeout", h.setTimeout)
	r.Get("/control/circuit", h.circuitStatus)
}

type createOrderReq struct {
	CustomerName  string             `json:"customerName"`
	CustomerEmail string             `json:"customerEmail"`
	Items         []orders.ItemInput `json:"items"`
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid json"})
		return
	}

	o, replayed, err := h.Coordinator.CreateOrder(r.Context(), orders.CreateOrderInput{
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		Items:          req.Items,
		IdempotencyKey: r.Header.Get("X-Idempotency-Key"),
	})
	if err != nil {
		if errors.Is(err, orders.ErrValidation) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to create order"})
		return
	}

	msg := "Order created successfully"
	if replayed {
		msg = "Order already exists (idempotent)"
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": msg, "order": o})
}

// checkAvailability is a pre-order probe through the resilient client, so a
// storefront can warn about stock before creating the order at all.
func (h *OrdersHandler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []inventory.DeductItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "items array is required"})
		return
	}
	av, err := h.Client.CheckAvailability(r.Context(), req.Items)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"error":   "Inventory service is temporarily unavailable. Please try again later.",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"available": av.Available,
		"items":     av.Items,
	})
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	list, err := h.Coordinator.ListOrders(r.Context(), limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to list orders"})
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(list), "orders": list})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Coordinator.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Order not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to get order"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": o})
}

// shipOrder maps the structured ship result onto status codes: 200 shipped,
// 503 retryable (the operation may still complete - check, don't resubmit
// blindly), 400 definitive rejection.
func (h *OrdersHandler) shipOrder(w http.ResponseWriter, r *http.Request) {
	res, err := h.Coordinator.ShipOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Order not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to ship order"})
		return
	}

	if !res.Shipped {
		code := http.StatusBadRequest
		if res.Retryable {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, map[string]any{
			"success":   false,
			"retryable": res.Retryable,
			"message":   res.Message,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": res.Message, "order": res.Order})
}

func (h *OrdersHandler) recoverOrders(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Reconciler.RecoverPendingOrders(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "recovery sweep failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "report": rep})
}

func (h *OrdersHandler) verifyOrder(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Reconciler.VerifyOrderInventory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Order not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "verification failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "verification": rep})
}

func (h *OrdersHandler) getTimeout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"timeout_ms": h.Client.Timeout().Milliseconds()})
}

func (h *OrdersHandler) setTimeout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TimeoutMS int64 `json:"timeout_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid json"})
		return
	}
	if err := h.Client.SetTimeout(time.Duration(req.TimeoutMS) * time.Millisecond); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "timeout_ms": req.TimeoutMS})
}

func (h *OrdersHandler) circuitStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Client.BreakerStatus())
}
