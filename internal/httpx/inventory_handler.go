package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warehouse-sim/shipping-coordinator/internal/fault"
	"github.com/warehouse-sim/shipping-coordinator/internal/inventory"
)

type InventoryHandler struct {
	Svc *inventory.Service
}

func (h *InventoryHandler) Register(r *chi.Mux) {
	r.Post("/inventory/deduct", h.deduct)
	r.Post("/inventory/check", h.check)
	r.Get("/inventory/products", h.listProducts)
	r.Get("/inventory/products/{id}", h.getProduct)
	r.Post("/inventory/products/{id}/stock", h.addStock)
	r.Get("/inventory/transactions/order/{orderId}", h.orderTransactions)
	r.Get("/inventory/status", h.status)
}

type deductReq struct {
	OrderID        string                 `json:"orderId"`
	IdempotencyKey string                 `json:"idempotencyKey"`
	Items          []inventory.DeductItem `json:"items"`
}

func (h *InventoryHandler) deduct(w http.ResponseWriter, r *http.Request) {
	var req deductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "invalid json"})
		return
	}
	if req.OrderID == "" || len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "orderId and items are required"})
		return
	}
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "each item needs productId and a positive quantity"})
			return
		}
	}
	key := req.IdempotencyKey
	if key == "" {
		key = "order-" + req.OrderID
	}

	res, err := h.Svc.Deduct(r.Context(), req.OrderID, key, req.Items)
	if err != nil {
		h.writeDeductError(w, err)
		return
	}

	if res.AlreadyProcessed {
		// 409 signals the replay; the client treats it as success.
		writeJSON(w, http.StatusConflict, map[string]any{
			"success":          true,
			"alreadyProcessed": true,
			"message":          "Inventory already deducted for this order",
			"data":             res,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Inventory deducted successfully",
		"data":    res,
	})
}

func (h *InventoryHandler) writeDeductError(w http.ResponseWriter, err error) {
	// Chaos fault: the deduction is durable, only this response is lost. The
	// caller gets an outage-shaped error and must verify, not resubmit.
	if fault.CommittedButUnconfirmed(err) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success":    false,
			"error":      "service unavailable",
			"message":    "The inventory update may have succeeded. Please verify order status.",
			"chaosEvent": true,
		})
		return
	}

	var stock *inventory.InsufficientStockError
	if errors.As(err, &stock) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": stock.Error()})
		return
	}
	if errors.Is(err, inventory.ErrProductNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to deduct inventory"})
}

func (h *InventoryHandler) check(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []inventory.DeductItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "items array is required"})
		return
	}
	av, err := h.Svc.CheckAvailability(r.Context(), req.Items)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to check availability"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"available": av.Available,
		"items":     av.Items,
	})
}

func (h *InventoryHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Svc.ListProducts(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to list products"})
		return
	}
	if ps == nil {
		ps = []inventory.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(ps), "products": ps})
}

func (h *InventoryHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Svc.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, inventory.ErrProductNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Product not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to get product"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "product": p})
}

func (h *InventoryHandler) addStock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "positive quantity is required"})
		return
	}
	p, err := h.Svc.AddStock(r.Context(), chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		if errors.Is(err, inventory.ErrProductNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Product not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to add stock"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "product": p})
}

func (h *InventoryHandler) orderTransactions(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	txs, err := h.Svc.TransactionsByOrder(r.Context(), orderID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": "failed to get order transactions"})
		return
	}
	if txs == nil {
		txs = []inventory.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"found":        len(txs) > 0,
		"orderId":      orderID,
		"transactions": txs,
	})
}

func (h *InventoryHandler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": h.Svc.Status(r.Context())})
}
