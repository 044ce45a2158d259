package invclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/warehouse-sim/shipping-coordinator/internal/inventory"
)

// HTTPCaller talks to the inventory API. Deadlines come from the context the
// Client attaches per attempt; the embedded http.Client carries none of its
// own so the runtime-configurable timeout is the only one in play.
type HTTPCaller struct {
	base   string
	client *http.Client
}

func NewHTTPCaller(baseURL string) *HTTPCaller {
	return &HTTPCaller{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{},
	}
}

type deductRequest struct {
	OrderID        string                 `json:"orderId"`
	IdempotencyKey string                 `json:"idempotencyKey"`
	Items          []inventory.DeductItem `json:"items"`
}

type deductResponse struct {
	Success          bool                    `json:"success"`
	AlreadyProcessed bool                    `json:"alreadyProcessed"`
	Message          string                  `json:"message"`
	Error            string                  `json:"error"`
	Data             *inventory.DeductResult `json:"data"`
}

func (h *HTTPCaller) DeductInventory(ctx context.Context, orderID, idempotencyKey string, items []inventory.DeductItem) (*inventory.DeductResult, error) {
	body, status, err := h.post(ctx, "/inventory/deduct", deductRequest{
		OrderID:        orderID,
		IdempotencyKey: idempotencyKey,
		Items:          items,
	})
	if err != nil {
		return nil, err
	}

	var resp deductResponse
	if uerr := json.Unmarshal(body, &resp); uerr != nil && status < 300 {
		return nil, fmt.Errorf("decode deduct response: %w", uerr)
	}

	switch {
	case status == http.StatusOK:
		if resp.Data == nil {
			resp.Data = &inventory.DeductResult{OrderID: orderID}
		}
		return resp.Data, nil
	case status == http.StatusConflict:
		// Idempotent replay: the deduction already happened, which is success.
		return &inventory.DeductResult{OrderID: orderID, AlreadyProcessed: true}, nil
	default:
		return nil, &CallError{Status: status, Msg: errMessage(resp.Error, resp.Message, status)}
	}
}

type checkResponse struct {
	Success   bool                         `json:"success"`
	Available bool                         `json:"available"`
	Items     []inventory.AvailabilityItem `json:"items"`
	Error     string                       `json:"error"`
}

func (h *HTTPCaller) CheckAvailability(ctx context.Context, items []inventory.DeductItem) (*inventory.Availability, error) {
	body, status, err := h.post(ctx, "/inventory/check", map[string]any{"items": items})
	if err != nil {
		return nil, err
	}
	var resp checkResponse
	if uerr := json.Unmarshal(body, &resp); uerr != nil && status < 300 {
		return nil, fmt.Errorf("decode check response: %w", uerr)
	}
	if status != http.StatusOK {
		return nil, &CallError{Status: status, Msg: errMessage(resp.Error, "", status)}
	}
	return &inventory.Availability{Available: resp.Available, Items: resp.Items}, nil
}

type transactionsResponse struct {
	Success      bool                    `json:"success"`
	Found        bool                    `json:"found"`
	Transactions []inventory.Transaction `json:"transactions"`
	Error        string                  `json:"error"`
}

func (h *HTTPCaller) TransactionsByOrder(ctx context.Context, orderID string) ([]inventory.Transaction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		h.base+"/inventory/transactions/order/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}
	body, status, err := h.do(req)
	if err != nil {
		return nil, err
	}
	var resp transactionsResponse
	if uerr := json.Unmarshal(body, &resp); uerr != nil && status < 300 {
		return nil, fmt.Errorf("decode transactions response: %w", uerr)
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, &CallError{Status: status, Msg: errMessage(resp.Error, "", status)}
	}
	return resp.Transactions, nil
}

func (h *HTTPCaller) post(ctx context.Context, path string, payload any) ([]byte, int, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+path, bytes.NewReader(b))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return h.do(req)
}

func (h *HTTPCaller) do(req *http.Request) ([]byte, int, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return nil, 0, &CallError{TimedOut: true, Msg: err.Error()}
		}
		return nil, 0, &CallError{Status: 0, Msg: err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, &CallError{Status: 0, Msg: err.Error()}
	}
	return body, resp.StatusCode, nil
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}

func errMessage(errField, msgField string, status int) string {
	if errField != "" {
		return errField
	}
	if msgField != "" {
		return msgField
	}
	return http.StatusText(status)
}
