package orders

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/warehouse-sim/shipping-coordinator/internal/inventory"
	"github.com/warehouse-sim/shipping-coordinator/internal/invclient"
)

// Store is the order-side persistence the coordinator drives. *Repo
// satisfies it; tests use an in-memory fake.
type Store interface {
	CreateOrder(ctx context.Context, o *Order) error
	FindByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	ListOrders(ctx context.Context, limit, offset int) ([]Order, error)
	ListUnshipped(ctx context.Context) ([]Order, error)
	MarkInventoryUpdated(ctx context.Context, orderID string) error
	MarkShipped(ctx context.Context, orderID string) error
}

// InventoryClient is the resilient bridge to the inventory side.
type InventoryClient interface {
	Deduct(ctx context.Context, orderID string, items []inventory.DeductItem) invclient.Result
	TransactionsByOrder(ctx context.Context, orderID string) ([]inventory.Transaction, error)
}

// Coordinator owns the order lifecycle. Shipping commits its two flags in
// two separate transactions on purpose: the window between them is what
// makes a crash recoverable instead of ambiguous.
type Coordinator struct {
	Store     Store
	Inventory InventoryClient
	Events    *Publisher
}

// CreateOrder validates, prices, and persists the order atomically. A reused
// idempotency key returns the original order untouched.
func (c *Coordinator) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, bool, error) {
	if in.CustomerName == "" {
		return nil, false, fmt.Errorf("%w: customer name is required", ErrValidation)
	}
	if len(in.Items) == 0 {
		return nil, false, fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	var total int64
	for _, it := range in.Items {
		if it.ProductID == "" || it.ProductName == "" {
			return nil, false, fmt.Errorf("%w: item needs productId and productName", ErrValidation)
		}
		if it.Quantity <= 0 {
			return nil, false, fmt.Errorf("%w: quantity must be positive for %s", ErrValidation, it.ProductID)
		}
		if it.UnitPriceCents <= 0 {
			return nil, false, fmt.Errorf("%w: unit price must be positive for %s", ErrValidation, it.ProductID)
		}
		total += int64(it.Quantity) * it.UnitPriceCents
	}

	if in.IdempotencyKey != "" {
		existing, err := c.Store.FindByIdempotencyKey(ctx, in.IdempotencyKey)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			log.Printf("orders: idempotent replay for key %s", in.IdempotencyKey)
			return existing, true, nil
		}
	}

	o := &Order{
		ID:             uuid.NewString(),
		CustomerName:   in.CustomerName,
		CustomerEmail:  in.CustomerEmail,
		Status:         StatusPending,
		TotalCents:     total,
		IdempotencyKey: in.IdempotencyKey,
	}
	for _, it := range in.Items {
		o.Items = append(o.Items, OrderItem{
			ID:             uuid.NewString(),
			OrderID:        o.ID,
			ProductID:      it.ProductID,
			ProductName:    it.ProductName,
			Quantity:       it.Quantity,
			UnitPriceCents: it.UnitPriceCents,
		})
	}

	err := c.Store.CreateOrder(ctx, o)
	if errors.Is(err, errIdemConflict) {
		// Lost the insert race to a concurrent duplicate; theirs is the order.
		existing, ferr := c.Store.FindByIdempotencyKey(ctx, in.IdempotencyKey)
		if ferr != nil {
			return nil, false, ferr
		}
		if existing != nil {
			return existing, true, nil
		}
		return nil, false, err
	}
	if err != nil {
		return nil, false, err
	}

	c.Events.OrderCreated(o)
	log.Printf("orders: created order %s total=%d cents", o.ID, total)
	return o, false, nil
}

// ShipResult is the structured shipping outcome. Retryable distinguishes
// "try again later, possibly already done" from a definitive rejection.
type ShipResult struct {
	Shipped        bool   `json:"shipped"`
	AlreadyShipped bool   `json:"already_shipped,omitempty"`
	Recovered      bool   `json:"recovered,omitempty"`
	Retryable      bool   `json:"retryable"`
	Message        string `json:"message"`
	Order          *Order `json:"order,omitempty"`
	Err            error  `json:"-"`
}

// ShipOrder drives the shipment state machine described at the top of the
// type. Returns ErrNotFound for unknown orders; business outcomes, including
// failures, come back inside ShipResult.
func (c *Coordinator) ShipOrder(ctx context.Context, orderID string) (*ShipResult, error) {
	o, err := c.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if o.Status == StatusShipped {
		return &ShipResult{
			Shipped:        true,
			AlreadyShipped: true,
			Message:        "Order already shipped",
			Order:          o,
		}, nil
	}

	// Recovery fast-path: the ledger already holds this deduction, only the
	// status mark is missing. No inventory call, just finish the commit.
	if o.InventoryUpdated {
		if err := c.Store.MarkShipped(ctx, orderID); err != nil {
			return nil, err
		}
		o.Status = StatusShipped
		c.Events.OrderShipped(orderID, true)
		log.Printf("orders: order %s recovered from partial failure, now shipped", orderID)
		return &ShipResult{
			Shipped:   true,
			Recovered: true,
			Message:   "Order shipping completed (recovered from partial failure)",
			Order:     o,
		}, nil
	}

	items := make([]inventory.DeductItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, inventory.DeductItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	res := c.Inventory.Deduct(ctx, orderID, items)
	if !res.Success {
		if res.Retryable {
			// The deduction may have committed without us hearing back; flag
			// the order for targeted reconciliation.
			c.Events.OrderStuck(orderID, res.Message, res.TimedOut)
		}
		msg := res.Message
		if msg == "" {
			msg = "Unable to process shipping at this time. Please try again."
		}
		return &ShipResult{
			Retryable: res.Retryable,
			Message:   msg,
			Err:       res.Err,
		}, nil
	}

	// Two-step commit, two transactions. The flag lands first so a crash
	// here leaves "deducted but not shipped" - findable, never ambiguous.
	if err := c.Store.MarkInventoryUpdated(ctx, orderID); err != nil {
		return nil, err
	}
	if err := c.Store.MarkShipped(ctx, orderID); err != nil {
		return nil, err
	}

	o.InventoryUpdated = true
	o.Status = StatusShipped
	c.Events.OrderShipped(orderID, false)
	log.Printf("orders: order %s shipped", orderID)
	return &ShipResult{
		Shipped: true,
		Message: "Order shipped successfully",
		Order:   o,
	}, nil
}

func (c *Coordinator) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return c.Store.GetOrder(ctx, orderID)
}

func (c *Coordinator) ListOrders(ctx context.Context, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return c.Store.ListOrders(ctx, limit, offset)
}
