package orders

import "time"

type Order struct {
	ID             string    `json:"id"`
	CustomerName   string    `json:"customer_name"`
	CustomerEmail  string    `json:"customer_email,omitempty"`
	Status         Status    `json:"status"`
	TotalCents     int64     `json:"total_cents"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	// InventoryUpdated flips false->true exactly once, after the ledger has
	// durably recorded the deduction. It is the crash signature recovery
	// keys off.
	InventoryUpdated bool        `json:"inventory_updated"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	Items            []OrderItem `json:"items,omitempty"`
}

// OrderItem snapshots name and price at order creation; later catalog
// changes never touch it.
type OrderItem struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	ProductID      string `json:"product_id"`
	ProductName    string `json:"product_name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type ItemInput struct {
	ProductID      string `json:"productId"`
	ProductName    string `json:"productName"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

type CreateOrderInput struct {
	CustomerName   string
	CustomerEmail  string
	Items          []ItemInput
	IdempotencyKey string
}
