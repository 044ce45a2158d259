package inventory

import "time"

const (
	TxDeduct  = "deduct"
	TxRestock = "restock"
)

type Product struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	PriceCents    int64     `json:"price_cents"`
	StockQuantity int       `json:"stock_quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Transaction is the immutable audit record behind every stock movement.
// The unique index on IdempotencyKey is what arbitrates duplicate deducts.
type Transaction struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"product_id"`
	OrderID        string    `json:"order_id,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	QuantityChange int       `json:"quantity_change"`
	Type           string    `json:"transaction_type"`
	CreatedAt      time.Time `json:"created_at"`
}

type DeductItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type ItemResult struct {
	ProductID     string `json:"productId"`
	ProductName   string `json:"productName"`
	PreviousStock int    `json:"previousStock"`
	NewStock      int    `json:"newStock"`
	Deducted      int    `json:"deducted"`
}

type DeductResult struct {
	OrderID          string       `json:"orderId"`
	AlreadyProcessed bool         `json:"alreadyProcessed"`
	TransactionID    string       `json:"transactionId,omitempty"`
	Items            []ItemResult `json:"items,omitempty"`
	GremlinApplied   bool         `json:"gremlinApplied"`
	GremlinDelayMS   int64        `json:"gremlinDelayMs"`
}

type AvailabilityItem struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	Requested   int    `json:"requested"`
	InStock     int    `json:"inStock"`
	Available   bool   `json:"available"`
	Reason      string `json:"reason,omitempty"`
}

type Availability struct {
	Available bool               `json:"available"`
	Items     []AvailabilityItem `json:"items"`
}
