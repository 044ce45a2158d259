package inventory

import (
	"errors"
	"fmt"
)

var ErrProductNotFound = errors.New("product not found")

// InsufficientStockError is a definitive business rejection. It must never be
// retried: stock will not appear by asking again.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d",
		e.ProductName, e.Available, e.Requested)
}
