package orders

import (
	"context"
	"log"

	"github.com/warehouse-sim/shipping-coordinator/internal/inventory"
)

// Reconciler repairs orders stranded between "stock deducted" and "marked
// shipped". It consults the ledger's audit trail through the resilient
// client - the ledger is another service, not our database.
type Reconciler struct {
	Store     Store
	Inventory InventoryClient
	Events    *Publisher
}

type RecoveryReport struct {
	Scanned    int `json:"scanned"`
	Fixed      int `json:"fixed"`
	Unrepaired int `json:"unrepaired"`
	Failed     int `json:"failed"`
}

// RecoverPendingOrders sweeps every unshipped order. Orders the ledger has
// deducted get the fast-path repair; the rest stay untouched for a normal
// ship retry.
func (r *Reconciler) RecoverPendingOrders(ctx context.Context) (*RecoveryReport, error) {
	pending, err := r.Store.ListUnshipped(ctx)
	if err != nil {
		return nil, err
	}

	rep := &RecoveryReport{Scanned: len(pending)}
	for _, o := range pending {
		fixed, err := r.RecoverOrder(ctx, o.ID)
		switch {
		case err != nil:
			log.Printf("recovery: order %s failed: %v", o.ID, err)
			rep.Failed++
		case fixed:
			rep.Fixed++
		default:
			rep.Unrepaired++
		}
	}
	log.Printf("recovery: sweep done scanned=%d fixed=%d unrepaired=%d failed=%d",
		rep.Scanned, rep.Fixed, rep.Unrepaired, rep.Failed)
	return rep, nil
}

// RecoverOrder repairs a single order if the ledger proves its deduction
// happened. Never calls deduct; the audit trail is the evidence.
func (r *Reconciler) RecoverOrder(ctx context.Context, orderID string) (bool, error) {
	o, err := r.Store.GetOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	if o.Status == StatusShipped {
		return false, nil
	}

	if !o.InventoryUpdated {
		txs, err := r.Inventory.TransactionsByOrder(ctx, orderID)
		if err != nil {
			return false, err
		}
		if !hasDeduction(txs) {
			// Ledger has no trace; nothing committed, a plain retry is safe.
			return false, nil
		}
		if err := r.Store.MarkInventoryUpdated(ctx, orderID); err != nil {
			return false, err
		}
	}

	if err := r.Store.MarkShipped(ctx, orderID); err != nil {
		return false, err
	}
	r.Events.OrderShipped(orderID, true)
	log.Printf("recovery: order %s repaired to shipped", orderID)
	return true, nil
}

type DriftReport struct {
	OrderID            string `json:"order_id"`
	Status             Status `json:"status"`
	InventoryUpdated   bool   `json:"inventory_updated"`
	LedgerHasDeduction bool   `json:"ledger_has_deduction"`
	Consistent         bool   `json:"consistent"`
	Detail             string `json:"detail"`
}

// VerifyOrderInventory cross-checks the order flag against the ledger's
// audit trail and reports drift without repairing anything.
func (r *Reconciler) VerifyOrderInventory(ctx context.Context, orderID string) (*DriftReport, error) {
	o, err := r.Store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	txs, err := r.Inventory.TransactionsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	rep := &DriftReport{
		OrderID:            orderID,
		Status:             o.Status,
		InventoryUpdated:   o.InventoryUpdated,
		LedgerHasDeduction: hasDeduction(txs),
	}
	rep.Consistent = rep.InventoryUpdated == rep.LedgerHasDeduction
	switch {
	case rep.Consistent:
		rep.Detail = "order flag and inventory ledger agree"
	case rep.LedgerHasDeduction:
		rep.Detail = "ledger recorded a deduction the order has not acknowledged; run recovery"
	default:
		rep.Detail = "order claims inventory was updated but the ledger has no record"
	}
	return rep, nil
}

func hasDeduction(txs []inventory.Transaction) bool {
	for _, t := range txs {
		if t.Type == inventory.TxDeduct {
			return true
		}
	}
	return false
}
