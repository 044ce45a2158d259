package inventory

import (
	"context"
	"log"

	"github.com/warehouse-sim/shipping-coordinator/internal/fault"
)

// Store is what the ledger needs from persistence. *Repo satisfies it;
// tests swap in a fake.
type Store interface {
	Deduct(ctx context.Context, orderID, idempotencyKey string, items []DeductItem) (*DeductResult, error)
	CheckAvailability(ctx context.Context, items []DeductItem) (*Availability, error)
	AddStock(ctx context.Context, productID string, quantity int) (*Product, error)
	TransactionsByOrder(ctx context.Context, orderID string) ([]Transaction, error)
	GetProduct(ctx context.Context, productID string) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
}

// Service is the inventory ledger with fault injection wired around the
// durable store.
type Service struct {
	Store   Store
	Gremlin *fault.Gremlin
	Chaos   *fault.Chaos
}

func NewService(store Store, gremlin *fault.Gremlin, chaos *fault.Chaos) *Service {
	if gremlin == nil {
		gremlin = fault.NewGremlin(false, 0, 0, nil)
	}
	if chaos == nil {
		chaos = fault.NewChaos(false, 0, nil)
	}
	return &Service{Store: store, Gremlin: gremlin, Chaos: chaos}
}

// Deduct runs the idempotent batch deduction. A chaos crash fires only after
// the store has committed, so the error it produces carries the
// committed-but-unconfirmed tag: the response is lost, the deduction is not.
func (s *Service) Deduct(ctx context.Context, orderID, idempotencyKey string, items []DeductItem) (*DeductResult, error) {
	delayed, d := s.Gremlin.Apply(ctx)

	res, err := s.Store.Deduct(ctx, orderID, idempotencyKey, items)
	if err != nil {
		return nil, err
	}
	res.GremlinApplied = delayed
	res.GremlinDelayMS = d.Milliseconds()

	if res.AlreadyProcessed {
		log.Printf("inventory: idempotent replay for key %s", idempotencyKey)
		return res, nil
	}

	if err := s.Chaos.CrashAfterCommit(ctx, "inventory deduction for order "+orderID); err != nil {
		return nil, err
	}

	log.Printf("inventory: stock deducted for order %s", orderID)
	return res, nil
}

func (s *Service) CheckAvailability(ctx context.Context, items []DeductItem) (*Availability, error) {
	_, _ = s.Gremlin.Apply(ctx)
	return s.Store.CheckAvailability(ctx, items)
}

func (s *Service) AddStock(ctx context.Context, productID string, quantity int) (*Product, error) {
	return s.Store.AddStock(ctx, productID, quantity)
}

func (s *Service) TransactionsByOrder(ctx context.Context, orderID string) ([]Transaction, error) {
	return s.Store.TransactionsByOrder(ctx, orderID)
}

func (s *Service) GetProduct(ctx context.Context, productID string) (*Product, error) {
	return s.Store.GetProduct(ctx, productID)
}

func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	return s.Store.ListProducts(ctx)
}

type ServiceStatus struct {
	Gremlin fault.GremlinStatus `json:"gremlin"`
	Chaos   fault.ChaosStatus   `json:"chaos"`
}

func (s *Service) Status(ctx context.Context) ServiceStatus {
	return ServiceStatus{Gremlin: s.Gremlin.Status(), Chaos: s.Chaos.Status(ctx)}
}
