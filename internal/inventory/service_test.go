package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warehouse-sim/shipping-coordinator/internal/fault"
)

// memStore is an in-memory ledger with the same idempotency contract as the
// database: one deduction per key, replays return the stored result.
type memStore struct {
	stock    map[string]int
	byKey    map[string]*DeductResult
	deducts  int
	restocks int
}

func newMemStore() *memStore {
	return &memStore{
		stock: map[string]int{"p1": 10, "p2": 3},
		byKey: map[string]*DeductResult{},
	}
}

func (m *memStore) Deduct(_ context.Context, orderID, key string, items []DeductItem) (*DeductResult, error) {
	if prev, ok := m.byKey[key]; ok {
		cp := *prev
		cp.AlreadyProcessed = true
		return &cp, nil
	}
	for _, it := range items {
		if m.stock[it.ProductID] < it.Quantity {
			return nil, &InsufficientStockError{
				ProductID: it.ProductID,
				Available: m.stock[it.ProductID],
				Requested: it.Quantity,
			}
		}
	}
	res := &DeductResult{OrderID: orderID, TransactionID: "tx-" + orderID}
	for _, it := range items {
		prev := m.stock[it.ProductID]
		m.stock[it.ProductID] = prev - it.Quantity
		res.Items = append(res.Items, ItemResult{
			ProductID:     it.ProductID,
			PreviousStock: prev,
			NewStock:      prev - it.Quantity,
			Deducted:      it.Quantity,
		})
	}
	m.byKey[key] = res
	m.deducts++
	return res, nil
}

func (m *memStore) CheckAvailability(_ context.Context, items []DeductItem) (*Availability, error) {
	av := &Availability{Available: true}
	for _, it := range items {
		ok := m.stock[it.ProductID] >= it.Quantity
		if !ok {
			av.Available = false
		}
		av.Items = append(av.Items, AvailabilityItem{
			ProductID: it.ProductID,
			Requested: it.Quantity,
			InStock:   m.stock[it.ProductID],
			Available: ok,
		})
	}
	return av, nil
}

func (m *memStore) AddStock(_ context.Context, productID string, quantity int) (*Product, error) {
	if _, ok := m.stock[productID]; !ok {
		return nil, ErrProductNotFound
	}
	m.stock[productID] += quantity
	m.restocks++
	return &Product{ID: productID, StockQuantity: m.stock[productID]}, nil
}

func (m *memStore) TransactionsByOrder(_ context.Context, orderID string) ([]Transaction, error) {
	return nil, nil
}

func (m *memStore) GetProduct(_ context.Context, productID string) (*Product, error) {
	q, ok := m.stock[productID]
	if !ok {
		return nil, ErrProductNotFound
	}
	return &Product{ID: productID, StockQuantity: q}, nil
}

func (m *memStore) ListProducts(_ context.Context) ([]Product, error) {
	var out []Product
	for id, q := range m.stock {
		out = append(out, Product{ID: id, StockQuantity: q})
	}
	return out, nil
}

func TestServiceDeductFresh(t *testing.T) {
	st := newMemStore()
	svc := NewService(st, nil, nil)

	res, err := svc.Deduct(context.Background(), "o1", "order-o1",
		[]DeductItem{{ProductID: "p1", Quantity: 4}})
	if err != nil {
		t.Fatal(err)
	}
	if res.AlreadyProcessed {
		t.Error("fresh deduction flagged as replay")
	}
	if st.stock["p1"] != 6 {
		t.Errorf("stock = %d, want 6", st.stock["p1"])
	}
	if res.GremlinApplied || res.GremlinDelayMS != 0 {
		t.Errorf("disabled gremlin left a mark: %+v", res)
	}
}

func TestServiceDeductReplaySkipsChaos(t *testing.T) {
	st := newMemStore()
	// Uniform draws land strictly below 1.0, so probability 1 always crashes.
	chaos := fault.NewChaos(true, 1.0, nil)
	svc := NewService(st, nil, chaos)

	items := []DeductItem{{ProductID: "p1", Quantity: 2}}

	// First call commits, then crashes.
	_, err := svc.Deduct(context.Background(), "o1", "order-o1", items)
	if !fault.CommittedButUnconfirmed(err) {
		t.Fatalf("err = %v, want committed-but-unconfirmed crash", err)
	}
	if st.stock["p1"] != 8 {
		t.Fatalf("crash rolled back the deduction: stock = %d, want 8", st.stock["p1"])
	}

	// The retry replays the same key: no chaos, no second deduction.
	res, err := svc.Deduct(context.Background(), "o1", "order-o1", items)
	if err != nil {
		t.Fatalf("replay must bypass chaos entirely: %v", err)
	}
	if !res.AlreadyProcessed {
		t.Errorf("result = %+v, want alreadyProcessed", res)
	}
	if st.deducts != 1 || st.stock["p1"] != 8 {
		t.Errorf("replay deducted again: deducts=%d stock=%d", st.deducts, st.stock["p1"])
	}
}

func TestServiceDeductInsufficientStockSkipsChaos(t *testing.T) {
	st := newMemStore()
	svc := NewService(st, nil, fault.NewChaos(true, 1.0, nil))

	_, err := svc.Deduct(context.Background(), "o1", "order-o1",
		[]DeductItem{{ProductID: "p2", Quantity: 99}})
	var ise *InsufficientStockError
	if !errors.As(err, &ise) {
		t.Fatalf("err = %v, want *InsufficientStockError", err)
	}
	if fault.CommittedButUnconfirmed(err) {
		t.Error("a rejected deduction must not be tagged as committed")
	}
}

func TestServiceDeductCarriesGremlinOutcome(t *testing.T) {
	st := newMemStore()
	gremlin := fault.NewGremlin(true, 1, 5*time.Millisecond, nil)
	svc := NewService(st, gremlin, nil)

	res, err := svc.Deduct(context.Background(), "o1", "order-o1",
		[]DeductItem{{ProductID: "p1", Quantity: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if !res.GremlinApplied || res.GremlinDelayMS != 5 {
		t.Errorf("result = %+v, want gremlinApplied with 5ms", res)
	}
}

func TestServiceStatus(t *testing.T) {
	svc := NewService(newMemStore(), fault.NewGremlin(true, 7, time.Second, nil), fault.NewChaos(true, 0.25, nil))
	st := svc.Status(context.Background())
	if !st.Gremlin.Enabled || st.Gremlin.EveryNthRequest != 7 || st.Gremlin.DelayMS != 1000 {
		t.Errorf("gremlin status = %+v", st.Gremlin)
	}
	if !st.Chaos.Enabled || st.Chaos.CrashProbability != 0.25 {
		t.Errorf("chaos status = %+v", st.Chaos)
	}
}
