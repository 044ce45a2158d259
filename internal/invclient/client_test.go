package invclient

import (
	"context"
	"testing"
	"time"

	"github.com/warehouse-sim/shipping-coordinator/internal/inventory"
)

// scriptedCaller replays a fixed sequence of outcomes, one per attempt.
// The last step repeats if the client keeps retrying past the script.
type scriptedCaller struct {
	steps []func() (*inventory.DeductResult, error)
	calls int
	keys  []string
}

func (s *scriptedCaller) DeductInventory(_ context.Context, _, key string, _ []inventory.DeductItem) (*inventory.DeductResult, error) {
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	s.keys = append(s.keys, key)
	return s.steps[i]()
}

func (s *scriptedCaller) CheckAvailability(_ context.Context, _ []inventory.DeductItem) (*inventory.Availability, error) {
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	res, err := s.steps[i]()
	if err != nil {
		return nil, err
	}
	_ = res
	return &inventory.Availability{Available: true}, nil
}

func (s *scriptedCaller) TransactionsByOrder(_ context.Context, _ string) ([]inventory.Transaction, error) {
	s.calls++
	return nil, nil
}

func ok() func() (*inventory.DeductResult, error) {
	return func() (*inventory.DeductResult, error) {
		return &inventory.DeductResult{OrderID: "o1"}, nil
	}
}

func fail(err error) func() (*inventory.DeductResult, error) {
	return func() (*inventory.DeductResult, error) { return nil, err }
}

func fastCfg(maxRetries int) Config {
	return Config{
		Timeout:      time.Second,
		MaxRetries:   maxRetries,
		BaseDelay:    time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		ThresholdPct: 50,
		Volume:       5,
		CoolDown:     time.Minute,
	}
}

func TestDeductSuccessFirstAttempt(t *testing.T) {
	caller := &scriptedCaller{steps: []func() (*inventory.DeductResult, error){ok()}}
	c := New(caller, fastCfg(3))

	res := c.Deduct(context.Background(), "o1", []inventory.DeductItem{{ProductID: "p1", Quantity: 1}})
	if !res.Success || res.AlreadyProcessed {
		t.Fatalf("result = %+v, want plain success", res)
	}
	if caller.calls != 1 {
		t.Errorf("attempts = %d, want 1", caller.calls)
	}
	if caller.keys[0] != "order-o1" {
		t.Errorf("idempotency key = %q, want order-o1", caller.keys[0])
	}
}

func TestDeductRetriesTimeoutsToCap(t *testing.T) {
	caller := &scriptedCaller{steps: []func() (*inventory.DeductResult, error){
		fail(&CallError{TimedOut: true, Msg: "deadline exceeded"}),
	}}
	c := New(caller, fastCfg(3))

	res := c.Deduct(context.Background(), "o1", nil)
	if res.Success {
		t.Fatal("exhausted retries reported success")
	}
	if !res.TimedOut || !res.Retryable {
		t.Errorf("result = %+v, want timedOut+retryable", res)
	}
	if caller.calls != 4 {
		t.Errorf("attempts = %d, want 4 (1 + 3 retries)", caller.calls)
	}
	if res.Message == "" {
		t.Error("timeout result missing user-facing message")
	}
}

func TestDeductRecoversAfterTransientFailures(t *testing.T) {
	caller := &scriptedCaller{steps: []func() (*inventory.DeductResult, error){
		fail(&CallError{Status: 503, Msg: "unavailable"}),
		fail(&CallError{Status: 0, Msg: "connection refused"}),
		ok(),
	}}
	c := New(caller, fastCfg(3))

	res := c.Deduct(context.Background(), "o1", nil)
	if !res.Success {
		t.Fatalf("result = %+v, want success on third attempt", res)
	}
	if caller.calls != 3 {
		t.Errorf("attempts = %d, want 3", caller.calls)
	}
	if st := c.BreakerStatus(); st.Failures != 0 {
		t.Errorf("a deduct that eventually succeeded fed the breaker a failure: %+v", st)
	}
}

func TestDeductBusinessRejectionNeverRetried(t *testing.T) {
	caller := &scriptedCaller{steps: []func() (*inventory.DeductResult, error){
		fail(&CallError{Status: 400, Msg: "Insufficient stock for Widget"}),
	}}
	c := New(caller, fastCfg(3))

	res := c.Deduct(context.Background(), "o1", nil)
	if res.Success || res.Retryable {
		t.Fatalf("result = %+v, want definitive rejection", res)
	}
	if caller.calls != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on a definitive answer)", caller.calls)
	}
	if res.Message != "Insufficient stock for Widget" {
		t.Errorf("message = %q", res.Message)
	}
	// A service that answers is healthy; the rejection must not feed the breaker.
	if st := c.BreakerStatus(); st.Failures != 0 {
		t.Errorf("business rejection counted as breaker failure: %+v", st)
	}
}

func TestDeductAlreadyProcessedIsSuccess(t *testing.T) {
	caller := &scriptedCaller{steps: []func() (*inventory.DeductResult, error){
		func() (*inventory.DeductResult, error) {
			return &inventory.DeductResult{OrderID: "o1", AlreadyProcessed: true}, nil
		},
	}}
	c := New(caller, fastCfg(3))

	res := c.Deduct(context.Background(), "o1", nil)
	if !res.Success || !res.AlreadyProcessed {
		t.Fatalf("result = %+v, want success+alreadyProcessed", res)
	}
	if caller.calls != 1 {
		t.Errorf("attempts = %d, want 1", caller.calls)
	}
}

func TestDeductCircuitOpenFailsFast(t *testing.T) {
	caller := &scriptedCaller{steps: []func() (*inventory.DeductResult, error){
		fail(&CallError{TimedOut: true}),
	}}
	cfg := fastCfg(0)
	cfg.Volume = 2
	c := New(caller, cfg)

	c.Deduct(context.Background(), "o1", nil)
	c.Deduct(context.Background(), "o2", nil)
	before := caller.calls

	res := c.Deduct(context.Background(), "o3", nil)
	if !res.CircuitOpen || !res.Retryable {
		t.Fatalf("result = %+v, want circuitOpen+retryable", res)
	}
	if caller.calls != before {
		t.Errorf("open circuit still reached the service (%d -> %d calls)", before, caller.calls)
	}
	if st := c.BreakerStatus(); st.State != "OPEN" {
		t.Errorf("breaker state = %q, want OPEN", st.State)
	}
}

func TestDeductCancelledContextStopsRetrying(t *testing.T) {
	caller := &scriptedCaller{steps: []func() (*inventory.DeductResult, error){
		fail(&CallError{Status: 500, Msg: "boom"}),
	}}
	cfg := fastCfg(5)
	cfg.BaseDelay = 50 * time.Millisecond
	cfg.MaxDelay = 100 * time.Millisecond
	c := New(caller, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	res := c.Deduct(ctx, "o1", nil)
	if res.Success {
		t.Fatal("cancelled deduct reported success")
	}
	if !res.Retryable {
		t.Errorf("result = %+v, want retryable (caller may retry with a fresh context)", res)
	}
	if caller.calls >= 6 {
		t.Errorf("attempts = %d, retries should stop once the context dies", caller.calls)
	}
}

func TestSetTimeoutBounds(t *testing.T) {
	c := New(&scriptedCaller{steps: []func() (*inventory.DeductResult, error){ok()}}, fastCfg(0))

	if err := c.SetTimeout(50 * time.Millisecond); err == nil {
		t.Error("accepted timeout below the minimum")
	}
	if err := c.SetTimeout(61 * time.Second); err == nil {
		t.Error("accepted timeout above the maximum")
	}
	if err := c.SetTimeout(5 * time.Second); err != nil {
		t.Fatalf("rejected valid timeout: %v", err)
	}
	if got := c.Timeout(); got != 5*time.Second {
		t.Errorf("Timeout() = %s, want 5s", got)
	}
}

func TestCheckAvailabilityRetriesOutsideBreaker(t *testing.T) {
	caller := &scriptedCaller{steps: []func() (*inventory.DeductResult, error){
		fail(&CallError{Status: 503}),
		ok(),
	}}
	c := New(caller, fastCfg(2))

	av, err := c.CheckAvailability(context.Background(), []inventory.DeductItem{{ProductID: "p1", Quantity: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if av == nil || !av.Available {
		t.Errorf("availability = %+v", av)
	}
	if caller.calls != 2 {
		t.Errorf("attempts = %d, want 2", caller.calls)
	}
	if st := c.BreakerStatus(); st.Requests != 0 {
		t.Errorf("availability probe fed the breaker: %+v", st)
	}
}
