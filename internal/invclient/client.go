package invclient

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/warehouse-sim/shipping-coordinator/internal/inventory"
)

// Caller is one attempt against the inventory service, with no resilience of
// its own. The HTTP implementation lives in http.go; tests script fakes.
// An "already processed" reply comes back as a successful DeductResult with
// AlreadyProcessed set, never as an error.
type Caller interface {
	DeductInventory(ctx context.Context, orderID, idempotencyKey string, items []inventory.DeductItem) (*inventory.DeductResult, error)
	CheckAvailability(ctx context.Context, items []inventory.DeductItem) (*inventory.Availability, error)
	TransactionsByOrder(ctx context.Context, orderID string) ([]inventory.Transaction, error)
}

const (
	MinTimeout = 100 * time.Millisecond
	MaxTimeout = 60 * time.Second
)

type Config struct {
	Timeout      time.Duration
	MaxRetries   int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	ThresholdPct int
	Volume       int
	CoolDown     time.Duration
}

// Client wraps a Caller with a per-attempt timeout, retry with backoff, and
// a circuit breaker. The timeout fires client-side only: an attempt the
// client gave up on may still commit inside the ledger.
type Client struct {
	caller     Caller
	breaker    *Breaker
	timeoutNS  atomic.Int64
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

func New(caller Caller, cfg Config) *Client {
	c := &Client{
		caller:     caller,
		breaker:    NewBreaker(cfg.ThresholdPct, cfg.Volume, cfg.CoolDown),
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.BaseDelay,
		maxDelay:   cfg.MaxDelay,
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	if c.baseDelay <= 0 {
		c.baseDelay = 100 * time.Millisecond
	}
	if c.maxDelay < c.baseDelay {
		c.maxDelay = 2 * time.Second
	}
	if err := c.SetTimeout(cfg.Timeout); err != nil {
		c.timeoutNS.Store(int64(3 * time.Second))
	}
	return c
}

// SetTimeout changes the per-attempt timeout at runtime, bounded to a sane
// range.
func (c *Client) SetTimeout(d time.Duration) error {
	if d < MinTimeout || d > MaxTimeout {
		return fmt.Errorf("timeout %s out of range [%s, %s]", d, MinTimeout, MaxTimeout)
	}
	c.timeoutNS.Store(int64(d))
	return nil
}

func (c *Client) Timeout() time.Duration {
	return time.Duration(c.timeoutNS.Load())
}

func (c *Client) BreakerStatus() BreakerStatus { return c.breaker.Status() }

// Deduct runs the idempotent deduction with the full resilience stack. The
// breaker sees one verdict per Deduct call, not per attempt; a definitive
// business rejection counts as a healthy reply, only timeouts and upstream
// failures feed the error ratio.
func (c *Client) Deduct(ctx context.Context, orderID string, items []inventory.DeductItem) Result {
	if !c.breaker.Allow() {
		log.Printf("invclient: circuit open, rejecting deduct for order %s", orderID)
		return Result{
			CircuitOpen: true,
			Retryable:   true,
			Message:     "Inventory service is temporarily unavailable. Please try again later.",
		}
	}

	key := "order-" + orderID

	var lastErr *CallError
	for attempt := 0; ; attempt++ {
		res, err := c.callOnce(ctx, orderID, key, items)
		if err == nil {
			c.breaker.Record(true)
			return Result{
				Success:          true,
				AlreadyProcessed: res.AlreadyProcessed,
				Data:             res,
			}
		}

		lastErr = classify(err)
		if !retryable(lastErr) {
			// Definitive rejection: the service answered, the answer is no.
			c.breaker.Record(true)
			return Result{
				Message: lastErr.Msg,
				Err:     lastErr,
			}
		}
		if attempt >= c.maxRetries {
			break
		}

		delay := backoffDelay(attempt, c.baseDelay, c.maxDelay)
		log.Printf("invclient: retrying deduct for order %s in %s (attempt %d/%d)",
			orderID, delay, attempt+2, c.maxRetries+1)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			c.breaker.Record(false)
			return Result{
				TimedOut:  true,
				Retryable: true,
				Message:   "Inventory service did not respond in time. Your order may still be processed.",
				Err:       ctx.Err(),
			}
		}
	}

	c.breaker.Record(false)
	if lastErr.TimedOut {
		log.Printf("invclient: timeout after %s for order %s", c.Timeout(), orderID)
		return Result{
			TimedOut:  true,
			Retryable: true,
			Message:   "Inventory service did not respond in time. Your order may still be processed.",
			Err:       lastErr,
		}
	}
	return Result{
		Retryable: true,
		Message:   "Inventory service is currently unavailable. Please try again.",
		Err:       lastErr,
	}
}

func (c *Client) callOnce(ctx context.Context, orderID, key string, items []inventory.DeductItem) (*inventory.DeductResult, error) {
	cctx, cancel := context.WithTimeout(ctx, c.Timeout())
	defer cancel()
	return c.caller.DeductInventory(cctx, orderID, key, items)
}

// CheckAvailability retries like Deduct but stays outside the breaker: a
// read probe should still work while deducts are being shed.
func (c *Client) CheckAvailability(ctx context.Context, items []inventory.DeductItem) (*inventory.Availability, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, c.Timeout())
		av, err := c.caller.CheckAvailability(cctx, items)
		cancel()
		if err == nil {
			return av, nil
		}
		lastErr = err
		if !retryable(classify(err)) || attempt == c.maxRetries {
			break
		}
		select {
		case <-time.After(backoffDelay(attempt, c.baseDelay, c.maxDelay)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// TransactionsByOrder is the reconciliation read. Absence of transactions is
// a normal answer, not an error.
func (c *Client) TransactionsByOrder(ctx context.Context, orderID string) ([]inventory.Transaction, error) {
	cctx, cancel := context.WithTimeout(ctx, c.Timeout())
	defer cancel()
	return c.caller.TransactionsByOrder(cctx, orderID)
}
