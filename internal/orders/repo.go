package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const uniqueViolation = "23505"

const orderCols = `id, customer_name, COALESCE(customer_email, ''), status, total_cents,
	COALESCE(idempotency_key, ''), inventory_updated, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.CustomerName, &o.CustomerEmail, &o.Status, &o.TotalCents,
		&o.IdempotencyKey, &o.InventoryUpdated, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder persists the order and its items as one atomic unit.
func (r *Repo) CreateOrder(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var key any
	if o.IdempotencyKey != "" {
		key = o.IdempotencyKey
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, customer_name, customer_email, status, total_cents, idempotency_key)
		VALUES ($1, $2, $3, 'pending', $4, $5)`,
		o.ID, o.CustomerName, nilIfEmpty(o.CustomerEmail), o.TotalCents, key)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return errIdemConflict
		}
		return err
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price_cents)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			it.ID, o.ID, it.ProductID, it.ProductName, it.Quantity, it.UnitPriceCents); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// FindByIdempotencyKey returns (nil, nil) when no order carries the key.
func (r *Repo) FindByIdempotencyKey(ctx context.Context, key string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE idempotency_key = $1`, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	o.Items, err = r.itemsFor(ctx, o.ID)
	return o, err
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx,
		`SELECT `+orderCols+` FROM orders WHERE id = $1`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}
	if err != nil {
		return nil, err
	}
	o.Items, err = r.itemsFor(ctx, o.ID)
	return o, err
}

func (r *Repo) itemsFor(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price_cents
		FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
			&it.Quantity, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repo) ListOrders(ctx context.Context, limit, offset int) ([]Order, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderCols+` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

// ListUnshipped returns orders that may be stuck between deduction and the
// shipped mark: everything still pending or confirmed.
func (r *Repo) ListUnshipped(ctx context.Context) ([]Order, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderCols+` FROM orders WHERE status = ANY($1) ORDER BY created_at`,
		shippableFrom())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOrders(rows)
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// MarkInventoryUpdated is its own transaction, deliberately separate from
// MarkShipped: a crash between the two leaves the exact signature the
// reconciler repairs.
func (r *Repo) MarkInventoryUpdated(ctx context.Context, orderID string) error {
	ct, err := r.DB.Exec(ctx,
		`UPDATE orders SET inventory_updated = TRUE, updated_at = now() WHERE id = $1`, orderID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, orderID)
	}
	return nil
}

func (r *Repo) MarkShipped(ctx context.Context, orderID string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status = 'shipped', updated_at = now()
		WHERE id = $1 AND status = ANY($2)`, orderID, shippableFrom())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		// Either unknown or in a state the machine forbids shipping from.
		var status Status
		err := r.DB.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrNotFound, orderID)
		}
		if err != nil {
			return err
		}
		if status == StatusShipped {
			return nil // already there, idempotent
		}
		return fmt.Errorf("cannot ship order %s from status %s", orderID, status)
	}
	return nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
