package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const uniqueViolation = "23505"

// Deduct applies the whole batch or nothing, in one transaction. Dedup runs
// query-first; the unique index on (idempotency_key, product_id) is the
// backstop when two identical requests race past the query.
func (r *Repo) Deduct(ctx context.Context, orderID, idempotencyKey string, items []DeductItem) (*DeductResult, error) {
	if res, ok, err := r.findProcessed(ctx, orderID, idempotencyKey); err != nil {
		return nil, err
	} else if ok {
		return res, nil
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Stable lock order keeps concurrent multi-item batches from deadlocking.
	sorted := make([]DeductItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	var results []ItemResult
	var firstTxID string
	for _, it := range sorted {
		var name string
		var stock int
		err := tx.QueryRow(ctx,
			`SELECT name, stock_quantity FROM products WHERE id=$1 FOR UPDATE`,
			it.ProductID).Scan(&name, &stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, it.ProductID)
		}
		if err != nil {
			return nil, err
		}
		if stock < it.Quantity {
			// A concurrent duplicate may have committed between the dedup
			// check and this lock, and its deduction may be what ran the
			// stock short. Its result wins over a definitive rejection the
			// caller would never retry.
			if res, ok, qerr := r.findProcessed(ctx, orderID, idempotencyKey); qerr == nil && ok {
				return res, nil
			}
			return nil, &InsufficientStockError{
				ProductID: it.ProductID, ProductName: name,
				Available: stock, Requested: it.Quantity,
			}
		}

		if _, err := tx.Exec(ctx,
			`UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = now() WHERE id=$1`,
			it.ProductID, it.Quantity); err != nil {
			return nil, err
		}

		txID := uuid.NewString()
		if firstTxID == "" {
			firstTxID = txID
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO inventory_transactions (id, product_id, order_id, idempotency_key, quantity_change, transaction_type)
			VALUES ($1, $2, $3, $4, $5, 'deduct')`,
			txID, it.ProductID, orderID, idempotencyKey, -it.Quantity)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				// Lost the insert race to a concurrent duplicate. Its commit is
				// the one that counts; drop ours and report theirs.
				_ = tx.Rollback(ctx)
				res, ok, qerr := r.findProcessed(ctx, orderID, idempotencyKey)
				if qerr != nil {
					return nil, qerr
				}
				if ok {
					return res, nil
				}
			}
			return nil, err
		}

		results = append(results, ItemResult{
			ProductID:     it.ProductID,
			ProductName:   name,
			PreviousStock: stock,
			NewStock:      stock - it.Quantity,
			Deducted:      it.Quantity,
		})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &DeductResult{OrderID: orderID, TransactionID: firstTxID, Items: results}, nil
}

func (r *Repo) findProcessed(ctx context.Context, orderID, idempotencyKey string) (*DeductResult, bool, error) {
	var id string
	err := r.DB.QueryRow(ctx,
		`SELECT id FROM inventory_transactions WHERE idempotency_key=$1 LIMIT 1`,
		idempotencyKey).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &DeductResult{OrderID: orderID, AlreadyProcessed: true, TransactionID: id}, true, nil
}

// CheckAvailability is a plain read, no locks, no side effects.
func (r *Repo) CheckAvailability(ctx context.Context, items []DeductItem) (*Availability, error) {
	out := &Availability{Available: true}
	for _, it := range items {
		var name string
		var stock int
		err := r.DB.QueryRow(ctx,
			`SELECT name, stock_quantity FROM products WHERE id=$1`,
			it.ProductID).Scan(&name, &stock)
		if errors.Is(err, pgx.ErrNoRows) {
			out.Available = false
			out.Items = append(out.Items, AvailabilityItem{
				ProductID: it.ProductID, Requested: it.Quantity, Reason: "product not found",
			})
			continue
		}
		if err != nil {
			return nil, err
		}
		avail := stock >= it.Quantity
		if !avail {
			out.Available = false
		}
		out.Items = append(out.Items, AvailabilityItem{
			ProductID: it.ProductID, ProductName: name,
			Requested: it.Quantity, InStock: stock, Available: avail,
		})
	}
	return out, nil
}

func (r *Repo) AddStock(ctx context.Context, productID string, quantity int) (*Product, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var p Product
	err = tx.QueryRow(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $1, updated_at = now()
		WHERE id = $2
		RETURNING id, name, COALESCE(description, ''), price_cents, stock_quantity, created_at, updated_at`,
		quantity, productID).Scan(
		&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO inventory_transactions (id, product_id, quantity_change, transaction_type)
		VALUES ($1, $2, $3, 'restock')`,
		uuid.NewString(), productID, quantity); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) TransactionsByOrder(ctx context.Context, orderID string) ([]Transaction, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, product_id, COALESCE(order_id::text, ''), COALESCE(idempotency_key, ''),
		       quantity_change, transaction_type, created_at
		FROM inventory_transactions
		WHERE order_id = $1
		ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.ProductID, &t.OrderID, &t.IdempotencyKey,
			&t.QuantityChange, &t.Type, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), price_cents, stock_quantity, created_at, updated_at
		FROM products WHERE id = $1`, productID).Scan(
		&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.StockQuantity, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, COALESCE(description, ''), price_cents, stock_quantity, created_at, updated_at
		FROM products ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.PriceCents, &p.StockQuantity,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
