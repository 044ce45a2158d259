package postgres

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Each service bootstraps only its own tables; the two sides are meant to
// run against independent databases even when co-located in one repo.

func InitOrderSchema(ctx context.Context, db *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id UUID PRIMARY KEY,
			customer_name VARCHAR(255) NOT NULL,
			customer_email VARCHAR(255),
			status VARCHAR(50) NOT NULL DEFAULT 'pending',
			total_cents BIGINT NOT NULL DEFAULT 0,
			idempotency_key VARCHAR(255) UNIQUE,
			inventory_updated BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id UUID PRIMARY KEY,
			order_id UUID NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id UUID NOT NULL,
			product_name VARCHAR(255) NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			unit_price_cents BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
		`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func InitInventorySchema(ctx context.Context, db *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT,
			price_cents BIGINT NOT NULL,
			stock_quantity INTEGER NOT NULL DEFAULT 0 CHECK (stock_quantity >= 0),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS inventory_transactions (
			id UUID PRIMARY KEY,
			product_id UUID REFERENCES products(id),
			order_id UUID,
			idempotency_key VARCHAR(255),
			quantity_change INTEGER NOT NULL,
			transaction_type VARCHAR(50) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		// One audit row per item per key. The unique index is the
		// linearization point for concurrent duplicate deducts; composite so
		// multi-item batches can share one key. NULL keys (restock) pass.
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_idem
			ON inventory_transactions(idempotency_key, product_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_order ON inventory_transactions(order_id)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// SeedProducts loads the demo catalog when the table is empty. Fixed UUIDs
// keep order-side fixtures stable across resets.
func SeedProducts(ctx context.Context, db *pgxpool.Pool) error {
	var n int
	if err := db.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	type seed struct {
		id    string
		name  string
		price int64
		stock int
	}
	items := []seed{
		{"11111111-1111-1111-1111-111111111111", "Gaming Console X", 49999, 100},
		{"22222222-2222-2222-2222-222222222222", "Wireless Controller", 5999, 250},
		{"33333333-3333-3333-3333-333333333333", "VR Headset Pro", 39999, 50},
		{"44444444-4444-4444-4444-444444444444", "4K Gaming Monitor", 69999, 75},
		{"55555555-5555-5555-5555-555555555555", "Gaming Keyboard RGB", 14999, 200},
		{"66666666-6666-6666-6666-666666666666", "Gaming Mouse Elite", 8999, 300},
		{"77777777-7777-7777-7777-777777777777", "Headset 7.1 Surround", 12999, 150},
		{"88888888-8888-8888-8888-888888888888", "Gaming Chair Pro", 29999, 40},
	}
	for _, it := range items {
		_, err := db.Exec(ctx, `
			INSERT INTO products (id, name, description, price_cents, stock_quantity)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING`,
			it.id, it.name, "High quality "+it.name, it.price, it.stock)
		if err != nil {
			return err
		}
	}
	log.Printf("seeded %d demo products", len(items))
	return nil
}
