package ordersdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"checkout/internal/orders"
)

// PostgresOrderStore persists orders and their line items in Postgres.
type PostgresOrderStore struct {
	db *sql.DB
}

// NewPostgresOrderStore constructs an OrderStore backed by Postgres.
func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

// NewPostgresOrderStoreWithSchema initializes the schema then returns the store.
func NewPostgresOrderStoreWithSchema(ctx context.Context, db *sql.DB) (*PostgresOrderStore, error) {
	store := NewPostgresOrderStore(db)
	if err := store.InitSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// InitSchema creates order tables if they do not exist.
func (s *PostgresOrderStore) InitSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			customer_email TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			total_amount NUMERIC(18, 4) NOT NULL,
			status TEXT NOT NULL,
			payment_reference TEXT,
			version BIGINT NOT NULL DEFAULT 1,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			order_id TEXT NOT NULL,
			position INT NOT NULL,
			product_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			unit_price NUMERIC(18, 4) NOT NULL,
			quantity INT NOT NULL,
			line_total NUMERIC(18, 4) NOT NULL,
			PRIMARY KEY (order_id, position),
			FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// GetByID loads an order and its items, returning (nil, nil) when absent.
func (s *PostgresOrderStore) GetByID(ctx context.Context, id string) (*orders.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, customer_email, customer_name, total_amount, status, payment_reference, version, created_at, updated_at
		FROM orders
		WHERE id = $1`,
		id,
	)

	var (
		order     orders.Order
		status    string
		reference sql.NullString
	)
	err := row.Scan(&order.ID, &order.CustomerEmail, &order.CustomerName, &order.TotalAmount,
		&status, &reference, &order.Version, &order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if order.Status, err = orders.ParseStatus(status); err != nil {
		return nil, err
	}
	order.PaymentReference = reference.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, product_name, unit_price, quantity, line_total
		FROM order_items
		WHERE order_id = $1
		ORDER BY position`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item orders.LineItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.UnitPrice, &item.Quantity, &item.LineTotal); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &order, nil
}

// Add inserts the order and its items in one transaction.
func (s *PostgresOrderStore) Add(ctx context.Context, order *orders.Order) (_ *orders.Order, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_email, customer_name, total_amount, status, payment_reference, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 1, $7, $8)`,
		order.ID, order.CustomerEmail, order.CustomerName, order.TotalAmount, string(order.Status),
		nullable(order.PaymentReference), order.CreatedAt, order.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for i, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, product_name, unit_price, quantity, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			order.ID, i, item.ProductID, item.ProductName, item.UnitPrice, item.Quantity, item.LineTotal,
		); err != nil {
			return nil, fmt.Errorf("insert order item %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	stored := order.Clone()
	stored.Version = 1
	return stored, nil
}

// Update writes the mutable order fields if the stored version still matches.
func (s *PostgresOrderStore) Update(ctx context.Context, order *orders.Order) (*orders.Order, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, payment_reference = $3, updated_at = $4, version = version + 1
		WHERE id = $1 AND version = $5`,
		order.ID, string(order.Status), nullable(order.PaymentReference), order.UpdatedAt, order.Version,
	)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, orders.ErrConcurrentUpdate
	}

	stored := order.Clone()
	stored.Version = order.Version + 1
	return stored, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
