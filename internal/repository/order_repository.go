package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lumapay/bnpl-gateway/internal/interfaces"
	"github.com/lumapay/bnpl-gateway/internal/models"
)

var ErrOrderNotFound = interfaces.ErrOrderNotFound

// Statuses past which no reconciliation decision may move an order again.
// The guard is enforced in SQL at mutation time, not only in memory, so two
// concurrent reconciliations cannot both apply.
var settledGuard = []models.OrderStatus{
	models.OrderProcessing,
	models.OrderCompleted,
	models.OrderOnHold,
}

type OrderRepository struct {
	db   *sql.DB
	cart interfaces.CartStore
}

func NewOrderRepository(db *sql.DB, cart interfaces.CartStore) *OrderRepository {
	return &OrderRepository{db: db, cart: cart}
}

// InitDB creates the order tables. SQL stays portable between Postgres and
// the in-memory SQLite used by tests.
func (r *OrderRepository) InitDB() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGINT PRIMARY KEY,
			order_key TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			total NUMERIC(20,4) NOT NULL,
			currency TEXT NOT NULL,
			customer_id TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			shipping_total NUMERIC(20,4) NOT NULL DEFAULT 0,
			transaction_ref TEXT NOT NULL DEFAULT '',
			transaction_id TEXT NOT NULL DEFAULT '',
			stock_reduced BOOLEAN NOT NULL DEFAULT FALSE,
			payment_completed_at TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS order_notes (
			order_id BIGINT NOT NULL,
			reference TEXT NOT NULL,
			note_key TEXT NOT NULL,
			kind TEXT NOT NULL,
			body TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (order_id, reference, note_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
	}

	for _, query := range queries {
		if _, err := r.db.Exec(query); err != nil {
			return err
		}
	}

	return nil
}

// Create inserts an order row. Orders normally arrive from the storefront;
// this is used by seeding and tests.
func (r *OrderRepository) Create(ctx context.Context, o *models.OrderSnapshot) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, order_key, status, total, currency, customer_id, email, first_name, last_name, phone, shipping_total, transaction_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, o.ID, o.OrderKey, o.Status, o.Total, o.Currency, o.CustomerID, o.Email, o.FirstName, o.LastName, o.Phone, o.ShippingTotal, o.TransactionRef)
	return err
}

func (r *OrderRepository) Get(ctx context.Context, orderID int64) (*models.OrderSnapshot, error) {
	var o models.OrderSnapshot
	err := r.db.QueryRowContext(ctx, `
		SELECT id, order_key, status, total, currency, customer_id, email, first_name, last_name, phone, shipping_total, transaction_ref
		FROM orders WHERE id = $1
	`, orderID).Scan(&o.ID, &o.OrderKey, &o.Status, &o.Total, &o.Currency, &o.CustomerID, &o.Email, &o.FirstName, &o.LastName, &o.Phone, &o.ShippingTotal, &o.TransactionRef)
	if err == sql.ErrNoRows {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) SetTransactionRef(ctx context.Context, orderID int64, ref string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET transaction_ref = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2
	`, ref, orderID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ApplyDecision writes a reconciliation decision in one transaction. The
// status UPDATE carries a NOT IN guard over the settled statuses; zero rows
// affected means another path got there first and the whole decision is
// dropped (Applied=false), leaving notes, stock, and cart untouched.
func (r *OrderRepository) ApplyDecision(ctx context.Context, orderID int64, ref string, d models.OrderDecision) (models.ApplyResult, error) {
	if d.NewStatus == "" {
		return models.ApplyResult{}, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.ApplyResult{}, err
	}
	defer tx.Rollback()

	var prev models.OrderStatus
	var customerID string
	err = tx.QueryRowContext(ctx,
		`SELECT status, customer_id FROM orders WHERE id = $1`, orderID,
	).Scan(&prev, &customerID)
	if err == sql.ErrNoRows {
		return models.ApplyResult{}, ErrOrderNotFound
	}
	if err != nil {
		return models.ApplyResult{}, err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND status NOT IN ($3, $4, $5)
	`, d.NewStatus, orderID, settledGuard[0], settledGuard[1], settledGuard[2])
	if err != nil {
		return models.ApplyResult{}, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return models.ApplyResult{}, err
	}
	if rows == 0 {
		return models.ApplyResult{Applied: false, PreviousStatus: prev, NewStatus: prev}, tx.Commit()
	}

	for _, note := range d.Notes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_notes (order_id, reference, note_key, kind, body)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (order_id, reference, note_key) DO NOTHING
		`, orderID, ref, note.Key, note.Kind, note.Body); err != nil {
			return models.ApplyResult{}, err
		}
	}

	if d.ReduceStock {
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET stock_reduced = TRUE WHERE id = $1 AND stock_reduced = FALSE
		`, orderID); err != nil {
			return models.ApplyResult{}, err
		}
	}

	if d.SetTransactionRef || d.MarkPaymentComplete {
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET transaction_id = $1 WHERE id = $2
		`, ref, orderID); err != nil {
			return models.ApplyResult{}, err
		}
	}

	if d.MarkPaymentComplete {
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET payment_completed_at = CURRENT_TIMESTAMP
			WHERE id = $1 AND payment_completed_at IS NULL
		`, orderID); err != nil {
			return models.ApplyResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.ApplyResult{}, err
	}

	if d.EmptyCart && r.cart != nil && customerID != "" {
		if err := r.cart.EmptyCart(ctx, customerID); err != nil {
			// The order is already settled; a stale cart is not worth failing
			// the reconciliation over.
			return models.ApplyResult{Applied: true, PreviousStatus: prev, NewStatus: d.NewStatus},
				fmt.Errorf("empty cart for customer %s: %w", customerID, err)
		}
	}

	return models.ApplyResult{Applied: true, PreviousStatus: prev, NewStatus: d.NewStatus}, nil
}

// Notes returns the reconciliation notes recorded for an order.
func (r *OrderRepository) Notes(ctx context.Context, orderID int64) ([]models.OrderNote, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT note_key, kind, body FROM order_notes WHERE order_id = $1 ORDER BY note_key
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []models.OrderNote
	for rows.Next() {
		var n models.OrderNote
		if err := rows.Scan(&n.Key, &n.Kind, &n.Body); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}
