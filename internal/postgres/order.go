package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/reseller-orders/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, reseller_id, customer_id, status_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	insertItemSQL = `INSERT INTO order_items (id, order_id, service_id, product_id, quantity)
		VALUES ($1, $2, $3, $4, $5)`

	updateStatusSQL = `UPDATE orders SET status_id = $1 WHERE id = $2`

	listOrdersSQL = `SELECT id, reseller_id, customer_id, status_id, created_at
		FROM orders ORDER BY created_at DESC, id`

	listOrdersByStatusSQL = `SELECT o.id, o.reseller_id, o.customer_id, o.status_id, o.created_at
		FROM orders o
		JOIN statuses s ON s.id = o.status_id
		WHERE s.name = $1
		ORDER BY o.created_at DESC, o.id`

	getOrderSQL = `SELECT id, reseller_id, customer_id, status_id, created_at
		FROM orders WHERE id = $1`

	listOrdersInMonthSQL = `SELECT o.id, o.reseller_id, o.customer_id, o.status_id, o.created_at
		FROM orders o
		JOIN statuses s ON s.id = o.status_id
		WHERE s.name = $1
		  AND EXTRACT(YEAR FROM o.created_at AT TIME ZONE 'UTC') = $2
		  AND EXTRACT(MONTH FROM o.created_at AT TIME ZONE 'UTC') = $3
		ORDER BY o.created_at DESC, o.id`

	itemsForOrdersSQL = `SELECT id, order_id, service_id, product_id, quantity
		FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order row and all its item rows in one transaction.
// A concurrent reader either sees the whole order or nothing.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(ctx, insertOrderSQL,
		o.ID, o.ResellerID, o.CustomerID, o.StatusID, o.CreatedAt,
	); err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	batch := &pgx.Batch{}
	for _, item := range o.Items {
		batch.Queue(insertItemSQL, item.ID, item.OrderID, item.ServiceID, item.ProductID, item.Quantity)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting items for order %q: %w", o.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// UpdateStatus sets the status of an order. It returns false when no row
// matched the id.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID, statusID uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, updateStatusSQL, statusID, orderID)
	if err != nil {
		return false, fmt.Errorf("updating status of order %q: %w", orderID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// List returns orders newest first, optionally filtered by the exact current
// status name, with items attached.
func (r *OrderRepository) List(ctx context.Context, statusName string) ([]order.Order, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if statusName == "" {
		rows, err = r.pool.Query(ctx, listOrdersSQL)
	} else {
		rows, err = r.pool.Query(ctx, listOrdersByStatusSQL, statusName)
	}
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}
	return r.attachItems(ctx, orders)
}

// GetByID returns a single order with its items, or order.ErrNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	withItems, err := r.attachItems(ctx, []order.Order{o})
	if err != nil {
		return nil, err
	}
	return &withItems[0], nil
}

// ListCreatedIn returns orders of the given status name created in the given
// calendar year and month (UTC components of the stored timestamp).
func (r *OrderRepository) ListCreatedIn(ctx context.Context, statusName string, year int, month time.Month) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersInMonthSQL, statusName, year, int(month))
	if err != nil {
		return nil, fmt.Errorf("listing orders for %d-%02d: %w", year, month, err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}
	return r.attachItems(ctx, orders)
}

// attachItems loads the items of every order in one query and distributes
// them onto their owners.
func (r *OrderRepository) attachItems(ctx context.Context, orders []order.Order) ([]order.Order, error) {
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]uuid.UUID, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.pool.Query(ctx, itemsForOrdersSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}

	var item order.Item
	if _, err := pgx.ForEachRow(rows,
		[]any{&item.ID, &item.OrderID, &item.ServiceID, &item.ProductID, &item.Quantity},
		func() error {
			i := index[item.OrderID]
			orders[i].Items = append(orders[i].Items, item)
			return nil
		},
	); err != nil {
		return nil, fmt.Errorf("scanning order items: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.ResellerID, &o.CustomerID, &o.StatusID, &o.CreatedAt)
	return o, err
}
