package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sentinel errors for order operations.
var (
	// ErrNotFound is returned by reads when no order with the given id exists.
	ErrNotFound = fmt.Errorf("order not found")
	// ErrEmptyItems is returned when an order is created without line items.
	ErrEmptyItems = fmt.Errorf("items required")
)

// ForeignKeyError indicates that a referenced status, product, or service
// identifier did not exist at validation time. Field names the offending
// request field; IDs lists every unresolved identifier so the caller can
// report them together. Raised only on writes, before anything is persisted.
type ForeignKeyError struct {
	Field string
	IDs   []uuid.UUID
}

func (e *ForeignKeyError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%s: unknown reference %s", e.Field, strings.Join(ids, ", "))
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID uuid.UUID
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// Order is the persisted entity. StatusID is the only mutable field;
// CreatedAt is stamped once in UTC and never changes. Items are owned by
// the order and written with it as one atomic unit.
type Order struct {
	ID         uuid.UUID
	ResellerID uuid.UUID
	CustomerID uuid.UUID
	StatusID   uuid.UUID
	CreatedAt  time.Time
	Items      []Item
}

// Item is a single persisted order line.
type Item struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ServiceID uuid.UUID
	ProductID uuid.UUID
	Quantity  int
}

// ItemDetail is the computed per-line view: names and prices are joined in
// from the current catalog state at read time.
type ItemDetail struct {
	Item
	ServiceName string
	ProductName string
	UnitCost    decimal.Decimal
	UnitPrice   decimal.Decimal
	TotalCost   decimal.Decimal
	TotalPrice  decimal.Decimal
}

// Summary is the computed order view without the per-item breakdown.
type Summary struct {
	ID         uuid.UUID
	ResellerID uuid.UUID
	CustomerID uuid.UUID
	StatusID   uuid.UUID
	StatusName string
	ItemCount  int
	TotalCost  decimal.Decimal
	TotalPrice decimal.Decimal
	CreatedAt  time.Time
}

// Detail is the full computed order view.
type Detail struct {
	Summary
	Items []ItemDetail
}

// Repository defines persistence operations for orders. Implementations
// must write Create's order and items as a single durable unit, and must
// return rows most-recently-created first from the listing queries, with
// order id as the deterministic tie-break.
type Repository interface {
	// Create persists the order and all its items atomically.
	Create(ctx context.Context, o *Order) error
	// UpdateStatus sets the status of an existing order. It returns false
	// when no order with the given id exists.
	UpdateStatus(ctx context.Context, orderID, statusID uuid.UUID) (bool, error)
	// List returns orders with their items loaded. A non-empty statusName
	// restricts the result to orders whose current status name matches
	// exactly.
	List(ctx context.Context, statusName string) ([]Order, error)
	// GetByID returns a single order with items, or ErrNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// ListCreatedIn returns orders (with items) whose status name matches
	// and whose creation timestamp falls in the given calendar year/month.
	ListCreatedIn(ctx context.Context, statusName string, year int, month time.Month) ([]Order, error)
}
