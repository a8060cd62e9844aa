// Package catalog holds the read-only reference data the order service
// validates and enriches against: statuses, services, and products. The
// catalog itself is owned by an external management process; this service
// only looks it up.
package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is an open-ended order state label ("Created", "Completed", ...).
type Status struct {
	ID   uuid.UUID
	Name string
}

// Service groups products into a sellable service line.
type Service struct {
	ID   uuid.UUID
	Name string
}

// Product is a catalog item with current cost and sale price. Prices are
// live values: views over historical orders always reflect the catalog as
// it is now, not as it was when the order was placed.
type Product struct {
	ID        uuid.UUID
	Name      string
	UnitCost  decimal.Decimal
	UnitPrice decimal.Decimal
	ServiceID uuid.UUID
}

// IDSet is the result of a batch existence check: present keys exist.
type IDSet map[uuid.UUID]struct{}

// Contains reports whether id is in the set.
func (s IDSet) Contains(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// Repository defines read operations against the reference tables. Absence
// is represented by missing keys in the returned sets and maps, never by an
// error; errors mean the store itself failed.
type Repository interface {
	StatusExists(ctx context.Context, id uuid.UUID) (bool, error)
	StatusesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Status, error)
	ProductsExisting(ctx context.Context, ids []uuid.UUID) (IDSet, error)
	ServicesExisting(ctx context.Context, ids []uuid.UUID) (IDSet, error)
	ProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Product, error)
	ServicesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Service, error)
}
