package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/reseller-orders/internal/domain/catalog"
)

const (
	statusExistsSQL = `SELECT EXISTS (SELECT 1 FROM statuses WHERE id = $1)`

	statusesByIDsSQL = `SELECT id, name FROM statuses WHERE id = ANY($1)`

	productsExistingSQL = `SELECT id FROM products WHERE id = ANY($1)`

	servicesExistingSQL = `SELECT id FROM services WHERE id = ANY($1)`

	productsByIDsSQL = `SELECT id, name, unit_cost, unit_price, service_id
		FROM products WHERE id = ANY($1)`

	servicesByIDsSQL = `SELECT id, name FROM services WHERE id = ANY($1)`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// StatusExists reports whether a status row with the given id exists.
func (r *CatalogRepository) StatusExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, statusExistsSQL, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking status %q: %w", id, err)
	}
	return exists, nil
}

// StatusesByIDs returns the statuses matching any of the given ids, keyed by id.
func (r *CatalogRepository) StatusesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Status, error) {
	rows, err := r.pool.Query(ctx, statusesByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting statuses by ids: %w", err)
	}

	out := make(map[uuid.UUID]catalog.Status, len(ids))
	var st catalog.Status
	if _, err := pgx.ForEachRow(rows, []any{&st.ID, &st.Name}, func() error {
		out[st.ID] = st
		return nil
	}); err != nil {
		return nil, fmt.Errorf("scanning statuses: %w", err)
	}
	return out, nil
}

// ProductsExisting returns the subset of ids that reference existing products.
func (r *CatalogRepository) ProductsExisting(ctx context.Context, ids []uuid.UUID) (catalog.IDSet, error) {
	return r.existing(ctx, productsExistingSQL, ids, "products")
}

// ServicesExisting returns the subset of ids that reference existing services.
func (r *CatalogRepository) ServicesExisting(ctx context.Context, ids []uuid.UUID) (catalog.IDSet, error) {
	return r.existing(ctx, servicesExistingSQL, ids, "services")
}

func (r *CatalogRepository) existing(ctx context.Context, query string, ids []uuid.UUID, table string) (catalog.IDSet, error) {
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("checking existing %s: %w", table, err)
	}

	set := make(catalog.IDSet, len(ids))
	var id uuid.UUID
	if _, err := pgx.ForEachRow(rows, []any{&id}, func() error {
		set[id] = struct{}{}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("scanning existing %s: %w", table, err)
	}
	return set, nil
}

// ProductsByIDs returns the products matching any of the given ids, keyed by id.
func (r *CatalogRepository) ProductsByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, productsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("scanning products: %w", err)
	}

	out := make(map[uuid.UUID]catalog.Product, len(products))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

// ServicesByIDs returns the services matching any of the given ids, keyed by id.
func (r *CatalogRepository) ServicesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]catalog.Service, error) {
	rows, err := r.pool.Query(ctx, servicesByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting services by ids: %w", err)
	}

	out := make(map[uuid.UUID]catalog.Service, len(ids))
	var svc catalog.Service
	if _, err := pgx.ForEachRow(rows, []any{&svc.ID, &svc.Name}, func() error {
		out[svc.ID] = svc
		return nil
	}); err != nil {
		return nil, fmt.Errorf("scanning services: %w", err)
	}
	return out, nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.UnitCost, &p.UnitPrice, &p.ServiceID)
	return p, err
}
