package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/reseller-orders/internal/domain/catalog"
)

// CreateItem is a single requested order line.
type CreateItem struct {
	ServiceID uuid.UUID
	ProductID uuid.UUID
	Quantity  int
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	ResellerID uuid.UUID
	CustomerID uuid.UUID
	StatusID   uuid.UUID
	Items      []CreateItem
}

// Service encapsulates the order business rules: referential-integrity
// validation on writes and catalog-joined view computation on reads.
type Service struct {
	catalog catalog.Repository
	orders  Repository
	now     func() time.Time
}

// NewService creates an order Service with the required dependencies.
func NewService(catalogRepo catalog.Repository, orders Repository) *Service {
	return &Service{
		catalog: catalogRepo,
		orders:  orders,
		now:     time.Now,
	}
}

// CreateOrder validates every foreign reference against the catalog, then
// persists the order and its items as one atomic unit and returns the
// freshly computed detail view. Validation is all-or-nothing: any failure
// leaves stored state untouched.
//
// Checks run in a fixed sequence, each producing its own failure: the
// status id, then the distinct missing product ids across all items
// (reported together), then the distinct missing service ids.
func (s *Service) CreateOrder(ctx context.Context, req CreateRequest) (*Detail, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
	}

	ok, err := s.catalog.StatusExists(ctx, req.StatusID)
	if err != nil {
		return nil, errors.Wrap(err, "check status")
	}
	if !ok {
		return nil, &ForeignKeyError{Field: "statusId", IDs: []uuid.UUID{req.StatusID}}
	}

	productIDs := distinct(req.Items, func(it CreateItem) uuid.UUID { return it.ProductID })
	existing, err := s.catalog.ProductsExisting(ctx, productIDs)
	if err != nil {
		return nil, errors.Wrap(err, "check products")
	}
	if missing := missingFrom(productIDs, existing); len(missing) > 0 {
		return nil, &ForeignKeyError{Field: "items", IDs: missing}
	}

	serviceIDs := distinct(req.Items, func(it CreateItem) uuid.UUID { return it.ServiceID })
	existing, err = s.catalog.ServicesExisting(ctx, serviceIDs)
	if err != nil {
		return nil, errors.Wrap(err, "check services")
	}
	if missing := missingFrom(serviceIDs, existing); len(missing) > 0 {
		return nil, &ForeignKeyError{Field: "items", IDs: missing}
	}

	o := &Order{
		ID:         uuid.New(),
		ResellerID: req.ResellerID,
		CustomerID: req.CustomerID,
		StatusID:   req.StatusID,
		CreatedAt:  s.now().UTC(),
		Items:      make([]Item, len(req.Items)),
	}
	for i, item := range req.Items {
		o.Items[i] = Item{
			ID:        uuid.New(),
			OrderID:   o.ID,
			ServiceID: item.ServiceID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		}
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	return s.detailView(ctx, o)
}

// UpdateStatus moves an existing order to a new status. It returns false
// when the order does not exist; an unknown status id is a caller error and
// fails with ForeignKeyError before the order is touched. Any status may
// transition to any other: status values are open-ended labels, not an enum
// with defined edges.
func (s *Service) UpdateStatus(ctx context.Context, orderID, statusID uuid.UUID) (bool, error) {
	ok, err := s.catalog.StatusExists(ctx, statusID)
	if err != nil {
		return false, errors.Wrap(err, "check status")
	}
	if !ok {
		return false, &ForeignKeyError{Field: "statusId", IDs: []uuid.UUID{statusID}}
	}

	updated, err := s.orders.UpdateStatus(ctx, orderID, statusID)
	if err != nil {
		return false, errors.Wrap(err, "update status")
	}
	return updated, nil
}

// ListOrders returns summaries of all orders, most recently created first.
// A non-empty statusFilter keeps only orders whose current status name
// matches exactly; a name no order has yields an empty slice.
func (s *Service) ListOrders(ctx context.Context, statusFilter string) ([]Summary, error) {
	orders, err := s.orders.List(ctx, statusFilter)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return s.summaryViews(ctx, orders)
}

// GetOrder returns the full detail view for one order, or ErrNotFound.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*Detail, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}
	return s.detailView(ctx, o)
}

// MonthlyProfit sums (UnitPrice - UnitCost) x Quantity over all items of
// orders whose status name matches and whose creation timestamp falls in
// the given calendar year and month. Prices are the catalog's current
// values, exactly like totals elsewhere. No matching orders yields zero.
func (s *Service) MonthlyProfit(ctx context.Context, year int, month time.Month, statusName string) (decimal.Decimal, error) {
	orders, err := s.orders.ListCreatedIn(ctx, statusName, year, month)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "list orders for month")
	}

	products, err := s.productsFor(ctx, orders)
	if err != nil {
		return decimal.Zero, err
	}

	profit := decimal.Zero
	for _, o := range orders {
		for _, item := range o.Items {
			p, ok := products[item.ProductID]
			if !ok {
				// Product removed from the catalog after the order was
				// placed; it no longer contributes margin.
				continue
			}
			margin := p.UnitPrice.Sub(p.UnitCost)
			profit = profit.Add(margin.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
	}
	return profit, nil
}

// summaryViews computes summaries for a batch of orders using single batch
// lookups against the catalog for statuses and products.
func (s *Service) summaryViews(ctx context.Context, orders []Order) ([]Summary, error) {
	products, err := s.productsFor(ctx, orders)
	if err != nil {
		return nil, err
	}

	statusIDs := distinct(orders, func(o Order) uuid.UUID { return o.StatusID })
	statuses, err := s.catalog.StatusesByIDs(ctx, statusIDs)
	if err != nil {
		return nil, errors.Wrap(err, "resolve statuses")
	}

	summaries := make([]Summary, len(orders))
	for i, o := range orders {
		summaries[i] = buildSummary(o, statuses, products)
	}
	return summaries, nil
}

// detailView computes the full view for one order, resolving product,
// service, and status attributes from the current catalog state.
func (s *Service) detailView(ctx context.Context, o *Order) (*Detail, error) {
	products, err := s.productsFor(ctx, []Order{*o})
	if err != nil {
		return nil, err
	}

	serviceIDs := distinct(o.Items, func(it Item) uuid.UUID { return it.ServiceID })
	services, err := s.catalog.ServicesByIDs(ctx, serviceIDs)
	if err != nil {
		return nil, errors.Wrap(err, "resolve services")
	}

	statuses, err := s.catalog.StatusesByIDs(ctx, []uuid.UUID{o.StatusID})
	if err != nil {
		return nil, errors.Wrap(err, "resolve statuses")
	}

	detail := &Detail{
		Summary: buildSummary(*o, statuses, products),
		Items:   make([]ItemDetail, len(o.Items)),
	}
	for i, item := range o.Items {
		d := ItemDetail{Item: item}
		if svc, ok := services[item.ServiceID]; ok {
			d.ServiceName = svc.Name
		}
		qty := decimal.NewFromInt(int64(item.Quantity))
		if p, ok := products[item.ProductID]; ok {
			d.ProductName = p.Name
			d.UnitCost = p.UnitCost
			d.UnitPrice = p.UnitPrice
		}
		d.TotalCost = d.UnitCost.Mul(qty)
		d.TotalPrice = d.UnitPrice.Mul(qty)
		detail.Items[i] = d
	}
	return detail, nil
}

// productsFor batch-fetches every product referenced by the given orders.
func (s *Service) productsFor(ctx context.Context, orders []Order) (map[uuid.UUID]catalog.Product, error) {
	var ids []uuid.UUID
	seen := make(map[uuid.UUID]struct{})
	for _, o := range orders {
		for _, item := range o.Items {
			if _, ok := seen[item.ProductID]; ok {
				continue
			}
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}
	if len(ids) == 0 {
		return map[uuid.UUID]catalog.Product{}, nil
	}

	products, err := s.catalog.ProductsByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "resolve products")
	}
	return products, nil
}

// buildSummary assembles one order summary from pre-fetched catalog state.
// Missing reference rows resolve to empty names and zero prices: the core
// never re-validates references on read.
func buildSummary(o Order, statuses map[uuid.UUID]catalog.Status, products map[uuid.UUID]catalog.Product) Summary {
	sum := Summary{
		ID:         o.ID,
		ResellerID: o.ResellerID,
		CustomerID: o.CustomerID,
		StatusID:   o.StatusID,
		ItemCount:  len(o.Items),
		TotalCost:  decimal.Zero,
		TotalPrice: decimal.Zero,
		CreatedAt:  o.CreatedAt,
	}
	if st, ok := statuses[o.StatusID]; ok {
		sum.StatusName = st.Name
	}
	for _, item := range o.Items {
		p, ok := products[item.ProductID]
		if !ok {
			continue
		}
		qty := decimal.NewFromInt(int64(item.Quantity))
		sum.TotalCost = sum.TotalCost.Add(p.UnitCost.Mul(qty))
		sum.TotalPrice = sum.TotalPrice.Add(p.UnitPrice.Mul(qty))
	}
	return sum
}

// distinct collects unique ids from a slice, preserving first-seen order so
// validation messages are deterministic.
func distinct[T any](items []T, id func(T) uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(items))
	out := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		v := id(item)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// missingFrom returns the ids not present in the existence set, in input order.
func missingFrom(ids []uuid.UUID, existing catalog.IDSet) []uuid.UUID {
	var missing []uuid.UUID
	for _, id := range ids {
		if !existing.Contains(id) {
			missing = append(missing, id)
		}
	}
	return missing
}
