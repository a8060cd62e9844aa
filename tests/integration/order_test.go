//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/reseller-orders/internal/domain/order"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func TestCreateOrder_PersistsAndComputesTotals(t *testing.T) {
	ctx := context.Background()

	created, err := orderSvc.CreateOrder(ctx, order.CreateRequest{
		ResellerID: uuid.New(),
		CustomerID: uuid.New(),
		StatusID:   statusCreated,
		Items: []order.CreateItem{
			{ServiceID: svcHosting, ProductID: productHostingS, Quantity: 3},
			{ServiceID: svcDomains, ProductID: productDomainCom, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	// 3 x 0.80 + 7.25 = 9.65; 3 x 0.90 + 9.99 = 12.69.
	if want := dec(t, "9.65"); !created.TotalCost.Equal(want) {
		t.Errorf("total cost: got %s, want %s", created.TotalCost, want)
	}
	if want := dec(t, "12.69"); !created.TotalPrice.Equal(want) {
		t.Errorf("total price: got %s, want %s", created.TotalPrice, want)
	}
	if created.StatusName != "Created" {
		t.Errorf("status name: got %q, want %q", created.StatusName, "Created")
	}

	// Read back through the full path: same totals, same items.
	got, err := orderSvc.GetOrder(ctx, created.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if !got.TotalPrice.Equal(created.TotalPrice) {
		t.Errorf("reread total price: got %s, want %s", got.TotalPrice, created.TotalPrice)
	}
	if len(got.Items) != 2 {
		t.Fatalf("reread items: got %d, want 2", len(got.Items))
	}
	if got.Items[0].ProductName != "Shared Hosting S" {
		t.Errorf("item product name: got %q", got.Items[0].ProductName)
	}
}

func TestCreateOrder_UnknownProduct_NothingStored(t *testing.T) {
	ctx := context.Background()
	reseller := uuid.New()
	bogus := uuid.New()

	_, err := orderSvc.CreateOrder(ctx, order.CreateRequest{
		ResellerID: reseller,
		CustomerID: uuid.New(),
		StatusID:   statusCreated,
		Items: []order.CreateItem{
			{ServiceID: svcHosting, ProductID: productHostingS, Quantity: 1},
			{ServiceID: svcHosting, ProductID: bogus, Quantity: 2},
		},
	})

	var fkErr *order.ForeignKeyError
	if !errors.As(err, &fkErr) {
		t.Fatalf("expected ForeignKeyError, got %v", err)
	}
	if len(fkErr.IDs) != 1 || fkErr.IDs[0] != bogus {
		t.Errorf("unexpected failing ids: %v", fkErr.IDs)
	}

	orders, items := countOrderRows(ctx, t, reseller)
	if orders != 0 || items != 0 {
		t.Errorf("expected no rows written, got %d orders and %d items", orders, items)
	}
}

func TestCreateOrder_UnknownStatus_NothingStored(t *testing.T) {
	ctx := context.Background()
	reseller := uuid.New()

	_, err := orderSvc.CreateOrder(ctx, order.CreateRequest{
		ResellerID: reseller,
		CustomerID: uuid.New(),
		StatusID:   uuid.New(),
		Items: []order.CreateItem{
			{ServiceID: svcHosting, ProductID: productHostingS, Quantity: 1},
		},
	})

	var fkErr *order.ForeignKeyError
	if !errors.As(err, &fkErr) {
		t.Fatalf("expected ForeignKeyError, got %v", err)
	}
	if fkErr.Field != "statusId" {
		t.Errorf("field: got %q, want %q", fkErr.Field, "statusId")
	}

	if orders, _ := countOrderRows(ctx, t, reseller); orders != 0 {
		t.Errorf("expected no orders written, got %d", orders)
	}
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	created, err := orderSvc.CreateOrder(ctx, order.CreateRequest{
		ResellerID: uuid.New(),
		CustomerID: uuid.New(),
		StatusID:   statusCreated,
		Items: []order.CreateItem{
			{ServiceID: svcHosting, ProductID: productHostingS, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	updated, err := orderSvc.UpdateStatus(ctx, created.ID, statusCompleted)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if !updated {
		t.Fatal("expected update to report true")
	}

	got, err := orderSvc.GetOrder(ctx, created.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.StatusName != "Completed" {
		t.Errorf("status name: got %q, want %q", got.StatusName, "Completed")
	}

	// Unknown order id reports false without an error.
	updated, err = orderSvc.UpdateStatus(ctx, uuid.New(), statusCompleted)
	if err != nil {
		t.Fatalf("update unknown order: %v", err)
	}
	if updated {
		t.Error("expected update of unknown order to report false")
	}

	// Unknown status id fails before touching the order.
	_, err = orderSvc.UpdateStatus(ctx, created.ID, uuid.New())
	var fkErr *order.ForeignKeyError
	if !errors.As(err, &fkErr) {
		t.Fatalf("expected ForeignKeyError, got %v", err)
	}
}

func TestListOrders_StatusFilter(t *testing.T) {
	ctx := context.Background()

	created, err := orderSvc.CreateOrder(ctx, order.CreateRequest{
		ResellerID: uuid.New(),
		CustomerID: uuid.New(),
		StatusID:   statusFailed,
		Items: []order.CreateItem{
			{ServiceID: svcDomains, ProductID: productDomainCom, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	summaries, err := orderSvc.ListOrders(ctx, "Failed")
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}

	var found *order.Summary
	for i := range summaries {
		if summaries[i].StatusName != "Failed" {
			t.Fatalf("filter leaked status %q into results", summaries[i].StatusName)
		}
		if summaries[i].ID == created.ID {
			found = &summaries[i]
		}
	}
	if found == nil {
		t.Fatal("created order missing from filtered list")
	}
	if want := dec(t, "19.98"); !found.TotalPrice.Equal(want) {
		t.Errorf("total price: got %s, want %s", found.TotalPrice, want)
	}
	if found.ItemCount != 1 {
		t.Errorf("item count: got %d, want 1", found.ItemCount)
	}

	// A status name no order has yields an empty result, not an error.
	summaries, err = orderSvc.ListOrders(ctx, "NoSuchStatus")
	if err != nil {
		t.Fatalf("list orders with unused status: %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("expected empty list, got %d summaries", len(summaries))
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	_, err := orderSvc.GetOrder(context.Background(), uuid.New())
	if !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMonthlyProfit_Additive(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	before, err := orderSvc.MonthlyProfit(ctx, now.Year(), now.Month(), "Completed")
	if err != nil {
		t.Fatalf("monthly profit before: %v", err)
	}

	// 3 x (0.90 - 0.80) margin on top of whatever is already there.
	if _, err := orderSvc.CreateOrder(ctx, order.CreateRequest{
		ResellerID: uuid.New(),
		CustomerID: uuid.New(),
		StatusID:   statusCompleted,
		Items: []order.CreateItem{
			{ServiceID: svcHosting, ProductID: productHostingS, Quantity: 3},
		},
	}); err != nil {
		t.Fatalf("create order: %v", err)
	}

	after, err := orderSvc.MonthlyProfit(ctx, now.Year(), now.Month(), "Completed")
	if err != nil {
		t.Fatalf("monthly profit after: %v", err)
	}

	delta := after.Sub(before)
	if want := dec(t, "0.3"); !delta.Equal(want) {
		t.Errorf("profit delta: got %s, want %s", delta, want)
	}

	// A status name no order has matches nothing and yields zero.
	unused, err := orderSvc.MonthlyProfit(ctx, now.Year(), now.Month(), "NoSuchStatus")
	if err != nil {
		t.Fatalf("monthly profit unused status: %v", err)
	}
	if !unused.IsZero() {
		t.Errorf("expected zero profit, got %s", unused)
	}
}
