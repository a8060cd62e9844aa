//go:build integration

package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/reseller-orders/internal/domain/order"
	"github.com/xenking/reseller-orders/internal/postgres"
)

// Shared fixtures: a small catalog seeded once per test run. Orders are
// created per test; the catalog is read-only.
var (
	pool     *pgxpool.Pool
	orderSvc *order.Service

	statusCreated   = uuid.MustParse("11111111-0000-0000-0000-000000000001")
	statusCompleted = uuid.MustParse("11111111-0000-0000-0000-000000000002")
	statusFailed    = uuid.MustParse("11111111-0000-0000-0000-000000000003")

	svcHosting = uuid.MustParse("22222222-0000-0000-0000-000000000001")
	svcDomains = uuid.MustParse("22222222-0000-0000-0000-000000000002")

	// Shared Hosting S: cost 0.80, price 0.90.
	productHostingS = uuid.MustParse("33333333-0000-0000-0000-000000000001")
	// Domain .com: cost 7.25, price 9.99.
	productDomainCom = uuid.MustParse("33333333-0000-0000-0000-000000000002")
)

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("orders"),
		tcpostgres.WithUsername("orders"),
		tcpostgres.WithPassword("orders"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("start postgres container: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			log.Printf("terminate container: %v", err)
		}
	}()

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}

	pool, err = postgres.NewPool(ctx, connStr)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("run migrations: %v", err)
	}
	if err := seedCatalog(ctx); err != nil {
		log.Fatalf("seed catalog: %v", err)
	}

	catalogRepo := postgres.NewCatalogRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)
	orderSvc = order.NewService(catalogRepo, orderRepo)

	return m.Run()
}

func seedCatalog(ctx context.Context) error {
	statements := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO statuses (id, name) VALUES ($1, $2)`, []any{statusCreated, "Created"}},
		{`INSERT INTO statuses (id, name) VALUES ($1, $2)`, []any{statusCompleted, "Completed"}},
		{`INSERT INTO statuses (id, name) VALUES ($1, $2)`, []any{statusFailed, "Failed"}},
		{`INSERT INTO services (id, name) VALUES ($1, $2)`, []any{svcHosting, "Web Hosting"}},
		{`INSERT INTO services (id, name) VALUES ($1, $2)`, []any{svcDomains, "Domain Registration"}},
		{`INSERT INTO products (id, name, unit_cost, unit_price, service_id) VALUES ($1, $2, $3, $4, $5)`,
			[]any{productHostingS, "Shared Hosting S", "0.80", "0.90", svcHosting}},
		{`INSERT INTO products (id, name, unit_cost, unit_price, service_id) VALUES ($1, $2, $3, $4, $5)`,
			[]any{productDomainCom, "Domain .com", "7.25", "9.99", svcDomains}},
	}

	for _, st := range statements {
		if _, err := pool.Exec(ctx, st.sql, st.args...); err != nil {
			return err
		}
	}
	return nil
}

// countOrderRows returns how many orders and order items exist for reseller.
func countOrderRows(ctx context.Context, t *testing.T, reseller uuid.UUID) (orders, items int) {
	t.Helper()

	err := pool.QueryRow(ctx,
		`SELECT count(*) FROM orders WHERE reseller_id = $1`, reseller,
	).Scan(&orders)
	if err != nil {
		t.Fatalf("count orders: %v", err)
	}

	err = pool.QueryRow(ctx,
		`SELECT count(*) FROM order_items i JOIN orders o ON o.id = i.order_id WHERE o.reseller_id = $1`,
		reseller,
	).Scan(&items)
	if err != nil {
		t.Fatalf("count order items: %v", err)
	}
	return orders, items
}
