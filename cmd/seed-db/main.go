// Command seed-db loads the reference catalog (statuses, services,
// products) from a JSON file into PostgreSQL. The order service treats this
// data as read-only; re-running the seeder upserts in place.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/reseller-orders/internal/postgres"
)

type catalogJSON struct {
	Statuses []statusJSON  `json:"statuses"`
	Services []serviceJSON `json:"services"`
	Products []productJSON `json:"products"`
}

type statusJSON struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type serviceJSON struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type productJSON struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	ServiceID uuid.UUID       `json:"service_id"`
}

const (
	upsertStatusSQL = `INSERT INTO statuses (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

	upsertServiceSQL = `INSERT INTO services (id, name) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

	upsertProductSQL = `INSERT INTO products (id, name, unit_cost, unit_price, service_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			unit_cost = EXCLUDED.unit_cost,
			unit_price = EXCLUDED.unit_price,
			service_id = EXCLUDED.service_id`
)

func main() {
	var (
		databaseURL string
		catalogFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, catalogFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, catalogFile string) error {
	slog.Info("reading catalog file", slog.String("path", catalogFile))

	data, err := os.ReadFile(catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var cat catalogJSON
	if err := json.Unmarshal(data, &cat); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedStatuses(ctx, pool, cat.Statuses); err != nil {
		return errors.Wrap(err, "seed statuses")
	}
	if err := seedServices(ctx, pool, cat.Services); err != nil {
		return errors.Wrap(err, "seed services")
	}
	if err := seedProducts(ctx, pool, cat.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}

	return nil
}

func seedStatuses(ctx context.Context, pool *pgxpool.Pool, statuses []statusJSON) error {
	slog.Info("upserting statuses", slog.Int("count", len(statuses)))

	for _, s := range statuses {
		if _, err := pool.Exec(ctx, upsertStatusSQL, s.ID, s.Name); err != nil {
			return errors.Wrapf(err, "upsert status %s", s.ID)
		}
		slog.Info("upserted status", slog.String("id", s.ID.String()), slog.String("name", s.Name))
	}
	return nil
}

func seedServices(ctx context.Context, pool *pgxpool.Pool, services []serviceJSON) error {
	slog.Info("upserting services", slog.Int("count", len(services)))

	for _, s := range services {
		if _, err := pool.Exec(ctx, upsertServiceSQL, s.ID, s.Name); err != nil {
			return errors.Wrapf(err, "upsert service %s", s.ID)
		}
		slog.Info("upserted service", slog.String("id", s.ID.String()), slog.String("name", s.Name))
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []productJSON) error {
	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.UnitCost, p.UnitPrice, p.ServiceID,
		); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID.String()), slog.String("name", p.Name))
	}
	return nil
}
